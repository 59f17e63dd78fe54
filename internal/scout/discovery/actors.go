package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
)

// DiscoverFromActors is the signal-reference surface: actors mentioned by
// extracted signals carry domains/social URLs; any not already tracked as a
// Source become new Web/Social Sources with DiscoveryMethod::SignalReference,
// role Mixed.
func (d *Discoverer) DiscoverFromActors(ctx context.Context) (Stats, error) {
	var stats Stats

	actors, err := d.Reader.GetActorsWithDomains(ctx, d.City)
	if err != nil {
		return stats, fmt.Errorf("discovery: load actors: %w", err)
	}

	existingURLs, existingKeys, err := d.existingURLsAndKeys(ctx)
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, actor := range actors {
		for _, dom := range actor.Domains {
			url := dom
			if !hasScheme(url) {
				url = "https://" + url
			}
			if existingURLs[url] {
				stats.DuplicatesSkipped++
				continue
			}
			cv := CanonicalValueFromURL(url)
			ck := MakeCanonicalKey(d.City, domain.SourceTypeWeb, cv)
			if existingKeys[ck] {
				stats.DuplicatesSkipped++
				continue
			}
			src := newSource(ck, cv, url, domain.SourceTypeWeb, domain.DiscoverySignalReference, d.City, "Actor: "+actor.ActorName, domain.SourceRoleMixed, now)
			if err := d.Store.UpsertSource(ctx, src); err != nil {
				return stats, fmt.Errorf("discovery: upsert actor domain source: %w", err)
			}
			stats.ActorSources++
			existingURLs[url] = true
			existingKeys[ck] = true
		}

		for _, socialURL := range actor.SocialURLs {
			if existingURLs[socialURL] {
				stats.DuplicatesSkipped++
				continue
			}
			st := SourceTypeFromURL(socialURL)
			cv := CanonicalValueFromURL(socialURL)
			ck := MakeCanonicalKey(d.City, st, cv)
			if existingKeys[ck] {
				stats.DuplicatesSkipped++
				continue
			}
			src := newSource(ck, cv, socialURL, st, domain.DiscoverySignalReference, d.City, "Actor: "+actor.ActorName, domain.SourceRoleMixed, now)
			if err := d.Store.UpsertSource(ctx, src); err != nil {
				return stats, fmt.Errorf("discovery: upsert actor social source: %w", err)
			}
			stats.ActorSources++
			existingURLs[socialURL] = true
			existingKeys[ck] = true
		}
	}

	return stats, nil
}

func hasScheme(url string) bool {
	return len(url) >= 4 && url[:4] == "http"
}

package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rootsignal.dev/scout/internal/scout/aggregate"
	"rootsignal.dev/scout/internal/scout/domain"
)

// highSignalLinkPatterns are substrings that mark a collected link as worth
// promoting to a Source, rather than noise (nav chrome, ads, pagination).
var highSignalLinkPatterns = []string{
	"linktr.ee",
	"/events/",
	"/event/",
	"eventbrite.com",
	"gofundme.com",
	"meetup.com",
	"/donate",
	"/volunteer",
	"/get-involved",
}

var socialHandleRE = regexp.MustCompile(`(?i)^https?://(www\.)?(twitter\.com|x\.com|instagram\.com|facebook\.com|tiktok\.com)/[A-Za-z0-9_.]+/?$`)

func isHighSignalLink(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range highSignalLinkPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return socialHandleRE.MatchString(url)
}

// PromoteLinks implements the link-promotion discovery surface: collected
// links matching high-signal patterns, plus social handles found in page
// links, become Web/platform Sources. It reads the links it is given and
// does not clear state.CollectedLinks; no LinksPromoted event is
// dispatched, so later phases see the same links.
func (d *Discoverer) PromoteLinks(ctx context.Context, links []aggregate.CollectedLink) (Stats, error) {
	var stats Stats

	existingURLs, existingKeys, err := d.existingURLsAndKeys(ctx)
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, link := range links {
		if !isHighSignalLink(link.URL) {
			continue
		}
		if existingURLs[link.URL] {
			stats.DuplicatesSkipped++
			continue
		}
		st := SourceTypeFromURL(link.URL)
		cv := CanonicalValueFromURL(link.URL)
		ck := MakeCanonicalKey(d.City, st, cv)
		if existingKeys[ck] {
			stats.DuplicatesSkipped++
			continue
		}
		src := newSource(ck, cv, link.URL, st, domain.DiscoverySignalReference, d.City,
			"Link from: "+link.DiscoveredOn, domain.SourceRoleMixed, now)
		if err := d.Store.UpsertSource(ctx, src); err != nil {
			return stats, fmt.Errorf("discovery: upsert promoted link: %w", err)
		}
		stats.LinkSources++
		existingURLs[link.URL] = true
		existingKeys[ck] = true
	}

	return stats, nil
}

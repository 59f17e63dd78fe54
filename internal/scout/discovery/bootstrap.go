package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/common"
	"rootsignal.dev/scout/internal/scout/domain"
)

// SeedQueryGenerator produces 20-30 bootstrap seed queries for a city via
// LLM. Implemented by internal/scout/llm; kept as a narrow interface here so
// discovery doesn't depend on the llm package's client plumbing.
type SeedQueryGenerator interface {
	BootstrapQueries(ctx context.Context, city string) ([]string, error)
}

// cityPlatformSources returns the canonical platform sources every bootstrap
// run seeds regardless of LLM output: regional subreddit, Eventbrite
// community, GoFundMe region search.
func cityPlatformSources(city string, now time.Time) []domain.Source {
	slug, _ := common.Slugify(city, "region")
	subreddit := fmt.Sprintf("https://reddit.com/r/%s", slug)
	eventbrite := fmt.Sprintf("https://www.eventbrite.com/d/%s/community/", slug)
	gofundme := fmt.Sprintf("https://www.gofundme.com/discover/%s", slug)

	mk := func(url string, st domain.SourceType) domain.Source {
		cv := CanonicalValueFromURL(url)
		ck := MakeCanonicalKey(city, st, cv)
		return newSource(ck, cv, url, st, domain.DiscoveryColdStart, city, "bootstrap platform source", domain.SourceRoleMixed, now)
	}

	return []domain.Source{
		mk(subreddit, domain.SourceTypeSocial),
		mk(eventbrite, domain.SourceTypeWeb),
		mk(gofundme, domain.SourceTypeWeb),
	}
}

// Bootstrap runs the first-ever-run discovery surface for a scope: LLM seed
// queries plus canonical platform sources. Callers should only invoke this
// when GetActiveSources returns empty for the city; idempotency still holds
// via canonical_key MERGE if called again.
func (d *Discoverer) Bootstrap(ctx context.Context, gen SeedQueryGenerator) (Stats, error) {
	var stats Stats

	_, existingKeys, err := d.existingURLsAndKeys(ctx)
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, src := range cityPlatformSources(d.City, now) {
		if existingKeys[src.CanonicalKey] {
			stats.DuplicatesSkipped++
			continue
		}
		if err := d.Store.UpsertSource(ctx, src); err != nil {
			return stats, fmt.Errorf("discovery: upsert platform source: %w", err)
		}
		existingKeys[src.CanonicalKey] = true
	}

	queries, err := gen.BootstrapQueries(ctx, d.City)
	if err != nil {
		return stats, fmt.Errorf("discovery: bootstrap queries: %w", err)
	}
	for _, q := range queries {
		cv := q
		ck := MakeCanonicalKey(d.City, domain.SourceTypeTavilyQuery, cv)
		if existingKeys[ck] {
			stats.DuplicatesSkipped++
			continue
		}
		src := newSource(ck, cv, "", domain.SourceTypeTavilyQuery, domain.DiscoveryColdStart, d.City, "bootstrap seed query", domain.SourceRoleMixed, now)
		if err := d.Store.UpsertSource(ctx, src); err != nil {
			return stats, fmt.Errorf("discovery: upsert seed query source: %w", err)
		}
		existingKeys[ck] = true
	}

	return stats, nil
}

package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
)

// TensionSeed builds a Response-role query source for each recent Tension
// that names what_would_help ("organizations helping with {what_would_help}
// in {region}").
func (d *Discoverer) TensionSeed(ctx context.Context) (Stats, error) {
	var stats Stats

	tensions, err := d.Reader.GetRecentTensions(ctx, 50)
	if err != nil {
		return stats, fmt.Errorf("discovery: load recent tensions: %w", err)
	}

	_, existingKeys, err := d.existingURLsAndKeys(ctx)
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, t := range tensions {
		if t.WhatWouldHelp == nil || *t.WhatWouldHelp == "" {
			continue
		}
		query := fmt.Sprintf("organizations helping with %s in %s", *t.WhatWouldHelp, d.City)
		ck := MakeCanonicalKey(d.City, domain.SourceTypeTavilyQuery, query)
		if existingKeys[ck] {
			stats.DuplicatesSkipped++
			continue
		}
		src := newSource(ck, query, "", domain.SourceTypeTavilyQuery, domain.DiscoveryTensionSeed, d.City,
			"Tension: "+t.Title, domain.SourceRoleResponse, now)
		if err := d.Store.UpsertSource(ctx, src); err != nil {
			return stats, fmt.Errorf("discovery: upsert tension-seed source: %w", err)
		}
		existingKeys[ck] = true
		stats.TensionSeedSources++
	}

	return stats, nil
}

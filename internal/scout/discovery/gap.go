package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/similarity"
)

// GapQueryGenerator synthesizes 1-5 targeted search queries for a tension
// lacking coverage. Implemented by internal/scout/llm.
type GapQueryGenerator interface {
	GapQueries(ctx context.Context, city, tensionTitle string, whatWouldHelp *string) ([]string, error)
}

// jaccardGapThreshold is the token-overlap floor above which an existing
// query is considered to already cover a tension.
const jaccardGapThreshold = 0.5

// GapAnalysis finds tensions lacking a matching existing query source (by
// token Jaccard against every active tavily_query source, whatever its role) and
// synthesizes 1-5 targeted queries per run for each.
func (d *Discoverer) GapAnalysis(ctx context.Context, gen GapQueryGenerator, maxQueriesPerRun int) (Stats, error) {
	var stats Stats

	tensions, err := d.Reader.GetRecentTensions(ctx, 50)
	if err != nil {
		return stats, fmt.Errorf("discovery: load recent tensions: %w", err)
	}

	existing, err := d.Store.GetActiveSources(ctx, d.City)
	if err != nil {
		return stats, fmt.Errorf("discovery: load existing sources: %w", err)
	}
	var queryValues []string
	existingKeys := make(map[string]bool, len(existing))
	for _, s := range existing {
		existingKeys[s.CanonicalKey] = true
		if s.SourceType == domain.SourceTypeTavilyQuery {
			queryValues = append(queryValues, s.CanonicalValue)
		}
	}

	now := time.Now()
	emitted := 0
	for _, t := range tensions {
		if emitted >= maxQueriesPerRun {
			break
		}
		if hasMatchingQuery(t.Title, queryValues) {
			continue
		}

		queries, err := gen.GapQueries(ctx, d.City, t.Title, t.WhatWouldHelp)
		if err != nil {
			return stats, fmt.Errorf("discovery: gap queries for %q: %w", t.Title, err)
		}
		for _, q := range queries {
			if emitted >= maxQueriesPerRun {
				break
			}
			ck := MakeCanonicalKey(d.City, domain.SourceTypeTavilyQuery, q)
			if existingKeys[ck] {
				stats.DuplicatesSkipped++
				continue
			}
			src := newSource(ck, q, "", domain.SourceTypeTavilyQuery, domain.DiscoveryGapAnalysis, d.City,
				"Gap: "+t.Title, domain.SourceRoleResponse, now)
			if err := d.Store.UpsertSource(ctx, src); err != nil {
				return stats, fmt.Errorf("discovery: upsert gap source: %w", err)
			}
			existingKeys[ck] = true
			queryValues = append(queryValues, q)
			stats.GapSources++
			emitted++
		}
	}

	return stats, nil
}

func hasMatchingQuery(tensionTitle string, queryValues []string) bool {
	for _, q := range queryValues {
		if similarity.Jaccard(tensionTitle, q) >= jaccardGapThreshold {
			return true
		}
	}
	return false
}

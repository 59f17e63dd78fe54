package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/similarity"
)

const (
	// expansionJaccardBlock is the token-overlap ceiling at or above which an
	// implied query is considered a duplicate of a live query.
	expansionJaccardBlock = 0.6
	// expansionEmbeddingBlock is the cosine-similarity ceiling above which
	// an implied query's embedding is considered a duplicate.
	expansionEmbeddingBlock = 0.90
)

// Embedder produces an embedding vector for a short text, used by
// signal-expansion dedup. Implemented by internal/scout/llm.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// liveQuery pairs an existing query source's text with its embedding, the
// comparison set for signal-expansion dedup.
type liveQuery struct {
	text      string
	embedding []float32
}

// PromoteExpansionQueries runs the signal-expansion discovery surface:
// implied queries harvested alongside extracted signals pass a Jaccard +
// embedding dedup gate against live query sources; survivors become
// SignalExpansion sources with role Mixed.
func (d *Discoverer) PromoteExpansionQueries(ctx context.Context, embedder Embedder, impliedQueries []string) (Stats, error) {
	var stats Stats

	existing, err := d.Store.GetActiveSources(ctx, d.City)
	if err != nil {
		return stats, fmt.Errorf("discovery: load existing sources: %w", err)
	}
	existingKeys := make(map[string]bool, len(existing))
	var live []liveQuery
	for _, s := range existing {
		existingKeys[s.CanonicalKey] = true
		if s.SourceType == domain.SourceTypeTavilyQuery {
			lq := liveQuery{text: s.CanonicalValue}
			if embedder != nil {
				lq.embedding, err = embedder.Embed(ctx, s.CanonicalValue)
				if err != nil {
					return stats, fmt.Errorf("discovery: embed live query: %w", err)
				}
			}
			live = append(live, lq)
		}
	}

	now := time.Now()
	seen := make(map[string]bool)
	for _, q := range impliedQueries {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true

		if queryAlreadyCovered(q, live) {
			stats.DuplicatesSkipped++
			continue
		}

		var emb []float32
		if embedder != nil {
			emb, err = embedder.Embed(ctx, q)
			if err != nil {
				return stats, fmt.Errorf("discovery: embed implied query: %w", err)
			}
			if embeddingAlreadyCovered(emb, live) {
				stats.DuplicatesSkipped++
				continue
			}
		}

		ck := MakeCanonicalKey(d.City, domain.SourceTypeTavilyQuery, q)
		if existingKeys[ck] {
			stats.DuplicatesSkipped++
			continue
		}
		src := newSource(ck, q, "", domain.SourceTypeTavilyQuery, domain.DiscoverySignalExpansion, d.City,
			"Implied query", domain.SourceRoleMixed, now)
		if err := d.Store.UpsertSource(ctx, src); err != nil {
			return stats, fmt.Errorf("discovery: upsert expansion source: %w", err)
		}
		existingKeys[ck] = true
		live = append(live, liveQuery{text: q, embedding: emb})
		stats.ExpansionSources++
	}

	return stats, nil
}

func queryAlreadyCovered(q string, live []liveQuery) bool {
	for _, l := range live {
		if similarity.Jaccard(q, l.text) >= expansionJaccardBlock {
			return true
		}
	}
	return false
}

func embeddingAlreadyCovered(emb []float32, live []liveQuery) bool {
	if emb == nil {
		return false
	}
	for _, l := range live {
		if l.embedding == nil {
			continue
		}
		if similarity.Cosine(emb, l.embedding) > expansionEmbeddingBlock {
			return true
		}
	}
	return false
}

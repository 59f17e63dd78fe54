// Package discovery implements the six source-discovery surfaces: bootstrap,
// signal-reference, tension-seed, gap-analysis, link promotion, and
// signal-expansion. All are idempotent (MERGE by canonical_key) and every
// created Source gets an initial weight from
// domain.DiscoveryMethod.InitialWeight() plus an optional gap_context.
package discovery

import (
	"context"
	"fmt"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/traits"
)

// Stats tallies what one discovery pass found across all six surfaces.
type Stats struct {
	ActorSources      int
	TensionSeedSources int
	GapSources        int
	LinkSources       int
	ExpansionSources  int
	DuplicatesSkipped int
}

// Discoverer runs the discovery surfaces against one region's existing
// source pool.
type Discoverer struct {
	Store  traits.SignalStore
	Reader traits.SignalReader
	City   string
}

// New builds a Discoverer for one region.
func New(store traits.SignalStore, reader traits.SignalReader, city string) *Discoverer {
	return &Discoverer{Store: store, Reader: reader, City: city}
}

func (d *Discoverer) existingURLsAndKeys(ctx context.Context) (urls map[string]bool, keys map[string]bool, err error) {
	existing, err := d.Store.GetActiveSources(ctx, d.City)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: load existing sources: %w", err)
	}
	urls = make(map[string]bool, len(existing))
	keys = make(map[string]bool, len(existing))
	for _, s := range existing {
		if s.URL != "" {
			urls[s.URL] = true
		}
		keys[s.CanonicalKey] = true
	}
	return urls, keys, nil
}

func newSource(canonicalKey, canonicalValue, url string, sourceType domain.SourceType, method domain.DiscoveryMethod, city, gapContext string, role domain.SourceRole, now time.Time) domain.Source {
	return domain.Source{
		CanonicalKey:    canonicalKey,
		CanonicalValue:  canonicalValue,
		URL:             url,
		SourceType:      sourceType,
		DiscoveryMethod: method,
		SourceRole:      role,
		City:            city,
		Weight:          method.InitialWeight(),
		QualityPenalty:  1.0,
		Active:          true,
		GapContext:      gapContext,
		CreatedAt:       now,
	}
}

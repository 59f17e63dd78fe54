// Package dedup implements the four-layer dedup cascade run against every
// extracted signal node before it is written.
package dedup

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/similarity"
	"rootsignal.dev/scout/internal/scout/traits"
)

// VectorThreshold is the per-type similarity floor for the L4 (and L1)
// vector match. Notice and Tension are stricter because false corroboration
// there misattributes severity; Gathering/Aid are looser to absorb
// paraphrase.
func VectorThreshold(t domain.NodeType) float64 {
	switch t {
	case domain.NodeTypeNotice:
		return 0.88
	case domain.NodeTypeTension:
		return 0.85
	case domain.NodeTypeNeed:
		return 0.80
	case domain.NodeTypeGathering, domain.NodeTypeAid:
		return 0.75
	default:
		return 0.80
	}
}

// Verdict is the outcome of running the cascade against one extracted node.
type Verdict int

const (
	VerdictNewSignal Verdict = iota
	VerdictCrossSourceMatch
	VerdictSameSourceReencounter
)

// Result carries the verdict plus whatever existing-signal info is needed to
// act on it.
type Result struct {
	Verdict    Verdict
	ExistingID uuid.UUID
	Similarity float64
}

// cacheEntry is one L1 run-local embedding record.
type cacheEntry struct {
	id        uuid.UUID
	nodeType  domain.NodeType
	sourceURL string
	embedding []float32
}

// Cache is the L1 run-local embedding dedup layer. Misses fall through to
// the graph's vector index (L4). Not safe for concurrent use without
// external locking — callers serialize per-source within a phase.
type Cache struct {
	entries []cacheEntry
}

// NewCache constructs an empty run-local cache.
func NewCache() *Cache {
	return &Cache{}
}

// Put records a signal's embedding in the run-local cache, making it
// available to subsequent lookups for the remainder of the run. Cascade calls
// it for L3 and L4 matches; an L2 hit carries no single signal ID and is not
// written into the cache.
func (c *Cache) Put(id uuid.UUID, nodeType domain.NodeType, sourceURL string, embedding []float32) {
	c.entries = append(c.entries, cacheEntry{id: id, nodeType: nodeType, sourceURL: sourceURL, embedding: embedding})
}

func (c *Cache) lookup(nodeType domain.NodeType, embedding []float32) (cacheEntry, float64, bool) {
	threshold := VectorThreshold(nodeType)
	var best cacheEntry
	bestSim := -1.0
	found := false
	for _, e := range c.entries {
		if e.nodeType != nodeType {
			continue
		}
		sim := similarity.Cosine(e.embedding, embedding)
		if sim >= threshold && sim > bestSim {
			best, bestSim, found = e, sim, true
		}
	}
	return best, bestSim, found
}

// Cascade runs the four-layer dedup check for one extracted node and returns
// exactly one verdict. The cheapest layer to hit wins; the cache is updated
// on an L3 or L4 hit so later nodes in the run benefit.
func Cascade(
	ctx context.Context,
	store traits.SignalStore,
	cache *Cache,
	nodeType domain.NodeType,
	title string,
	sourceURL string,
	embedding []float32,
	minLat, maxLat, minLng, maxLng float64,
) (Result, error) {
	// L1: run-local embedding cache.
	if entry, sim, ok := cache.lookup(nodeType, embedding); ok {
		return resultFor(entry.id, entry.sourceURL, sourceURL, sim), nil
	}

	normalizedTitle := normalizeTitle(title)

	// L2: exact normalized title under the same source URL. This layer acts
	// by URL (RefreshURLSignals), not by a single signal ID, so a hit here
	// short-circuits before the batched L3 lookup.
	existingTitles, err := store.ExistingTitlesForURL(ctx, sourceURL)
	if err != nil {
		return Result{}, err
	}
	for _, existing := range existingTitles {
		if normalizeTitle(existing) == normalizedTitle {
			return Result{Verdict: VerdictSameSourceReencounter, Similarity: 1.0}, nil
		}
	}

	// L3: batched title+type lookup, potentially across URLs.
	pairs := []traits.TitleTypePair{{LowerTitle: normalizedTitle, Type: nodeType}}
	hits, err := store.FindByTitlesAndTypes(ctx, pairs)
	if err != nil {
		return Result{}, err
	}
	if hit, ok := hits[pairs[0]]; ok {
		cache.Put(hit.ID, nodeType, hit.SourceURL, embedding)
		return resultFor(hit.ID, hit.SourceURL, sourceURL, 1.0), nil
	}

	// L4: vector + geobox k-NN in the graph's vector index.
	match, err := store.FindDuplicate(ctx, embedding, nodeType, VectorThreshold(nodeType), minLat, maxLat, minLng, maxLng)
	if err != nil {
		return Result{}, err
	}
	if match != nil {
		cache.Put(match.ExistingID, nodeType, match.SourceURL, embedding)
		return resultFor(match.ExistingID, match.SourceURL, sourceURL, match.Similarity), nil
	}

	return Result{Verdict: VerdictNewSignal}, nil
}

func resultFor(existingID uuid.UUID, existingURL, newURL string, similarity float64) Result {
	if existingURL == newURL {
		return Result{Verdict: VerdictSameSourceReencounter, ExistingID: existingID, Similarity: similarity}
	}
	return Result{Verdict: VerdictCrossSourceMatch, ExistingID: existingID, Similarity: similarity}
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

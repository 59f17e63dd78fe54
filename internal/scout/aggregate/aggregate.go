// Package aggregate holds PipelineState, the mutable run-local state for a
// scout run, and its reducer. Mutations happen in Apply (pure, synchronous),
// never scattered across handlers.
package aggregate

import (
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/dedup"
	"rootsignal.dev/scout/internal/scout/events"
)

// CollectedLink is a link seen during scraping, awaiting promotion to a
// Source.
type CollectedLink struct {
	URL          string
	DiscoveredOn string
}

// ExtractedBatch is a batch of extracted nodes for a single URL, stashed
// before SignalsExtracted is dispatched, consumed by the dedup handler.
type ExtractedBatch struct {
	Content      string
	Nodes        []any // typed signal structs from internal/scout/domain
	ResourceTags map[uuid.UUID][]string
	SignalTags   map[uuid.UUID][]string
	AuthorActors map[uuid.UUID]string
	SourceID     *string
}

// PendingNode is node data stashed by the dedup handler for the creation
// handler to consume.
type PendingNode struct {
	Node         any
	Embedding    []float32
	ContentHash  string
	ResourceTags []string
	SignalTags   []string
	AuthorName   *string
	SourceID     *string
}

// WiringContext is edge-wiring data that Apply stashes on NewSignalAccepted,
// kept separate from PendingNode. SignalStored removes only the PendingNode;
// nothing reads or clears WiringContexts.
type WiringContext struct {
	ResourceTags []string
	SignalTags   []string
	AuthorName   *string
	SourceID     *string
}

// PipelineState is the mutable state for a scout run, updated by Apply.
type PipelineState struct {
	// EmbedCache is the in-memory embedding cache for cross-batch dedup
	// (layer 1 of 4).
	EmbedCache *dedup.Cache

	// URLToCanonicalKey resolves a sanitized URL to its source's canonical
	// key.
	URLToCanonicalKey map[string]string

	// SourceSignalCounts tallies signals produced per source this run.
	SourceSignalCounts map[string]int

	// ExpansionQueries are queries extracted from signals for the Expansion
	// phase.
	ExpansionQueries []string

	// SocialExpansionTopics are social-platform topics queued for discovery.
	SocialExpansionTopics []string

	Stats ScoutStats

	// QueryAPIErrors holds canonical keys where the query API errored.
	QueryAPIErrors map[string]bool

	// ActorContexts is keyed by source canonical_key.
	ActorContexts map[string]string

	// URLToPubDate is the RSS/Atom pub_date keyed by article URL, used as a
	// fallback published_at.
	URLToPubDate map[string]time.Time

	// CollectedLinks accumulates links seen during scraping, awaiting
	// promotion.
	CollectedLinks []CollectedLink

	// ExtractedBatches holds batches awaiting dedup, keyed by source URL.
	ExtractedBatches map[string]ExtractedBatch

	// PendingNodes holds nodes awaiting creation, keyed by node ID.
	PendingNodes map[uuid.UUID]PendingNode

	// WiringContexts holds edge-wiring data stashed on NewSignalAccepted,
	// keyed by node ID; entries are never removed during a run.
	WiringContexts map[uuid.UUID]WiringContext
}

// New constructs an empty PipelineState from a pre-resolved URL map.
func New(urlToCanonicalKey map[string]string) *PipelineState {
	if urlToCanonicalKey == nil {
		urlToCanonicalKey = make(map[string]string)
	}
	return &PipelineState{
		EmbedCache:            dedup.NewCache(),
		URLToCanonicalKey:     urlToCanonicalKey,
		SourceSignalCounts:    make(map[string]int),
		ExpansionQueries:      nil,
		SocialExpansionTopics: nil,
		QueryAPIErrors:        make(map[string]bool),
		ActorContexts:         make(map[string]string),
		URLToPubDate:          make(map[string]time.Time),
		CollectedLinks:        nil,
		ExtractedBatches:      make(map[string]ExtractedBatch),
		PendingNodes:          make(map[uuid.UUID]PendingNode),
		WiringContexts:        make(map[uuid.UUID]WiringContext),
	}
}

// KnownURLs returns the set of URLs currently resolved to a source.
func (s *PipelineState) KnownURLs() map[string]bool {
	out := make(map[string]bool, len(s.URLToCanonicalKey))
	for u := range s.URLToCanonicalKey {
		out[u] = true
	}
	return out
}

// Apply reduces one event into state. Pure and synchronous — it never
// performs I/O.
func (s *PipelineState) Apply(e events.Event) {
	switch e.Kind {

	case events.KindContentFetched:
		s.Stats.URLsScraped++

	case events.KindContentUnchanged:
		s.Stats.URLsUnchanged++

	case events.KindContentFetchFailed:
		s.Stats.URLsFailed++

	case events.KindSignalsExtracted:
		if p, ok := e.Payload.(events.SignalsExtracted); ok {
			s.Stats.SignalsExtracted += p.Count
		}

	case events.KindNewSignalAccepted:
		p, ok := e.Payload.(events.NewSignalAccepted)
		if !ok {
			return
		}
		s.Stats.SignalsStored++
		if idx := p.NodeType.TypeIndex(); idx >= 0 {
			s.Stats.ByType[idx]++
		}
		s.WiringContexts[p.NodeID] = WiringContext{
			ResourceTags: p.PendingNode.ResourceTags,
			SignalTags:   p.PendingNode.SignalTags,
			AuthorName:   p.PendingNode.AuthorName,
			SourceID:     p.PendingNode.SourceID,
		}
		s.PendingNodes[p.NodeID] = PendingNode{
			Node:         p.PendingNode.Node,
			Embedding:    p.PendingNode.Embedding,
			ContentHash:  p.PendingNode.ContentHash,
			ResourceTags: p.PendingNode.ResourceTags,
			SignalTags:   p.PendingNode.SignalTags,
			AuthorName:   p.PendingNode.AuthorName,
			SourceID:     p.PendingNode.SourceID,
		}

	case events.KindCrossSourceMatchDetected, events.KindSameSourceReencountered:
		s.Stats.SignalsDeduplicated++

	case events.KindUrlProcessed:
		if p, ok := e.Payload.(events.UrlProcessed); ok {
			s.SourceSignalCounts[p.CanonicalKey] += p.SignalsCreated
		}

	case events.KindLinkCollected:
		if p, ok := e.Payload.(events.LinkCollected); ok {
			s.CollectedLinks = append(s.CollectedLinks, CollectedLink{URL: p.URL, DiscoveredOn: p.DiscoveredOn})
		}

	case events.KindExpansionQueryCollected:
		if p, ok := e.Payload.(events.ExpansionQueryCollected); ok {
			s.ExpansionQueries = append(s.ExpansionQueries, p.Query)
			s.Stats.ExpansionQueriesCollected++
		}

	case events.KindSocialTopicCollected:
		if p, ok := e.Payload.(events.SocialTopicCollected); ok {
			s.SocialExpansionTopics = append(s.SocialExpansionTopics, p.Topic)
			s.Stats.ExpansionSocialTopicsQueued++
		}

	case events.KindSocialPostsFetched:
		if p, ok := e.Payload.(events.SocialPostsFetched); ok {
			s.Stats.SocialMediaPosts += p.Count
		}

	case events.KindFreshnessRecorded:
		if p, ok := e.Payload.(events.FreshnessRecorded); ok {
			switch p.Bucket {
			case events.FreshnessWithin7d:
				s.Stats.Fresh7d++
			case events.FreshnessWithin30d:
				s.Stats.Fresh30d++
			case events.FreshnessWithin90d:
				s.Stats.Fresh90d++
			}
		}

	case events.KindSignalStored:
		if p, ok := e.Payload.(events.SignalStored); ok {
			delete(s.PendingNodes, p.NodeID)
		}

	case events.KindDedupCompleted:
		if p, ok := e.Payload.(events.DedupCompleted); ok {
			delete(s.ExtractedBatches, p.URL)
		}

	case events.KindLinksPromoted:
		s.CollectedLinks = nil

	case events.KindSourceDiscovered:
		s.Stats.SourcesDiscovered++

	// Phase/engine lifecycle and failure events carry no state mutation;
	// they exist for persistence/projection/observability only.
	case events.KindPhaseStarted, events.KindPhaseCompleted,
		events.KindExtractionFailed, events.KindActorEnrichmentCompleted,
		events.KindEngineStarted, events.KindEntityExpired:
	}
}

// Package events defines the closed event vocabulary the scout engine
// dispatches. Every event is persisted exactly once (priority-0 handler),
// applied to PipelineState exactly once (priority-1), and projected to the
// graph when projectable (priority-2), before any domain handler sees it.
package events

import (
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
)

// Kind names every event variant. A closed enum, not an open string, so a
// handler's switch on Kind is exhaustive at compile time via the
// accompanying linter convention (see tools/linters/enumvalidator).
type Kind string

const (
	// World/system lifecycle.
	KindEngineStarted    Kind = "engine_started"
	KindPhaseStarted     Kind = "phase_started"
	KindPhaseCompleted   Kind = "phase_completed"
	KindEntityExpired    Kind = "entity_expired"

	// Content fetching.
	KindContentFetched     Kind = "content_fetched"
	KindContentUnchanged   Kind = "content_unchanged"
	KindContentFetchFailed Kind = "content_fetch_failed"

	// Extraction.
	KindSignalsExtracted Kind = "signals_extracted"
	KindExtractionFailed Kind = "extraction_failed"

	// Dedup verdicts.
	KindNewSignalAccepted       Kind = "new_signal_accepted"
	KindCrossSourceMatchDetected Kind = "cross_source_match_detected"
	KindSameSourceReencountered Kind = "same_source_reencountered"
	KindDedupCompleted          Kind = "dedup_completed"

	// Signal lifecycle.
	KindSignalStored Kind = "signal_stored"
	KindUrlProcessed Kind = "url_processed"

	// Links and expansion.
	KindLinkCollected          Kind = "link_collected"
	KindLinksPromoted          Kind = "links_promoted"
	KindExpansionQueryCollected Kind = "expansion_query_collected"
	KindSocialTopicCollected   Kind = "social_topic_collected"

	// Social.
	KindSocialPostsFetched Kind = "social_posts_fetched"

	// Freshness.
	KindFreshnessRecorded Kind = "freshness_recorded"

	// Discovery.
	KindSourceDiscovered Kind = "source_discovered"

	// Enrichment.
	KindActorEnrichmentCompleted Kind = "actor_enrichment_completed"
)

// FreshnessBucket classifies how recently a signal was last confirmed
// active, for the fresh_7d/fresh_30d/fresh_90d stats buckets.
type FreshnessBucket string

const (
	FreshnessWithin7d  FreshnessBucket = "within_7d"
	FreshnessWithin30d FreshnessBucket = "within_30d"
	FreshnessWithin90d FreshnessBucket = "within_90d"
	FreshnessOlder     FreshnessBucket = "older"
	FreshnessUnknown   FreshnessBucket = "unknown"
)

// Event is one dispatched occurrence. Payload is one of the Kind-specific
// structs below; handlers type-assert after checking Kind, giving an
// enum-match-per-variant shape without needing a Go sum type.
type Event struct {
	ID           uuid.UUID
	ParentID     *uuid.UUID
	RunID        string
	Kind         Kind
	Timestamp    time.Time
	Payload      any
}

// --- Content fetching payloads ---

type ContentFetched struct {
	URL         string
	ContentHash string
}

type ContentUnchanged struct {
	URL string
}

type ContentFetchFailed struct {
	URL    string
	Reason string
}

// --- Extraction payloads ---

type SignalsExtracted struct {
	URL   string
	Count int
}

type ExtractionFailed struct {
	URL    string
	Reason string
}

// --- Dedup payloads ---

type NewSignalAccepted struct {
	NodeID      uuid.UUID
	NodeType    domain.NodeType
	PendingNode PendingNode
}

// PendingNode carries everything handle_create needs to write a signal:
// the typed node (domain.Gathering/Aid/Need/Notice/Tension) and its
// NodeMeta, embedding, and content hash, plus the edge-wiring data the
// reducer stashes into WiringContext on acceptance. Node/Meta/Embedding
// travel through the event (rather than being looked up from
// PipelineState.ExtractedBatches by the handler) so handle_create can run
// as a pure reaction to the dispatched event.
type PendingNode struct {
	Node         any
	Meta         domain.NodeMeta
	Embedding    []float32
	ContentHash  string
	ResourceTags []string
	SignalTags   []string
	AuthorName   *string
	SourceID     *string // Source.CanonicalKey, for LinkSignalToSource
}

type CrossSourceMatchDetected struct {
	NodeID     uuid.UUID
	NodeType   domain.NodeType
	ExistingID uuid.UUID
	SourceURL  string
	Similarity float64
}

type SameSourceReencountered struct {
	URL        string
	ExistingID uuid.UUID
	NodeType   domain.NodeType
}

type DedupCompleted struct {
	URL string
}

// --- Signal lifecycle payloads ---

type SignalStored struct {
	NodeID uuid.UUID
}

type UrlProcessed struct {
	CanonicalKey    string
	SignalsCreated  int
}

// --- Links / expansion payloads ---

type LinkCollected struct {
	URL          string
	DiscoveredOn string
}

type LinksPromoted struct {
	Count int
}

type ExpansionQueryCollected struct {
	Query    string
	SourceID uuid.UUID
}

type SocialTopicCollected struct {
	Topic string
}

// --- Social payloads ---

type SocialPostsFetched struct {
	Identifier string
	Count      int
}

// --- Freshness payloads ---

type FreshnessRecorded struct {
	NodeID uuid.UUID
	Bucket FreshnessBucket
}

// --- Discovery payloads ---

type SourceDiscovered struct {
	CanonicalKey string
	Method       domain.DiscoveryMethod
}

// --- Enrichment payloads ---

type ActorEnrichmentCompleted struct {
	ActorID uuid.UUID
}

// --- World/system payloads ---

type PhaseStarted struct {
	Phase string
}

type PhaseCompleted struct {
	Phase string
}

type EntityExpired struct {
	NodeID uuid.UUID
	Reason string
}

type EngineStarted struct {
	ScopeName string
}

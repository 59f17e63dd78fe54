// Package runlog is the append-only per-run debugging journal: a flat,
// human-readable record of every event a run dispatched, kept distinct from
// the Postgres-backed eventstore package (which exists for replay and
// invariant verification, not for a person to read). A *Journal
// satisfies engine.EventAppender and is wired in as Deps.RunLog, so the
// engine hands it every dispatched event unconditionally, in settlement
// order, regardless of whether that event is projectable.
package runlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rootsignal.dev/scout/internal/scout/events"
)

// Entry is one line of the journal.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Kind      events.Kind
	Summary   string
}

// Journal accumulates Entry records for a single run. Safe for concurrent
// use since the engine may recurse into children from within a handler
// callback.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Journal.
func New() *Journal {
	return &Journal{}
}

// Append records one event. Never fails — a journal write must never abort
// a run; observability can't break the pipeline it's observing.
func (j *Journal) Append(_ context.Context, e events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, Entry{
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Kind:      e.Kind,
		Summary:   summarize(e),
	})
	return nil
}

// Entries returns a snapshot of the journal in dispatch order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Reset clears the journal, for reuse across runs in long-lived processes
// such as the evolution harness.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// summarize renders a one-line, human-readable description of an event's
// payload for the handful of kinds the run-log format calls out explicitly
// (expansion sources, collected links, actor enrichment, scrape and dedup
// verdicts); everything else falls back to its bare Kind.
func summarize(e events.Event) string {
	switch p := e.Payload.(type) {
	case events.SourceDiscovered:
		return fmt.Sprintf("source discovered canonical_key=%s method=%s", p.CanonicalKey, p.Method)
	case events.LinkCollected:
		return fmt.Sprintf("link collected url=%s discovered_on=%s", p.URL, p.DiscoveredOn)
	case events.ActorEnrichmentCompleted:
		return fmt.Sprintf("actor enrichment completed actor_id=%s", p.ActorID)
	case events.ContentFetched:
		return fmt.Sprintf("fetched url=%s hash=%s", p.URL, p.ContentHash)
	case events.ContentUnchanged:
		return fmt.Sprintf("unchanged url=%s", p.URL)
	case events.ContentFetchFailed:
		return fmt.Sprintf("fetch failed url=%s reason=%s", p.URL, p.Reason)
	case events.SignalsExtracted:
		return fmt.Sprintf("extracted url=%s count=%d", p.URL, p.Count)
	case events.ExtractionFailed:
		return fmt.Sprintf("extraction failed url=%s reason=%s", p.URL, p.Reason)
	case events.NewSignalAccepted:
		return fmt.Sprintf("new signal accepted node_id=%s type=%s", p.NodeID, p.NodeType)
	case events.CrossSourceMatchDetected:
		return fmt.Sprintf("cross-source match node_id=%s existing=%s similarity=%.3f", p.NodeID, p.ExistingID, p.Similarity)
	case events.SameSourceReencountered:
		return fmt.Sprintf("same-source reencounter url=%s existing=%s", p.URL, p.ExistingID)
	case events.FreshnessRecorded:
		return fmt.Sprintf("freshness recorded node_id=%s bucket=%s", p.NodeID, p.Bucket)
	case events.EntityExpired:
		return fmt.Sprintf("entity expired node_id=%s reason=%s", p.NodeID, p.Reason)
	case events.PhaseStarted:
		return fmt.Sprintf("phase started %s", p.Phase)
	case events.PhaseCompleted:
		return fmt.Sprintf("phase completed %s", p.Phase)
	case events.EngineStarted:
		return fmt.Sprintf("engine started scope=%s", p.ScopeName)
	case events.UrlProcessed:
		return fmt.Sprintf("url processed canonical_key=%s signals_created=%d", p.CanonicalKey, p.SignalsCreated)
	default:
		return string(e.Kind)
	}
}

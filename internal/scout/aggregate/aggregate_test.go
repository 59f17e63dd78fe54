package aggregate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/events"
)

func TestApply_ReplayProducesSameStats(t *testing.T) {
	nodeID := uuid.New()
	log := []events.Event{
		{Kind: events.KindContentFetched},
		{Kind: events.KindContentFetched},
		{Kind: events.KindContentUnchanged},
		{Kind: events.KindSignalsExtracted, Payload: events.SignalsExtracted{Count: 3}},
		{Kind: events.KindNewSignalAccepted, Payload: events.NewSignalAccepted{
			NodeID:   nodeID,
			NodeType: domain.NodeTypeTension,
		}},
		{Kind: events.KindCrossSourceMatchDetected},
		{Kind: events.KindSignalStored, Payload: events.SignalStored{NodeID: nodeID}},
		{Kind: events.KindFreshnessRecorded, Payload: events.FreshnessRecorded{Bucket: events.FreshnessWithin7d}},
		{Kind: events.KindSourceDiscovered},
	}

	replay := func() *PipelineState {
		s := New(nil)
		for _, e := range log {
			s.Apply(e)
		}
		return s
	}

	first := replay()
	second := replay()

	assert.Equal(t, first.Stats, second.Stats, "replaying the same event log must produce identical stats")
	assert.Equal(t, 2, first.Stats.URLsScraped)
	assert.Equal(t, 1, first.Stats.URLsUnchanged)
	assert.Equal(t, 3, first.Stats.SignalsExtracted)
	assert.Equal(t, 1, first.Stats.SignalsStored)
	assert.Equal(t, 1, first.Stats.SignalsDeduplicated)
	assert.Equal(t, 1, first.Stats.Fresh7d)
	assert.Equal(t, 1, first.Stats.SourcesDiscovered)
	assert.Equal(t, 1, first.Stats.ByType[domain.NodeTypeTension.TypeIndex()])

	// signal_stored clears the pending-node stash.
	_, stillPending := first.PendingNodes[nodeID]
	assert.False(t, stillPending)
}

func TestApply_DedupCompletedClearsBatch(t *testing.T) {
	s := New(nil)
	s.ExtractedBatches["https://x.org/a"] = ExtractedBatch{Content: "..."}
	s.Apply(events.Event{Kind: events.KindDedupCompleted, Payload: events.DedupCompleted{URL: "https://x.org/a"}})
	_, ok := s.ExtractedBatches["https://x.org/a"]
	assert.False(t, ok)
}

func TestApply_LinksPromotedClearsCollectedLinks(t *testing.T) {
	s := New(nil)
	s.CollectedLinks = []CollectedLink{{URL: "https://x.org/b"}}
	s.Apply(events.Event{Kind: events.KindLinksPromoted})
	assert.Empty(t, s.CollectedLinks)
}

func TestApply_PhaseLifecycleEventsAreNoOps(t *testing.T) {
	s := New(nil)
	before := s.Stats
	s.Apply(events.Event{Kind: events.KindPhaseStarted, Payload: events.PhaseStarted{Phase: "reap"}})
	s.Apply(events.Event{Kind: events.KindPhaseCompleted, Payload: events.PhaseCompleted{Phase: "reap"}})
	assert.Equal(t, before, s.Stats)
}

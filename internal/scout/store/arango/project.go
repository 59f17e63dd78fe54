package arango

import (
	"context"
	"log/slog"

	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
)

var _ engine.GraphProjector = (*Store)(nil)

// Project implements engine.GraphProjector for the handful of world/system
// event kinds the engine marks projectable (engine_started, phase_started,
// phase_completed, entity_expired, source_discovered). Every one of these
// already has its canonical graph mutation performed directly by the
// domain handler that precedes it in the causal tree — ReapExpired deletes
// or demotes the node before EntityExpired is dispatched, UpsertSource's
// canonical_key MERGE runs before SourceDiscovered is dispatched — so
// there is no second graph write left to perform here. What's left is
// exactly the structured observability record basegraph's relay writes for
// every state transition it projects: a slog line carrying the run and
// event identity, not a collection write.
func (s *Store) Project(ctx context.Context, e events.Event) error {
	slog.InfoContext(ctx, "scout.graph_projected",
		"kind", string(e.Kind),
		"run_id", e.RunID,
		"event_id", e.ID.String(),
	)
	return nil
}

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/traits"
)

// Reap runs the Reap phase: expired Gathering (past end date) and Need (past
// staleness horizon) signals are removed, not mutated. The store also prunes
// Actors left with zero ACTED_IN edges as part of the same pass. Dispatches
// one EntityExpired per expired category, since traits.ReapStats only
// reports counts, not the removed IDs.
func Reap(ctx context.Context, e *engine.Engine, deps *engine.Deps, now time.Time) (traits.ReapStats, error) {
	stats, err := deps.Store.ReapExpired(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("reap: %w", err)
	}

	if stats.GatheringsExpired > 0 {
		if err := e.Dispatch(ctx, events.Event{
			Kind:    events.KindEntityExpired,
			Payload: events.EntityExpired{NodeID: uuid.Nil, Reason: "past end date"},
		}); err != nil {
			return stats, err
		}
	}
	if stats.NeedsExpired > 0 {
		if err := e.Dispatch(ctx, events.Event{
			Kind:    events.KindEntityExpired,
			Payload: events.EntityExpired{NodeID: uuid.Nil, Reason: "staleness horizon"},
		}); err != nil {
			return stats, err
		}
	}
	if stats.ActorsPruned > 0 {
		if err := e.Dispatch(ctx, events.Event{
			Kind:    events.KindEntityExpired,
			Payload: events.EntityExpired{NodeID: uuid.Nil, Reason: "no acted_in edges"},
		}); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

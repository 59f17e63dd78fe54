package memory

import (
	"context"

	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
)

var _ engine.GraphProjector = (*Store)(nil)

// Project implements engine.GraphProjector. It records every projected
// event's kind (the actual graph mutation for these lifecycle kinds already
// happened via the preceding domain handler's SignalStore calls) so tests
// can assert on what the engine forwarded to the projector, the same shape
// as engine_test.go's recordingProjector fake.
func (s *Store) Project(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projected = append(s.projected, e.Kind)
	return nil
}

// Projected returns every event kind handed to Project, in order.
func (s *Store) Projected() []events.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Kind, len(s.projected))
	copy(out, s.projected)
	return out
}

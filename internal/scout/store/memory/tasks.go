package memory

import (
	"context"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/traits"
)

// CreateScoutTask appends a beacon-detected task. Not part of
// traits.SignalStore/SignalReader — beacon.TaskStore is the narrower port
// beacon actually depends on; Store satisfies it directly.
func (s *Store) CreateScoutTask(_ context.Context, task traits.ScoutTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.tasks = append(s.tasks, task)
	return nil
}

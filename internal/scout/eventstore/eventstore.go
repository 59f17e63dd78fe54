// Package eventstore is the priority-0 persist handler's sole dependency:
// an append-only Postgres log of every event a scout run dispatches. Uses
// pgx/v5 directly (no generated query layer), since the write shape is a
// single fixed INSERT rather than the varied query surface a generated
// layer earns its keep on.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"rootsignal.dev/scout/internal/scout/events"
)

// Store appends events to scout_run_events, keyed to a scout_runs row per
// run_id. Safe for concurrent use — every call is a single pooled INSERT.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool (core/db.DB.Pool()).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema is the DDL for the two tables this store depends on, applied by
// whatever migration tool the deployment uses (out of this package's
// scope — kept here as the single source of truth for the shape).
const Schema = `
CREATE TABLE IF NOT EXISTS scout_runs (
	run_id      TEXT PRIMARY KEY,
	scope_name  TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	failed      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS scout_run_events (
	id         UUID PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES scout_runs(run_id),
	parent_id  UUID,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS scout_run_events_run_id_idx ON scout_run_events (run_id);
`

// StartRun inserts the scout_runs row a run's events will reference.
func (s *Store) StartRun(ctx context.Context, runID, scopeName string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scout_runs (run_id, scope_name, started_at) VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO NOTHING`,
		runID, scopeName, startedAt)
	if err != nil {
		return fmt.Errorf("eventstore: start run: %w", err)
	}
	return nil
}

// FinishRun marks a run's completion time and whether it failed.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, failed bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scout_runs SET finished_at = $2, failed = $3 WHERE run_id = $1`,
		runID, finishedAt, failed)
	if err != nil {
		return fmt.Errorf("eventstore: finish run: %w", err)
	}
	return nil
}

// Append persists one event. Matches the engine.EventAppender interface.
func (s *Store) Append(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("eventstore: marshal payload for %s: %w", e.Kind, err)
	}

	var parentID any
	if e.ParentID != nil {
		parentID = *e.ParentID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scout_run_events (id, run_id, parent_id, kind, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.RunID, parentID, string(e.Kind), payload, e.Timestamp)
	if err != nil {
		return fmt.Errorf("eventstore: append %s: %w", e.Kind, err)
	}
	return nil
}

// StoredEvent is one row read back from scout_run_events, used by the
// evolution harness and introspection tooling.
type StoredEvent struct {
	ID         uuid.UUID
	ParentID   *uuid.UUID
	RunID      string
	Kind       events.Kind
	Payload    json.RawMessage
	OccurredAt time.Time
}

// LoadRun reads back every event for a run, ordered by occurred_at and then
// by event id (events with equal timestamps are not returned in insertion
// order), for replay
// (replaying a run's event log into a fresh PipelineState reproduces the
// same ScoutStats) or introspection.
func (s *Store) LoadRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, parent_id, run_id, kind, payload, occurred_at
		 FROM scout_run_events WHERE run_id = $1 ORDER BY occurred_at ASC, id ASC`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: load run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var se StoredEvent
		var parentID *uuid.UUID
		if err := rows.Scan(&se.ID, &parentID, &se.RunID, &se.Kind, &se.Payload, &se.OccurredAt); err != nil {
			return nil, fmt.Errorf("eventstore: scan row: %w", err)
		}
		se.ParentID = parentID
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: iterate rows: %w", err)
	}
	return out, nil
}

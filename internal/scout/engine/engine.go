// Package engine is the handler-DAG dispatcher scout runs drive through.
// Every event passes a fixed infrastructure layer (persist, apply, project,
// each run in priority order) before domain handlers see it; domain
// handlers may emit child events, and a dispatch only returns once the full
// causal tree has settled. Handlers register into a plain priority-sorted
// slice rather than a macro-generated table, since Go has no attribute
// macros or trait downcasting to lean on.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/aggregate"
	"rootsignal.dev/scout/internal/scout/budget"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/traits"
)

// Priority bands. Infrastructure handlers occupy 0-2; everything else is a
// domain handler and runs at Default.
const (
	PriorityPersist = 0
	PriorityApply   = 1
	PriorityProject = 2
	PriorityDefault = 10
)

// EventAppender persists one event; the priority-0 handler's sole
// dependency. Implemented by internal/scout/eventstore.
type EventAppender interface {
	Append(ctx context.Context, e events.Event) error
}

// GraphProjector writes a projectable event's canonical entities to the
// signal graph; the priority-2 handler's sole dependency. Implemented by
// internal/scout/store/arango.
type GraphProjector interface {
	Project(ctx context.Context, e events.Event) error
}

// projectableKinds are the event kinds the priority-2 handler forwards to
// the graph projector: run-lifecycle events plus entity expiry and source
// discovery. Everything else (signal/scrape/discovery-internal bookkeeping)
// is not projectable; the domain handlers that follow already write those
// nodes/edges directly via SignalStore.
var projectableKinds = map[events.Kind]bool{
	events.KindEngineStarted:     true,
	events.KindPhaseStarted:      true,
	events.KindPhaseCompleted:    true,
	events.KindEntityExpired:     true,
	events.KindSourceDiscovered:  true,
}

// Deps are the dependencies shared by every handler.
type Deps struct {
	State          *aggregate.PipelineState
	Store          traits.SignalStore
	EventStore     EventAppender // nil in tests that don't assert persistence
	GraphProjector GraphProjector // nil in tests that don't assert projection
	RunLog         EventAppender // nil in tests; the per-run debugging journal, every event unconditionally
	Budget         *budget.Tracker
	Cancellation   *budget.Cancellation
	RunID          string

	// Captured, when non-nil, receives every dispatched event in settlement
	// order. Test-only, for asserting on dispatch order and causal fan-out.
	Captured *[]events.Event
}

// HandlerFunc reacts to one event and may emit child events for the engine
// to settle before the top-level dispatch returns.
type HandlerFunc func(ctx context.Context, e events.Event, deps *Deps) ([]events.Event, error)

// Handler is one registered reaction. Kinds nil means "runs for every
// event"; a non-nil set restricts it to those kinds, which is how domain
// handlers subscribe to only the events their domain produces.
type Handler struct {
	ID       string
	Priority int
	Kinds    []events.Kind
	Fn       HandlerFunc
}

func (h Handler) matches(k events.Kind) bool {
	if h.Kinds == nil {
		return true
	}
	for _, want := range h.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Engine dispatches events through the registered handlers in priority
// order, settling each event's full causal subtree before returning.
type Engine struct {
	deps     *Deps
	handlers []Handler
}

// New builds an engine around deps, with no handlers registered.
func New(deps *Deps) *Engine {
	return &Engine{deps: deps}
}

// WithHandler registers a handler and returns the engine for chaining.
func (e *Engine) WithHandler(h Handler) *Engine {
	e.handlers = append(e.handlers, h)
	sort.SliceStable(e.handlers, func(i, j int) bool {
		return e.handlers[i].Priority < e.handlers[j].Priority
	})
	return e
}

// Dispatch processes one top-level event and settles its entire causal
// tree synchronously: a child event emitted by a domain handler is
// processed (through every handler, in priority order) before Dispatch
// returns.
func (e *Engine) Dispatch(ctx context.Context, ev events.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.RunID == "" {
		ev.RunID = e.deps.RunID
	}
	return e.settle(ctx, ev)
}

func (e *Engine) settle(ctx context.Context, ev events.Event) error {
	if e.deps.Captured != nil {
		*e.deps.Captured = append(*e.deps.Captured, ev)
	}

	if err := e.persist(ctx, ev); err != nil {
		return fmt.Errorf("engine: persist %s: %w", ev.Kind, err)
	}
	e.apply(ev)
	if err := e.project(ctx, ev); err != nil {
		return fmt.Errorf("engine: project %s: %w", ev.Kind, err)
	}
	if err := e.logRun(ctx, ev); err != nil {
		return fmt.Errorf("engine: run log %s: %w", ev.Kind, err)
	}

	for _, h := range e.handlers {
		if h.Priority < PriorityDefault || !h.matches(ev.Kind) {
			continue
		}
		children, err := h.Fn(ctx, ev, e.deps)
		if err != nil {
			return fmt.Errorf("engine: handler %q on %s: %w", h.ID, ev.Kind, err)
		}
		for _, child := range children {
			child.ParentID = &ev.ID
			if child.ID == uuid.Nil {
				child.ID = uuid.New()
			}
			if child.RunID == "" {
				child.RunID = ev.RunID
			}
			if err := e.settle(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// persist is the priority-0 infrastructure handler: append the event to the
// run's event store. A nil EventStore (unit tests) is a no-op.
func (e *Engine) persist(ctx context.Context, ev events.Event) error {
	if e.deps.EventStore == nil {
		return nil
	}
	return e.deps.EventStore.Append(ctx, ev)
}

// apply is the priority-1 infrastructure handler: reduce the event into
// PipelineState. Pure and synchronous, never returns an error.
func (e *Engine) apply(ev events.Event) {
	if e.deps.State == nil {
		return
	}
	e.deps.State.Apply(ev)
}

// project is the priority-2 infrastructure handler: forward projectable
// events to the graph projector. A nil GraphProjector (unit tests) or a
// non-projectable event kind is a no-op.
func (e *Engine) project(ctx context.Context, ev events.Event) error {
	if e.deps.GraphProjector == nil || !projectableKinds[ev.Kind] {
		return nil
	}
	return e.deps.GraphProjector.Project(ctx, ev)
}

// logRun appends every event, projectable or not, to the per-run debugging
// journal. A nil RunLog (unit tests, or a process that doesn't care to keep
// one) is a no-op.
func (e *Engine) logRun(ctx context.Context, ev events.Event) error {
	if e.deps.RunLog == nil {
		return nil
	}
	return e.deps.RunLog.Append(ctx, ev)
}

package engine_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rootsignal.dev/scout/internal/scout/aggregate"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
)

type recordingAppender struct{ kinds []events.Kind }

func (r *recordingAppender) Append(ctx context.Context, e events.Event) error {
	r.kinds = append(r.kinds, e.Kind)
	return nil
}

type recordingProjector struct{ kinds []events.Kind }

func (r *recordingProjector) Project(ctx context.Context, e events.Event) error {
	r.kinds = append(r.kinds, e.Kind)
	return nil
}

var _ = Describe("Engine", func() {
	var (
		appender  *recordingAppender
		projector *recordingProjector
		state     *aggregate.PipelineState
		captured  []events.Event
		eng       *engine.Engine
	)

	BeforeEach(func() {
		appender = &recordingAppender{}
		projector = &recordingProjector{}
		state = aggregate.New(nil)
		captured = nil
		eng = engine.New(&engine.Deps{
			State:          state,
			EventStore:     appender,
			GraphProjector: projector,
			RunID:          "run-1",
			Captured:       &captured,
		})
	})

	It("persists and applies every event regardless of handler registration", func() {
		err := eng.Dispatch(context.Background(), events.Event{
			Kind:    events.KindContentFetched,
			Payload: events.ContentFetched{URL: "https://x.org"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(appender.kinds).To(ConsistOf(events.KindContentFetched))
		Expect(state.Stats.URLsScraped).To(Equal(1))
	})

	It("only projects projectable event kinds", func() {
		Expect(eng.Dispatch(context.Background(), events.Event{Kind: events.KindPhaseStarted})).To(Succeed())
		Expect(eng.Dispatch(context.Background(), events.Event{Kind: events.KindContentFetched})).To(Succeed())

		Expect(projector.kinds).To(ConsistOf(events.KindPhaseStarted))
	})

	It("settles a domain handler's emitted children before Dispatch returns", func() {
		order := []events.Kind{}
		eng.WithHandler(engine.Handler{
			ID:       "parent_handler",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindSignalsExtracted},
			Fn: func(ctx context.Context, e events.Event, deps *engine.Deps) ([]events.Event, error) {
				order = append(order, e.Kind)
				return []events.Event{{Kind: events.KindDedupCompleted, Payload: events.DedupCompleted{URL: "https://x.org"}}}, nil
			},
		})
		eng.WithHandler(engine.Handler{
			ID:       "child_handler",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindDedupCompleted},
			Fn: func(ctx context.Context, e events.Event, deps *engine.Deps) ([]events.Event, error) {
				order = append(order, e.Kind)
				return nil, nil
			},
		})

		err := eng.Dispatch(context.Background(), events.Event{
			Kind:    events.KindSignalsExtracted,
			Payload: events.SignalsExtracted{Count: 1},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]events.Kind{events.KindSignalsExtracted, events.KindDedupCompleted}))
		Expect(captured).To(HaveLen(2), "top-level event plus its one child should both be captured")
	})

	It("tags child events with the parent's ID and run ID", func() {
		var childParent *string
		eng.WithHandler(engine.Handler{
			ID:       "emit_child",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindSignalsExtracted},
			Fn: func(ctx context.Context, e events.Event, deps *engine.Deps) ([]events.Event, error) {
				return []events.Event{{Kind: events.KindDedupCompleted}}, nil
			},
		})
		eng.WithHandler(engine.Handler{
			ID:       "observe_child",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindDedupCompleted},
			Fn: func(ctx context.Context, e events.Event, deps *engine.Deps) ([]events.Event, error) {
				s := e.ParentID.String()
				childParent = &s
				Expect(e.RunID).To(Equal("run-1"))
				return nil, nil
			},
		})

		Expect(eng.Dispatch(context.Background(), events.Event{Kind: events.KindSignalsExtracted})).To(Succeed())
		Expect(childParent).NotTo(BeNil())
	})
})

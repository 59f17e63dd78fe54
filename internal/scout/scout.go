// Package scout wires every phase's component into the nine-stage run loop:
// Schedule, Reap, Scrape-Tension, Mid-run Discovery, Scrape-Response,
// Synthesis, Expansion, Finalize, Enrichment. The engine
// (internal/scout/engine) settles one event's causal tree; Scout drives the
// sequence of top-level dispatches a single run consists of.
package scout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/aggregate"
	"rootsignal.dev/scout/internal/scout/beacon"
	"rootsignal.dev/scout/internal/scout/budget"
	"rootsignal.dev/scout/internal/scout/discovery"
	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/handlers"
	"rootsignal.dev/scout/internal/scout/linker"
	"rootsignal.dev/scout/internal/scout/scheduler"
	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	defaultMaxGapQueriesPerRun       = 5
	defaultMaxMentionPromotionsPerRun = 10
	defaultMaxScoutTasksPerRun       = 3
	synthesisLookback                = 72 * time.Hour
)

// Scout drives one full run over a region for a driver process (cmd/scout)
// or a test harness. Every field is a dependency gathered once at process
// start; Run itself is stateless across calls except for whatever the
// injected Deps.State accumulates.
type Scout struct {
	Engine *engine.Engine
	Deps   *engine.Deps

	Store  traits.SignalStore
	Reader traits.SignalReader

	Scraper    *handlers.Scraper
	Discoverer *discovery.Discoverer
	Linker     *linker.Linker

	SeedGenerator discovery.SeedQueryGenerator
	GapGenerator  discovery.GapQueryGenerator
	Embedder      discovery.Embedder

	Scope domain.ScoutScope

	Budget       *budget.Tracker
	Cancellation *budget.Cancellation

	// MaxGapQueriesPerRun bounds gap-analysis LLM calls. Zero means
	// defaultMaxGapQueriesPerRun.
	MaxGapQueriesPerRun int

	// MaxMentionPromotionsPerRun bounds actor-mention source creation. Zero
	// means defaultMaxMentionPromotionsPerRun.
	MaxMentionPromotionsPerRun int

	// MaxScoutTasksPerRun bounds beacon-detected follow-up task creation.
	// Zero means defaultMaxScoutTasksPerRun.
	MaxScoutTasksPerRun int
}

// RunStats is what one completed (or cancelled) run reports to its caller,
// layering phase-level counts the aggregate's pure reducer can't see
// (discovery/linker/beacon/budget summaries) on top of aggregate.ScoutStats.
type RunStats struct {
	Pipeline aggregate.ScoutStats

	SourcesScheduled  int
	SourcesExplored   int
	ReapStats         traits.ReapStats
	Discovery         discovery.Stats
	Linker            linker.Stats
	SimilarityEdges   int
	InvestigatorQueries int
	SeveritiesRaised int
	ActorsRelocated  int
	MentionsPromoted int
	BeaconTasksOpened int

	Cancelled bool
	SpentCents int64
}

func (s *Scout) maxGapQueriesPerRun() int {
	if s.MaxGapQueriesPerRun > 0 {
		return s.MaxGapQueriesPerRun
	}
	return defaultMaxGapQueriesPerRun
}

func (s *Scout) maxMentionPromotionsPerRun() int {
	if s.MaxMentionPromotionsPerRun > 0 {
		return s.MaxMentionPromotionsPerRun
	}
	return defaultMaxMentionPromotionsPerRun
}

func (s *Scout) maxScoutTasksPerRun() int {
	if s.MaxScoutTasksPerRun > 0 {
		return s.MaxScoutTasksPerRun
	}
	return defaultMaxScoutTasksPerRun
}

// Run executes one pass over Scope, in the fixed nine-phase order. A
// phase's own error is logged and swallowed — one bad source or one failed
// LLM call narrows that phase's yield, it does not abort the run — except
// for Schedule and Reap, whose errors are structural (can't scrape a
// source list we failed to load) and are returned directly. Cancellation
// (Deps.Cancellation) and budget exhaustion are checked between phases;
// either one ends the run early with whatever has already been dispatched
// left in place.
func (s *Scout) Run(ctx context.Context, now time.Time) (RunStats, error) {
	var stats RunStats

	if err := s.Engine.Dispatch(ctx, events.Event{
		Kind:      events.KindEngineStarted,
		Timestamp: now,
		Payload:   events.EngineStarted{ScopeName: s.Scope.Name},
	}); err != nil {
		return stats, fmt.Errorf("scout: engine started: %w", err)
	}

	minLat, maxLat, minLng, maxLng := s.Scope.BoundingBox()

	// --- Phase 1: Schedule ---
	var scheduleResult scheduler.ScheduleResult
	var sourcesByKey map[string]domain.Source
	err := s.runPhase(ctx, "schedule", func(ctx context.Context) error {
		sources, err := s.Store.GetActiveSources(ctx, s.Scope.Name)
		if err != nil {
			return fmt.Errorf("load active sources: %w", err)
		}
		if len(sources) == 0 && s.Discoverer != nil && s.SeedGenerator != nil {
			bootstrapStats, err := s.Discoverer.Bootstrap(ctx, s.SeedGenerator)
			if err != nil {
				slog.ErrorContext(ctx, "scout.bootstrap_failed", "error", err)
			} else {
				stats.Discovery = mergeDiscoveryStats(stats.Discovery, bootstrapStats)
				sources, err = s.Store.GetActiveSources(ctx, s.Scope.Name)
				if err != nil {
					return fmt.Errorf("reload sources after bootstrap: %w", err)
				}
			}
		}
		sourcesByKey = make(map[string]domain.Source, len(sources))
		for _, src := range sources {
			sourcesByKey[src.CanonicalKey] = src
		}
		scheduleResult = scheduler.Schedule(sources, now)
		stats.SourcesScheduled = len(scheduleResult.Scheduled)
		stats.SourcesExplored = len(scheduleResult.Exploration)
		return nil
	})
	if err != nil {
		return stats, err
	}
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 2: Reap ---
	err = s.runPhase(ctx, "reap", func(ctx context.Context) error {
		reapStats, err := handlers.Reap(ctx, s.Engine, s.Deps, now)
		stats.ReapStats = reapStats
		return err
	})
	if err != nil {
		return stats, err
	}
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 3: Scrape-Tension ---
	s.runPhaseBestEffort(ctx, "scrape_tension", func(ctx context.Context) {
		s.scrapeKeys(ctx, scheduleResult.TensionPhase, sourcesByKey, now, minLat, maxLat, minLng, maxLng)
	})
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 4: Mid-run Discovery ---
	s.runPhaseBestEffort(ctx, "midrun_discovery", func(ctx context.Context) {
		if s.Discoverer == nil {
			return
		}
		ts, err := s.Discoverer.TensionSeed(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "scout.tension_seed_failed", "error", err)
		}
		ga, err := s.Discoverer.GapAnalysis(ctx, s.GapGenerator, s.maxGapQueriesPerRun())
		if err != nil {
			slog.ErrorContext(ctx, "scout.gap_analysis_failed", "error", err)
		}
		actors, err := s.Discoverer.DiscoverFromActors(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "scout.discover_from_actors_failed", "error", err)
		}
		stats.Discovery = mergeDiscoveryStats(stats.Discovery, mergeDiscoveryStats(mergeDiscoveryStats(ts, ga), actors))
	})
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 5: Scrape-Response ---
	s.runPhaseBestEffort(ctx, "scrape_response", func(ctx context.Context) {
		s.scrapeKeys(ctx, scheduleResult.ResponsePhase, sourcesByKey, now, minLat, maxLat, minLng, maxLng)
	})
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 6: Synthesis ---
	s.runPhaseBestEffort(ctx, "synthesis", func(ctx context.Context) {
		s.synthesize(ctx, now, minLat, maxLat, minLng, maxLng, &stats)
	})
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 7: Expansion ---
	s.runPhaseBestEffort(ctx, "expansion", func(ctx context.Context) {
		s.expand(ctx, &stats)
	})
	if s.cancelledOrExhausted(&stats) {
		return stats, nil
	}

	// --- Phase 8: Finalize ---
	s.runPhaseBestEffort(ctx, "finalize", func(ctx context.Context) {
		s.finalize(ctx, now, minLat, maxLat, minLng, maxLng)
	})

	// --- Phase 9: Enrichment ---
	s.runPhaseBestEffort(ctx, "enrichment", func(ctx context.Context) {
		s.enrich(ctx, now, &stats)
	})

	stats.Pipeline = s.Deps.State.Stats
	if s.Budget != nil {
		stats.SpentCents = s.Budget.SpentCents()
	}
	return stats, nil
}

// scrapeKeys scrapes every scheduled source in keys that's still present in
// sourcesByKey (a source can vanish between Schedule and a later phase if
// an earlier phase's handler deactivates it). Each source's failure is
// logged and skipped — one bad fetch narrows a run's yield, it never
// aborts it.
func (s *Scout) scrapeKeys(ctx context.Context, keys []string, sourcesByKey map[string]domain.Source, now time.Time, minLat, maxLat, minLng, maxLng float64) {
	for _, key := range keys {
		if s.cancelledOrExhausted(nil) {
			return
		}
		source, ok := sourcesByKey[key]
		if !ok {
			continue
		}
		if err := s.Scraper.Scrape(ctx, s.Engine, s.Deps, source, now, minLat, maxLat, minLng, maxLng); err != nil {
			slog.ErrorContext(ctx, "scout.scrape_failed", "canonical_key", key, "error", err)
		}
	}
}

// synthesize runs the Synthesis phase as three concurrent goroutines —
// similarity edges, tension-response/drawn-to linking, and investigator-driven
// expansion queries together with severity re-inference in one pass —
// joining on a sync.WaitGroup, since none of the three reads another's output.
func (s *Scout) synthesize(ctx context.Context, now time.Time, minLat, maxLat, minLng, maxLng float64, stats *RunStats) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := s.buildSimilarityEdges(ctx, now)
		if err != nil {
			slog.ErrorContext(ctx, "scout.similarity_edges_failed", "error", err)
			return
		}
		mu.Lock()
		stats.SimilarityEdges = n
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.Linker == nil {
			return
		}
		linkStats, err := s.Linker.Run(ctx, minLat, maxLat, minLng, maxLng)
		if err != nil {
			slog.ErrorContext(ctx, "scout.linker_failed", "error", err)
			return
		}
		mu.Lock()
		stats.Linker = linkStats
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := s.investigateAndInferSeverity(ctx, minLat, maxLat, minLng, maxLng)
		if err != nil {
			slog.ErrorContext(ctx, "scout.investigate_failed", "error", err)
			return
		}
		mu.Lock()
		stats.InvestigatorQueries = n
		mu.Unlock()
	}()

	wg.Wait()
}

// buildSimilarityEdges feeds every live signal's embedding into the
// pairwise similarity builder.
func (s *Scout) buildSimilarityEdges(ctx context.Context, now time.Time) (int, error) {
	if s.Reader == nil {
		return 0, nil
	}
	live, err := s.Reader.GetLiveSignalsForSimilarity(ctx, now.Add(-synthesisLookback))
	if err != nil {
		return 0, fmt.Errorf("load live signals: %w", err)
	}
	signals := make([]linker.LiveSignal, len(live))
	for i, l := range live {
		signals[i] = linker.LiveSignal{ID: l.ID, Embedding: l.Embedding, Confidence: l.Confidence}
	}
	return linker.BuildSimilarityEdges(ctx, s.Store, signals)
}

// investigateAndInferSeverity opens deferred expansion queries for
// unclear-cause tensions and re-derives every active tension's severity
// from its corroboration signal, writing back whichever ones escalated.
// Folded into one pass since both walk the same GetActiveTensions set.
func (s *Scout) investigateAndInferSeverity(ctx context.Context, minLat, maxLat, minLng, maxLng float64) (int, error) {
	if s.Reader == nil {
		return 0, nil
	}
	tensions, err := s.Reader.GetActiveTensions(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return 0, fmt.Errorf("load active tensions: %w", err)
	}

	causeHeat := make(map[uuid.UUID]float64, len(tensions))
	infos := make(map[uuid.UUID]*traits.SignalInfo, len(tensions))
	for _, t := range tensions {
		info, err := s.Reader.GetSignalInfo(ctx, t.ID)
		if err != nil || info == nil {
			continue
		}
		causeHeat[t.ID] = info.CauseHeat
		infos[t.ID] = info
	}

	queries, err := linker.Investigate(ctx, s.Reader, s.Scope.Name, minLat, maxLat, minLng, maxLng, causeHeat)
	if err != nil {
		return 0, fmt.Errorf("investigate: %w", err)
	}
	s.Deps.State.ExpansionQueries = append(s.Deps.State.ExpansionQueries, queries...)

	for id, info := range infos {
		next := linker.InferSeverity(info.Severity, info.SourceDiversity, info.CorroborationCount)
		if next == info.Severity {
			continue
		}
		if err := s.Store.UpdateTensionSeverity(ctx, id, next); err != nil {
			slog.ErrorContext(ctx, "scout.severity_update_failed", "tension_id", id.String(), "error", err)
		}
	}

	return len(queries), nil
}

// expand promotes the queries and links accumulated during scraping and
// synthesis into new Source nodes.
func (s *Scout) expand(ctx context.Context, stats *RunStats) {
	if s.Discoverer == nil {
		return
	}
	state := s.Deps.State

	if len(state.ExpansionQueries) > 0 {
		expStats, err := s.Discoverer.PromoteExpansionQueries(ctx, s.Embedder, state.ExpansionQueries)
		if err != nil {
			slog.ErrorContext(ctx, "scout.promote_expansion_queries_failed", "error", err)
		}
		stats.Discovery = mergeDiscoveryStats(stats.Discovery, expStats)
		state.ExpansionQueries = nil
	}

	if len(state.CollectedLinks) > 0 {
		linkStats, err := s.Discoverer.PromoteLinks(ctx, state.CollectedLinks)
		if err != nil {
			slog.ErrorContext(ctx, "scout.promote_links_failed", "error", err)
		}
		stats.Discovery = mergeDiscoveryStats(stats.Discovery, linkStats)
	}
}

// finalize writes per-source scrape metrics and retires any map pins the run
// covered. These are the
// counters a supervisor process reads to re-score source weight next run.
func (s *Scout) finalize(ctx context.Context, now time.Time, minLat, maxLat, minLng, maxLng float64) {
	for canonicalKey, produced := range s.Deps.State.SourceSignalCounts {
		if err := s.Store.RecordSourceScrape(ctx, canonicalKey, produced, now); err != nil {
			slog.ErrorContext(ctx, "scout.record_source_scrape_failed", "canonical_key", canonicalKey, "error", err)
		}
	}

	pins, err := s.Store.GetActivePins(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		slog.ErrorContext(ctx, "scout.load_pins_failed", "error", err)
		return
	}
	if len(pins) == 0 {
		return
	}
	ids := make([]string, len(pins))
	for i, p := range pins {
		ids[i] = p.ID
	}
	if err := s.Store.DeletePins(ctx, ids); err != nil {
		slog.ErrorContext(ctx, "scout.delete_pins_failed", "error", err)
	}
}

// enrich runs the tail-phase activities that only make sense once this
// run's signals have settled: actor location triangulation, promoting
// actors mentioned-but-not-sourced into their own Source, and beacon
// detection over the graph's live signal density.
func (s *Scout) enrich(ctx context.Context, now time.Time, stats *RunStats) {
	relocated, err := handlers.EnrichActorLocations(ctx, s.Engine, s.Deps, now)
	if err != nil {
		slog.ErrorContext(ctx, "scout.enrich_actor_locations_failed", "error", err)
	}
	stats.ActorsRelocated = relocated

	if len(s.Deps.State.CollectedLinks) > 0 {
		linkEvents := make([]events.LinkCollected, len(s.Deps.State.CollectedLinks))
		for i, l := range s.Deps.State.CollectedLinks {
			linkEvents[i] = events.LinkCollected{URL: l.URL, DiscoveredOn: l.DiscoveredOn}
		}
		promoted, err := handlers.PromoteMentionedAccounts(ctx, s.Store, s.Scope.Name, linkEvents, s.maxMentionPromotionsPerRun(), now)
		if err != nil {
			slog.ErrorContext(ctx, "scout.promote_mentioned_accounts_failed", "error", err)
		}
		stats.MentionsPromoted = promoted
	}

	if s.Reader != nil {
		opened, err := beacon.DetectFromGraph(ctx, s.Reader, s.Store, now)
		if err != nil {
			slog.ErrorContext(ctx, "scout.beacon_detect_failed", "error", err)
		}
		stats.BeaconTasksOpened = opened
	}
}

// runPhase dispatches PhaseStarted/PhaseCompleted around fn and returns
// fn's error unwrapped, for phases whose failure is structural enough that
// the run cannot sensibly continue (Schedule, Reap).
func (s *Scout) runPhase(ctx context.Context, phase string, fn func(ctx context.Context) error) error {
	if err := s.Engine.Dispatch(ctx, events.Event{
		Kind:    events.KindPhaseStarted,
		Payload: events.PhaseStarted{Phase: phase},
	}); err != nil {
		return fmt.Errorf("scout: phase %s started: %w", phase, err)
	}
	err := fn(ctx)
	if cerr := s.Engine.Dispatch(ctx, events.Event{
		Kind:    events.KindPhaseCompleted,
		Payload: events.PhaseCompleted{Phase: phase},
	}); cerr != nil && err == nil {
		err = fmt.Errorf("scout: phase %s completed: %w", phase, cerr)
	}
	if err != nil {
		return fmt.Errorf("scout: phase %s: %w", phase, err)
	}
	return nil
}

// runPhaseBestEffort is runPhase for the seven phases whose sub-activities
// already log-and-continue their own failures; a PhaseStarted/
// PhaseCompleted dispatch error is logged rather than propagated, since
// the run-log/persist path failing mid-run is itself just another thing
// to survive, not abort on.
func (s *Scout) runPhaseBestEffort(ctx context.Context, phase string, fn func(ctx context.Context)) {
	if err := s.Engine.Dispatch(ctx, events.Event{
		Kind:    events.KindPhaseStarted,
		Payload: events.PhaseStarted{Phase: phase},
	}); err != nil {
		slog.ErrorContext(ctx, "scout.phase_started_dispatch_failed", "phase", phase, "error", err)
	}
	fn(ctx)
	if err := s.Engine.Dispatch(ctx, events.Event{
		Kind:    events.KindPhaseCompleted,
		Payload: events.PhaseCompleted{Phase: phase},
	}); err != nil {
		slog.ErrorContext(ctx, "scout.phase_completed_dispatch_failed", "phase", phase, "error", err)
	}
}

// cancelledOrExhausted reports whether the run should stop between phases,
// marking stats.Cancelled when it does. stats may be nil for the
// intra-phase check in scrapeKeys, which doesn't own the top-level stats
// value.
func (s *Scout) cancelledOrExhausted(stats *RunStats) bool {
	cancelled := s.Cancellation != nil && s.Cancellation.Cancelled()
	exhausted := s.Budget != nil && s.Budget.Exhausted()
	if stats != nil && (cancelled || exhausted) {
		stats.Cancelled = true
	}
	return cancelled || exhausted
}

func mergeDiscoveryStats(a, b discovery.Stats) discovery.Stats {
	return discovery.Stats{
		ActorSources:       a.ActorSources + b.ActorSources,
		TensionSeedSources: a.TensionSeedSources + b.TensionSeedSources,
		GapSources:         a.GapSources + b.GapSources,
		LinkSources:        a.LinkSources + b.LinkSources,
		ExpansionSources:   a.ExpansionSources + b.ExpansionSources,
		DuplicatesSkipped:  a.DuplicatesSkipped + b.DuplicatesSkipped,
	}
}

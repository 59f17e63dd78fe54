package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"rootsignal.dev/scout/common/logger"
	"rootsignal.dev/scout/common/otel"
	"rootsignal.dev/scout/core/config"
	"rootsignal.dev/scout/core/db"
	"rootsignal.dev/scout/internal/scout/aggregate"
	"rootsignal.dev/scout/internal/scout/budget"
	"rootsignal.dev/scout/internal/scout/discovery"
	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/eventstore"
	"rootsignal.dev/scout/internal/scout/fetch"
	"rootsignal.dev/scout/internal/scout/handlers"
	commonllm "rootsignal.dev/scout/common/llm"
	"rootsignal.dev/scout/internal/scout/linker"
	"rootsignal.dev/scout/internal/scout/lock"
	scoutllm "rootsignal.dev/scout/internal/scout/llm"
	"rootsignal.dev/scout/internal/scout/runlog"
	"rootsignal.dev/scout/internal/scout"
	"rootsignal.dev/scout/internal/scout/store/arango"
)

const (
	scopeLockTTL      = 25 * time.Minute
	supervisorLockTTL = 2 * time.Minute
	runInterval       = 1 * time.Hour
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// OTel must init before logger (logger uses OTel provider in production).
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}
	slog.InfoContext(ctx, "scout starting", "env", cfg.Env, "scope", cfg.Scope.Name)

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "event-store database connected")

	redisClient, err := connectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	graphStore, err := arango.New(ctx, arango.Config{
		URL:      cfg.ArangoDB.URL,
		Username: cfg.ArangoDB.Username,
		Password: cfg.ArangoDB.Password,
		Database: cfg.ArangoDB.Database,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to arangodb", "error", err)
		os.Exit(1)
	}
	if err := graphStore.EnsureSchema(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to provision arangodb schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "arangodb connected", "database", cfg.ArangoDB.Database)

	if _, err := database.Pool().Exec(ctx, eventstore.Schema); err != nil {
		slog.ErrorContext(ctx, "failed to provision event-store schema", "error", err)
		os.Exit(1)
	}
	runStore := eventstore.New(database.Pool())

	extractionClient, err := commonllm.New(commonllm.Config{
		APIKey:  cfg.ExtractionLLM.APIKey,
		BaseURL: cfg.ExtractionLLM.BaseURL,
		Model:   cfg.ExtractionLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build extraction llm client", "error", err)
		os.Exit(1)
	}
	verificationClient, err := commonllm.New(commonllm.Config{
		APIKey:  cfg.VerificationLLM.APIKey,
		BaseURL: cfg.VerificationLLM.BaseURL,
		Model:   cfg.VerificationLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build verification llm client", "error", err)
		os.Exit(1)
	}
	embedder, err := scoutllm.NewEmbedder(scoutllm.EmbedderConfig{
		APIKey:  cfg.Embedder.APIKey,
		BaseURL: cfg.Embedder.BaseURL,
		Model:   cfg.Embedder.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build embedder", "error", err)
		os.Exit(1)
	}

	extractor := scoutllm.NewExtractor(extractionClient, cfg.Scope.Name)
	verifier := scoutllm.NewVerifier(verificationClient)
	seedGenerator := scoutllm.NewSeedGenerator(extractionClient)

	// No search/social API configured yet in this deployment's env — the
	// fetcher still serves Page/Feed surfaces, which is all a curated-
	// source-only region needs. See DESIGN.md.
	contentFetcher := fetch.New(nil, nil)

	discoverer := discovery.New(graphStore, graphStore, cfg.Scope.Name)
	tensionLinker := linker.New(graphStore, graphStore, verifier)

	tracker := budget.NewTracker(cfg.Budget.DailyBudgetCents)
	cancellation := &budget.Cancellation{}

	region := domain.ScoutScope{
		Name:      cfg.Scope.Name,
		CenterLat: cfg.Scope.CenterLat,
		CenterLng: cfg.Scope.CenterLng,
		RadiusKM:  cfg.Scope.RadiusKm,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
		}
	}()

	runCtx, cancelRuns := context.WithCancel(ctx)
	runsDone := make(chan struct{})
	go func() {
		defer close(runsDone)
		driveRuns(runCtx, redisClient, runStore, graphStore, contentFetcher, extractor, discoverer, tensionLinker, seedGenerator, embedder, tracker, cancellation, region)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	cancelRuns()
	<-runsDone

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// driveRuns runs one cycle immediately and then one every runInterval until
// ctx is cancelled. Each cycle acquires the supervisor lock, then the
// per-scope lock, runs one full nine-phase pass, and releases both.
// Grounded on lock.Acquire's documented "skip this cycle, not a failure"
// contract for a lock already held elsewhere.
func driveRuns(
	ctx context.Context,
	redisClient *redis.Client,
	runStore *eventstore.Store,
	graphStore *arango.Store,
	contentFetcher *fetch.Fetcher,
	extractor *scoutllm.Extractor,
	discoverer *discovery.Discoverer,
	tensionLinker *linker.Linker,
	seedGenerator *scoutllm.SeedGenerator,
	embedder *scoutllm.Embedder,
	tracker *budget.Tracker,
	cancellation *budget.Cancellation,
	region domain.ScoutScope,
) {
	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	runOnce := func() {
		supervisor, ok, err := lock.Acquire(ctx, redisClient, "supervisor", supervisorLockTTL)
		if err != nil {
			slog.ErrorContext(ctx, "scout.supervisor_lock_failed", "error", err)
			return
		}
		if !ok {
			slog.InfoContext(ctx, "scout.supervisor_lock_held_elsewhere")
			return
		}
		defer supervisor.Release(ctx) //nolint:errcheck

		regionLock, ok, err := lock.Acquire(ctx, redisClient, region.Name, scopeLockTTL)
		if err != nil {
			slog.ErrorContext(ctx, "scout.region_lock_failed", "error", err)
			return
		}
		if !ok {
			slog.InfoContext(ctx, "scout.region_lock_held_elsewhere", "scope", region.Name)
			return
		}
		defer regionLock.Release(ctx) //nolint:errcheck

		runOneRun(ctx, runStore, graphStore, contentFetcher, extractor, discoverer, tensionLinker, seedGenerator, embedder, tracker, cancellation, region)
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func runOneRun(
	ctx context.Context,
	runStore *eventstore.Store,
	graphStore *arango.Store,
	contentFetcher *fetch.Fetcher,
	extractor *scoutllm.Extractor,
	discoverer *discovery.Discoverer,
	tensionLinker *linker.Linker,
	seedGenerator *scoutllm.SeedGenerator,
	embedder *scoutllm.Embedder,
	tracker *budget.Tracker,
	cancellation *budget.Cancellation,
	region domain.ScoutScope,
) {
	now := time.Now()
	runID := now.Format("20060102T150405") + "-" + region.Name

	if err := runStore.StartRun(ctx, runID, region.Name, now); err != nil {
		slog.ErrorContext(ctx, "scout.start_run_failed", "run_id", runID, "error", err)
		return
	}

	cancellation.Reset()
	journal := runlog.New()
	state := aggregate.New(nil)

	scraper := &handlers.Scraper{
		Fetcher:   contentFetcher,
		Extractor: extractor,
		Embedder:  embedder,
		Cache:     state.EmbedCache,
	}

	deps := &engine.Deps{
		State:          state,
		Store:          graphStore,
		EventStore:     runStore,
		GraphProjector: graphStore,
		RunLog:         journal,
		Budget:         tracker,
		Cancellation:   cancellation,
		RunID:          runID,
	}
	e := handlers.RegisterSignalHandlers(engine.New(deps))

	sc := &scout.Scout{
		Engine:        e,
		Deps:          deps,
		Store:         graphStore,
		Reader:        graphStore,
		Scraper:       scraper,
		Discoverer:    discoverer,
		Linker:        tensionLinker,
		SeedGenerator: seedGenerator,
		GapGenerator:  seedGenerator,
		Embedder:      embedder,
		Scope:         region,
		Budget:        tracker,
		Cancellation:  cancellation,
	}

	stats, err := sc.Run(ctx, now)
	failed := err != nil
	if failed {
		slog.ErrorContext(ctx, "scout.run_failed", "run_id", runID, "error", err)
	}
	if err := runStore.FinishRun(ctx, runID, time.Now(), failed); err != nil {
		slog.ErrorContext(ctx, "scout.finish_run_failed", "run_id", runID, "error", err)
	}

	slog.InfoContext(ctx, "scout.run_complete",
		"run_id", runID,
		"signals_stored", stats.Pipeline.SignalsStored,
		"urls_scraped", stats.Pipeline.URLsScraped,
		"similarity_edges", stats.SimilarityEdges,
		"cancelled", stats.Cancelled,
		"spent_cents", stats.SpentCents,
		"journal_entries", len(journal.Entries()),
	)
}

func setupRouter(cfg config.Config) *gin.Engine {
	router := gin.New()
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

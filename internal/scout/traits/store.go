package traits

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
)

// DuplicateMatch is a hit returned by the vector+geobox dedup layer (L4).
type DuplicateMatch struct {
	ExistingID uuid.UUID
	SourceURL  string
	Similarity float64
}

// ReapStats tallies what Reap removed, by signal type.
type ReapStats struct {
	GatheringsExpired int
	NeedsExpired      int
	ActorsPruned      int
}

// EntityMapping is an (actor, role) pair attached during corroboration.
type EntityMapping struct {
	ActorID uuid.UUID
	Role    domain.ActorRole
}

// SignalStore is every graph write the pipeline performs — the full surface
// a store adapter must implement, not trimmed to any one consumer's needs.
type SignalStore interface {
	// URL/content guards.
	BlockedURLs(ctx context.Context, urls []string) (map[string]bool, error)
	ContentAlreadyProcessed(ctx context.Context, hash, url string) (bool, error)

	// Signal lifecycle.
	CreateNode(ctx context.Context, meta domain.NodeMeta, typed any, embedding []float32, contentHash, createdBy, runID string) (uuid.UUID, error)
	CreateEvidence(ctx context.Context, evidence domain.Evidence, signalID uuid.UUID) error
	RefreshSignal(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time) error
	RefreshURLSignals(ctx context.Context, url string, now time.Time) (int64, error)
	Corroborate(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time, mappings []EntityMapping, sourceURL string, similarity float64) error

	// Dedup queries.
	ExistingTitlesForURL(ctx context.Context, url string) ([]string, error)
	FindByTitlesAndTypes(ctx context.Context, pairs []TitleTypePair) (map[TitleTypePair]ExistingSignal, error)
	FindDuplicate(ctx context.Context, embedding []float32, primaryType domain.NodeType, threshold float64, minLat, maxLat, minLng, maxLng float64) (*DuplicateMatch, error)

	// Actor graph.
	FindActorByName(ctx context.Context, name string) (uuid.UUID, bool, error)
	UpsertActor(ctx context.Context, actor domain.Actor) error
	LinkActorToSignal(ctx context.Context, actorID, signalID uuid.UUID, role domain.ActorRole) error
	LinkActorToSource(ctx context.Context, actorID uuid.UUID, sourceKey string) error
	LinkSignalToSource(ctx context.Context, signalID uuid.UUID, sourceKey string) error
	FindActorByEntityID(ctx context.Context, entityID string) (uuid.UUID, bool, error)

	// Resource graph.
	FindOrCreateResource(ctx context.Context, name, slug, description string, embedding []float32) (uuid.UUID, error)
	CreateRequiresEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, quantity, notes *string) error
	CreatePrefersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64) error
	CreateOffersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, capacity *string) error

	// Relationship edges.
	CreateResponseEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error
	CreateDrawnToEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation, gatheringType string) error
	BatchUpsertSimilarity(ctx context.Context, edges []domain.SimilarToEdge) (int, error)

	// Severity re-inference (Synthesis phase sub-activity).
	UpdateTensionSeverity(ctx context.Context, id uuid.UUID, severity domain.TensionSeverity) error

	// Source management.
	GetActiveSources(ctx context.Context, city string) ([]domain.Source, error)
	UpsertSource(ctx context.Context, source domain.Source) error
	BatchTagSignals(ctx context.Context, signalID uuid.UUID, tagSlugs []string) error

	// Source scrape metrics.
	RecordSourceScrape(ctx context.Context, canonicalKey string, signalsProduced int, now time.Time) error

	// Pin lifecycle.
	GetActivePins(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]domain.Pin, error)
	DeletePins(ctx context.Context, pinIDs []string) error

	// Signal reaping.
	ReapExpired(ctx context.Context, now time.Time) (ReapStats, error)

	// Actor location enrichment.
	GetSignalsForActor(ctx context.Context, actorID uuid.UUID) ([]ActorSignalObservation, error)
	UpdateActorLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64, name string) error
	ListAllActors(ctx context.Context) ([]ActorWithSources, error)
}

// TitleTypePair is the key for batched L3 title+type dedup lookups.
type TitleTypePair struct {
	LowerTitle string
	Type       domain.NodeType
}

// ExistingSignal is what a title+type lookup returns on a hit.
type ExistingSignal struct {
	ID        uuid.UUID
	SourceURL string
}

// ActorSignalObservation is one authored-signal location sample used to
// triangulate an actor's location.
type ActorSignalObservation struct {
	Lat          float64
	Lng          float64
	LocationName string
	ExtractedAt  time.Time
}

// ActorWithSources pairs an actor with its linked Source nodes.
type ActorWithSources struct {
	Actor   domain.Actor
	Sources []domain.Source
}

// SignalReader is the read-only projection surface discovery, the linker,
// and beacon detection need, separate from SignalStore's writes.
type SignalReader interface {
	GetActorsWithDomains(ctx context.Context, city string) ([]ActorDomains, error)
	GetActiveTensions(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]TensionEmbedding, error)
	FindResponseCandidates(ctx context.Context, tensionEmbedding []float32, minLat, maxLat, minLng, maxLng float64) ([]ResponseCandidate, error)
	GetSignalInfo(ctx context.Context, id uuid.UUID) (*SignalInfo, error)
	GetRecentTensions(ctx context.Context, limit int) ([]RecentTension, error)
	GetLiveSignalsWithLocation(ctx context.Context, since time.Time) ([]LiveSignalLocation, error)
	ListScoutTasks(ctx context.Context, status string, limit int) ([]ScoutTask, error)
	GetLiveSignalsForSimilarity(ctx context.Context, since time.Time) ([]LiveSignalEmbedding, error)
}

// LiveSignalEmbedding is one live signal's embedding and confidence, the
// input to the Synthesis phase's similarity edge builder.
type LiveSignalEmbedding struct {
	ID         uuid.UUID
	Embedding  []float32
	Confidence float64
}

// ActorDomains is an actor plus the domains/social URLs discovery should
// check against the existing source pool.
type ActorDomains struct {
	ActorName  string
	Domains    []string
	SocialURLs []string
}

// TensionEmbedding pairs a Tension's ID with its embedding, for k-NN search.
type TensionEmbedding struct {
	ID        uuid.UUID
	Embedding []float32
}

// ResponseCandidate is a candidate signal the linker should LLM-verify.
type ResponseCandidate struct {
	ID         uuid.UUID
	Similarity float64
}

// SignalInfo is the title/summary/type the linker needs for LLM
// verification prompts and for telling a Gathering candidate apart from an
// Aid candidate (DRAWN_TO vs RESPONDS_TO).
type SignalInfo struct {
	Title   string
	Summary string
	Type    domain.NodeType

	// CorroborationCount, SourceDiversity, and CauseHeat mirror the
	// corresponding domain.NodeMeta fields, carried here so severity
	// inference and the investigator can re-derive them without a second
	// full-node fetch.
	CorroborationCount int
	SourceDiversity    int
	CauseHeat          float64

	// Severity is the Tension's current severity, zero value for every
	// other node type. Severity re-inference reads this as the escalation
	// floor before deciding whether corroboration justifies raising it.
	Severity domain.TensionSeverity
}

// RecentTension is a lightweight view used by gap analysis.
type RecentTension struct {
	Title          string
	WhatWouldHelp  *string
}

// LiveSignalLocation is one geo-tagged live signal, as fed to beacon
// detection.
type LiveSignalLocation struct {
	Lat          float64
	Lng          float64
	Title        string
	LocationName *string
}

// ScoutTaskSource names what produced a ScoutTask.
type ScoutTaskSource string

const (
	ScoutTaskSourceBeacon  ScoutTaskSource = "beacon"
	ScoutTaskSourceDriverB ScoutTaskSource = "driver_b"
)

// ScoutTaskStatus is the lifecycle state of a ScoutTask.
type ScoutTaskStatus string

const (
	ScoutTaskPending ScoutTaskStatus = "pending"
	ScoutTaskRunning ScoutTaskStatus = "running"
	ScoutTaskDone    ScoutTaskStatus = "done"
)

// ScoutTask is a follow-up work item produced by beacon detection.
type ScoutTask struct {
	ID          uuid.UUID
	CenterLat   float64
	CenterLng   float64
	RadiusKM    float64
	Context     string
	GeoTerms    []string
	Priority    float64
	Source      ScoutTaskSource
	Status      ScoutTaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

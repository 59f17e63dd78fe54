// Package arango is the production traits.SignalStore/traits.SignalReader
// implementation: a labeled-property graph with embeddings stored on
// signals, over ArangoDB, via github.com/arangodb/go-driver/v2. Connection setup,
// collection/index provisioning, and the slog-plus-duration_ms logging
// idiom are ported from basegraph's relay/common/arangodb/client.go — the
// only change is the collection/graph shape, which follows this pipeline's
// signal/actor/resource model instead of basegraph's code-graph model.
package arango

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

// ErrNotFound is the sentinel error for a missing document.
var ErrNotFound = errors.New("arango: document not found")

// GraphName is the single named graph every edge collection belongs to.
const GraphName = "scoutgraph"

// Collection names. Exported as constants (not configurable) since the
// schema is fixed by the domain model, the way basegraph's client.go hard-
// codes "functions"/"types"/etc.
const (
	ColSignals     = "signals"
	ColEvidence    = "evidence"
	ColActors      = "actors"
	ColResources   = "resources"
	ColSources     = "sources"
	ColPins        = "pins"
	ColScoutTasks  = "scout_tasks"
	ColTags        = "tags"
	ColBlockedURLs = "blocked_urls"

	EdgeSimilarTo    = "similar_to"
	EdgeRespondsTo   = "responds_to"
	EdgeDrawnTo      = "drawn_to"
	EdgeReferences   = "references"
	EdgeActedIn      = "acted_in"
	EdgeActorSource  = "actor_source"
	EdgeSignalSource = "signal_source"
	EdgeSignalTag    = "signal_tag"
	EdgeHasEvidence  = "has_evidence"
)

var nodeCollections = []string{ColSignals, ColActors, ColResources, ColSources, ColPins, ColScoutTasks, ColTags, ColEvidence, ColBlockedURLs}

var edgeCollections = []string{
	EdgeSimilarTo, EdgeRespondsTo, EdgeDrawnTo, EdgeReferences,
	EdgeActedIn, EdgeActorSource, EdgeSignalSource, EdgeSignalTag, EdgeHasEvidence,
}

// Config holds connection parameters.
type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

// Store is the ArangoDB-backed traits.SignalStore and traits.SignalReader.
type Store struct {
	client arangodb.Client
	db     arangodb.Database
	cfg    Config
}

// New opens a connection to ArangoDB without yet provisioning anything;
// call EnsureSchema before first use.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("arango: config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arango: auth: %w", err)
	}

	return &Store{client: arangodb.NewClient(conn), cfg: cfg}, nil
}

// EnsureSchema creates the database, collections, indexes, and named graph
// if they don't already exist. Idempotent — safe to call on every process
// startup, the way basegraph's worker calls EnsureDatabase/EnsureCollections
// /EnsureGraph in sequence.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.ensureDatabase(ctx); err != nil {
		return err
	}
	if err := s.ensureCollections(ctx); err != nil {
		return err
	}
	return s.ensureGraph(ctx)
}

func (s *Store) ensureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := s.client.DatabaseExists(ctx, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("arango: check database exists: %w", err)
	}

	if !exists {
		if _, err := s.client.CreateDatabase(ctx, s.cfg.Database, nil); err != nil {
			return fmt.Errorf("arango: create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", s.cfg.Database, "duration_ms", time.Since(start).Milliseconds())
	}

	db, err := s.client.GetDatabase(ctx, s.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("arango: get database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) ensureCollections(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("arango: database not initialized, call EnsureSchema first")
	}

	for _, name := range nodeCollections {
		if err := s.ensureCollection(ctx, name, false); err != nil {
			return err
		}
	}
	for _, name := range edgeCollections {
		if err := s.ensureCollection(ctx, name, true); err != nil {
			return err
		}
	}
	return s.ensureIndexes(ctx)
}

func (s *Store) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := s.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("arango: check collection %s exists: %w", name, err)
	}
	if exists {
		return nil
	}

	props := &arangodb.CreateCollectionPropertiesV2{}
	colType := arangodb.CollectionTypeDocument
	if isEdge {
		colType = arangodb.CollectionTypeEdge
	}
	props.Type = &colType

	if _, err := s.db.CreateCollectionV2(ctx, name, props); err != nil {
		return fmt.Errorf("arango: create collection %s: %w", name, err)
	}
	slog.InfoContext(ctx, "arangodb collection created", "collection", name, "is_edge", isEdge)
	return nil
}

// ensureIndexes creates the persistent indexes the dedup cascade and linker
// depend on: signals.source_url, signals.type, and a unique
// sources.canonical_key. No vector index is created; FindDuplicate and
// FindResponseCandidates compute COSINE_SIMILARITY over the filtered scan.
func (s *Store) ensureIndexes(ctx context.Context) error {
	signals, err := s.db.GetCollection(ctx, ColSignals, nil)
	if err != nil {
		return fmt.Errorf("arango: get signals collection: %w", err)
	}

	if _, isNew, err := signals.EnsurePersistentIndex(ctx, []string{"source_url"}, &arangodb.CreatePersistentIndexOptions{Name: "idx_source_url"}); err != nil {
		return fmt.Errorf("arango: ensure source_url index: %w", err)
	} else if isNew {
		slog.InfoContext(ctx, "arangodb index created", "collection", ColSignals, "index", "idx_source_url")
	}

	if _, isNew, err := signals.EnsurePersistentIndex(ctx, []string{"type"}, &arangodb.CreatePersistentIndexOptions{Name: "idx_type"}); err != nil {
		return fmt.Errorf("arango: ensure type index: %w", err)
	} else if isNew {
		slog.InfoContext(ctx, "arangodb index created", "collection", ColSignals, "index", "idx_type")
	}

	sources, err := s.db.GetCollection(ctx, ColSources, nil)
	if err != nil {
		return fmt.Errorf("arango: get sources collection: %w", err)
	}
	if _, isNew, err := sources.EnsurePersistentIndex(ctx, []string{"canonical_key"}, &arangodb.CreatePersistentIndexOptions{Name: "idx_canonical_key", Unique: true}); err != nil {
		return fmt.Errorf("arango: ensure canonical_key index: %w", err)
	} else if isNew {
		slog.InfoContext(ctx, "arangodb index created", "collection", ColSources, "index", "idx_canonical_key")
	}

	return nil
}

func (s *Store) ensureGraph(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("arango: database not initialized")
	}

	exists, err := s.db.GraphExists(ctx, GraphName)
	if err != nil {
		return fmt.Errorf("arango: check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	graphDef := &arangodb.GraphDefinition{
		Name: GraphName,
		EdgeDefinitions: []arangodb.EdgeDefinition{
			{Collection: EdgeSimilarTo, From: []string{ColSignals}, To: []string{ColSignals}},
			{Collection: EdgeRespondsTo, From: []string{ColSignals}, To: []string{ColSignals}},
			{Collection: EdgeDrawnTo, From: []string{ColSignals}, To: []string{ColSignals}},
			{Collection: EdgeReferences, From: []string{ColSignals}, To: []string{ColResources}},
			{Collection: EdgeActedIn, From: []string{ColActors}, To: []string{ColSignals}},
			{Collection: EdgeActorSource, From: []string{ColActors}, To: []string{ColSources}},
			{Collection: EdgeSignalSource, From: []string{ColSignals}, To: []string{ColSources}},
			{Collection: EdgeSignalTag, From: []string{ColSignals}, To: []string{ColTags}},
			{Collection: EdgeHasEvidence, From: []string{ColSignals}, To: []string{ColEvidence}},
		},
	}

	if _, err := s.db.CreateGraph(ctx, GraphName, graphDef, nil); err != nil {
		return fmt.Errorf("arango: create graph: %w", err)
	}
	slog.InfoContext(ctx, "arangodb graph created", "graph", GraphName)
	return nil
}

// createOne inserts a single document via the batch CreateDocuments call
// (go-driver/v2 has no singular create), consuming the response reader the
// way basegraph's client.go does for IngestNodes/IngestEdges.
func (s *Store) createOne(ctx context.Context, collection string, doc map[string]any) error {
	col, err := s.db.GetCollection(ctx, collection, nil)
	if err != nil {
		return fmt.Errorf("arango: get %s collection: %w", collection, err)
	}
	reader, err := col.CreateDocuments(ctx, []map[string]any{doc})
	if err != nil {
		return fmt.Errorf("arango: create document in %s: %w", collection, err)
	}
	_, err = reader.Read()
	if err != nil {
		return fmt.Errorf("arango: read create response for %s: %w", collection, err)
	}
	return nil
}

// query runs one AQL statement and decodes each result row with decode.
func (s *Store) query(ctx context.Context, aql string, bindVars map[string]any, decode func(cursor arangodb.Cursor) error) error {
	cursor, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return fmt.Errorf("arango: execute query: %w", err)
	}
	defer cursor.Close()

	for cursor.HasMore() {
		if err := decode(cursor); err != nil {
			return err
		}
	}
	return nil
}

package arango

import (
	"context"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/traits"
)

var _ traits.SignalReader = (*Store)(nil)

// GetActorsWithDomains returns every actor plus its known web presence, for
// discovery's actor-account surface to check against the existing source pool.
func (s *Store) GetActorsWithDomains(ctx context.Context, city string) ([]traits.ActorDomains, error) {
	var out []traits.ActorDomains
	aql := `
		FOR a IN actors
			FILTER a.location_name == @city OR @city == ""
			FILTER LENGTH(a.domains) > 0 OR LENGTH(a.social_urls) > 0
			RETURN { actor_name: a.name, domains: a.domains, social_urls: a.social_urls }
	`
	err := s.query(ctx, aql, map[string]any{"city": city}, func(c arangodb.Cursor) error {
		var row traits.ActorDomains
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// GetActiveTensions returns every live Tension's embedding within a bounding
// box, for the linker's k-NN search.
func (s *Store) GetActiveTensions(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]traits.TensionEmbedding, error) {
	var out []traits.TensionEmbedding
	aql := `
		FOR s IN signals
			FILTER s.type == "tension"
			FILTER s.lat >= @minLat AND s.lat <= @maxLat AND s.lng >= @minLng AND s.lng <= @maxLng
			RETURN { id: s._key, embedding: s.embedding }
	`
	err := s.query(ctx, aql, map[string]any{"minLat": minLat, "maxLat": maxLat, "minLng": minLng, "maxLng": maxLng}, func(c arangodb.Cursor) error {
		var row struct {
			ID        string    `json:"id"`
			Embedding []float32 `json:"embedding"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return fmt.Errorf("arango: parse tension id %s: %w", row.ID, err)
		}
		out = append(out, traits.TensionEmbedding{ID: id, Embedding: row.Embedding})
		return nil
	})
	return out, err
}

// FindResponseCandidates returns response-type signals near a tension's
// embedding, for the linker's candidate search.
func (s *Store) FindResponseCandidates(ctx context.Context, tensionEmbedding []float32, minLat, maxLat, minLng, maxLng float64) ([]traits.ResponseCandidate, error) {
	var out []traits.ResponseCandidate
	aql := `
		FOR s IN signals
			FILTER s.type IN ["aid", "gathering"]
			FILTER s.lat >= @minLat AND s.lat <= @maxLat AND s.lng >= @minLng AND s.lng <= @maxLng
			LET sim = COSINE_SIMILARITY(s.embedding, @embedding)
			SORT sim DESC
			LIMIT 20
			RETURN { id: s._key, similarity: sim }
	`
	err := s.query(ctx, aql, map[string]any{
		"embedding": tensionEmbedding, "minLat": minLat, "maxLat": maxLat, "minLng": minLng, "maxLng": maxLng,
	}, func(c arangodb.Cursor) error {
		var row struct {
			ID         string  `json:"id"`
			Similarity float64 `json:"similarity"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return fmt.Errorf("arango: parse candidate id %s: %w", row.ID, err)
		}
		out = append(out, traits.ResponseCandidate{ID: id, Similarity: row.Similarity})
		return nil
	})
	return out, err
}

// GetSignalInfo returns the title/summary/type one signal needs for
// LLM-verification prompts and edge-type routing.
func (s *Store) GetSignalInfo(ctx context.Context, id uuid.UUID) (*traits.SignalInfo, error) {
	var info *traits.SignalInfo
	aql := `FOR s IN signals FILTER s._key == @key LIMIT 1 RETURN { title: s.title, summary: s.summary, type: s.type, corroboration_count: s.corroboration_count, source_diversity: s.source_diversity, cause_heat: s.cause_heat, severity: s.severity }`
	err := s.query(ctx, aql, map[string]any{"key": id.String()}, func(c arangodb.Cursor) error {
		var row struct {
			Title              string  `json:"title"`
			Summary            string  `json:"summary"`
			Type               string  `json:"type"`
			CorroborationCount int     `json:"corroboration_count"`
			SourceDiversity    int     `json:"source_diversity"`
			CauseHeat          float64 `json:"cause_heat"`
			Severity           string  `json:"severity"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		info = &traits.SignalInfo{
			Title:              row.Title,
			Summary:            row.Summary,
			Type:               domain.NodeType(row.Type),
			CorroborationCount: row.CorroborationCount,
			SourceDiversity:    row.SourceDiversity,
			CauseHeat:          row.CauseHeat,
			Severity:           domain.TensionSeverity(row.Severity),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNotFound
	}
	return info, nil
}

// GetRecentTensions returns a lightweight view for gap analysis.
func (s *Store) GetRecentTensions(ctx context.Context, limit int) ([]traits.RecentTension, error) {
	var out []traits.RecentTension
	aql := `
		FOR s IN signals
			FILTER s.type == "tension"
			SORT s.extracted_at DESC
			LIMIT @limit
			RETURN { title: s.title, what_would_help: s.what_would_help }
	`
	err := s.query(ctx, aql, map[string]any{"limit": limit}, func(c arangodb.Cursor) error {
		var row traits.RecentTension
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// GetLiveSignalsWithLocation feeds beacon detection's graph-derived producer.
func (s *Store) GetLiveSignalsWithLocation(ctx context.Context, since time.Time) ([]traits.LiveSignalLocation, error) {
	var out []traits.LiveSignalLocation
	aql := `
		FOR s IN signals
			FILTER s.lat != null AND s.extracted_at >= @since
			RETURN { lat: s.lat, lng: s.lng, title: s.title, location_name: s.location_name }
	`
	err := s.query(ctx, aql, map[string]any{"since": since}, func(c arangodb.Cursor) error {
		var row traits.LiveSignalLocation
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// GetLiveSignalsForSimilarity returns every live signal's embedding and
// confidence across the node types the similarity edge builder compares,
// regardless of geo point — unlike
// GetLiveSignalsWithLocation, which feeds geohash clustering and so only
// wants signals that have one.
func (s *Store) GetLiveSignalsForSimilarity(ctx context.Context, since time.Time) ([]traits.LiveSignalEmbedding, error) {
	var out []traits.LiveSignalEmbedding
	aql := `
		FOR s IN signals
			FILTER s.type IN ["gathering", "aid", "need", "notice", "tension"]
			FILTER s.extracted_at >= @since
			RETURN { id: s._key, embedding: s.embedding, confidence: s.confidence }
	`
	err := s.query(ctx, aql, map[string]any{"since": since}, func(c arangodb.Cursor) error {
		var row struct {
			ID         string    `json:"id"`
			Embedding  []float32 `json:"embedding"`
			Confidence float64   `json:"confidence"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return fmt.Errorf("arango: parse signal id %s: %w", row.ID, err)
		}
		out = append(out, traits.LiveSignalEmbedding{ID: id, Embedding: row.Embedding, Confidence: row.Confidence})
		return nil
	})
	return out, err
}

// ListScoutTasks returns beacon-produced follow-up tasks by status.
func (s *Store) ListScoutTasks(ctx context.Context, status string, limit int) ([]traits.ScoutTask, error) {
	var out []traits.ScoutTask
	aql := `
		FOR t IN scout_tasks
			FILTER @status == "" OR t.status == @status
			SORT t.priority DESC
			LIMIT @limit
			RETURN t
	`
	err := s.query(ctx, aql, map[string]any{"status": status, "limit": limit}, func(c arangodb.Cursor) error {
		var row taskDoc
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		task, err := row.toDomain()
		if err != nil {
			return err
		}
		out = append(out, task)
		return nil
	})
	return out, err
}

// CreateScoutTask persists a beacon-produced follow-up task. Implements
// beacon.TaskStore alongside ListScoutTasks.
func (s *Store) CreateScoutTask(ctx context.Context, task traits.ScoutTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	doc := map[string]any{
		"_key":         task.ID.String(),
		"center_lat":   task.CenterLat,
		"center_lng":   task.CenterLng,
		"radius_km":    task.RadiusKM,
		"context":      task.Context,
		"geo_terms":    task.GeoTerms,
		"priority":     task.Priority,
		"source":       string(task.Source),
		"status":       string(task.Status),
		"created_at":   task.CreatedAt,
		"completed_at": task.CompletedAt,
	}
	if err := s.createOne(ctx, ColScoutTasks, doc); err != nil {
		return fmt.Errorf("arango: create scout task: %w", err)
	}
	return nil
}

type taskDoc struct {
	Key         string     `json:"_key"`
	CenterLat   float64    `json:"center_lat"`
	CenterLng   float64    `json:"center_lng"`
	RadiusKM    float64    `json:"radius_km"`
	Context     string     `json:"context"`
	GeoTerms    []string   `json:"geo_terms"`
	Priority    float64    `json:"priority"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (d taskDoc) toDomain() (traits.ScoutTask, error) {
	id, err := uuid.Parse(d.Key)
	if err != nil {
		return traits.ScoutTask{}, fmt.Errorf("arango: parse task key %s: %w", d.Key, err)
	}
	return traits.ScoutTask{
		ID:          id,
		CenterLat:   d.CenterLat,
		CenterLng:   d.CenterLng,
		RadiusKM:    d.RadiusKM,
		Context:     d.Context,
		GeoTerms:    d.GeoTerms,
		Priority:    d.Priority,
		Source:      traits.ScoutTaskSource(d.Source),
		Status:      traits.ScoutTaskStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
	}, nil
}

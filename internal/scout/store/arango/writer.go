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

var _ traits.SignalStore = (*Store)(nil)

// BlockedURLs returns which of the given URLs are on the blocklist.
func (s *Store) BlockedURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	out := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	aql := `FOR b IN ` + ColBlockedURLs + ` FILTER b.url IN @urls RETURN b.url`
	err := s.query(ctx, aql, map[string]any{"urls": urls}, func(c arangodb.Cursor) error {
		var url string
		_, err := c.ReadDocument(ctx, &url)
		if err != nil {
			return fmt.Errorf("arango: read blocked url: %w", err)
		}
		out[url] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		if _, ok := out[u]; !ok {
			out[u] = false
		}
	}
	return out, nil
}

// ContentAlreadyProcessed checks the content-hash guard: true when a signal
// from this URL with this exact content hash already exists.
func (s *Store) ContentAlreadyProcessed(ctx context.Context, hash, url string) (bool, error) {
	found := false
	aql := `FOR s IN signals FILTER s.source_url == @url AND s.content_hash == @hash LIMIT 1 RETURN 1`
	err := s.query(ctx, aql, map[string]any{"url": url, "hash": hash}, func(c arangodb.Cursor) error {
		var one int
		_, err := c.ReadDocument(ctx, &one)
		found = true
		return err
	})
	return found, err
}

// CreateNode inserts a signal document, flattening NodeMeta plus the
// type-specific fields into one record the way basegraph's client.go
// flattens Node into a map before CreateDocuments.
func (s *Store) CreateNode(ctx context.Context, meta domain.NodeMeta, typed any, embedding []float32, contentHash, createdBy, runID string) (uuid.UUID, error) {
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}

	doc := map[string]any{
		"_key":                  meta.ID.String(),
		"type":                  string(meta.Type),
		"title":                 meta.Title,
		"summary":               meta.Summary,
		"sensitivity":           string(meta.Sensitivity),
		"confidence":            meta.Confidence,
		"freshness_score":       meta.FreshnessScore,
		"corroboration_count":   meta.CorroborationCount,
		"source_diversity":      meta.SourceDiversity,
		"location_name":         meta.LocationName,
		"source_url":            meta.SourceURL,
		"content_hash":          contentHash,
		"extracted_at":          meta.ExtractedAt,
		"last_confirmed_active": meta.LastConfirmedActive,
		"external_ratio":        meta.ExternalRatio,
		"cause_heat":            meta.CauseHeat,
		"mentioned_actors":      meta.MentionedActors,
		"implied_queries":       meta.ImpliedQueries,
		"embedding":             embedding,
		"created_by":            createdBy,
		"run_id":                runID,
	}
	if meta.Geo != nil {
		doc["lat"] = meta.Geo.Lat
		doc["lng"] = meta.Geo.Lng
		doc["geo_precision"] = string(meta.Geo.Precision)
	}

	switch t := typed.(type) {
	case domain.Gathering:
		doc["starts_at"] = t.StartsAt
		doc["ends_at"] = t.EndsAt
		doc["action_url"] = t.ActionURL
		doc["is_recurring"] = t.IsRecurring
	case domain.Aid:
		doc["action_url"] = t.ActionURL
		doc["is_ongoing"] = t.IsOngoing
		doc["capacity"] = t.Capacity
	case domain.Need:
		doc["action_url"] = t.ActionURL
	case domain.Notice:
		doc["severity"] = string(t.Severity)
		doc["category"] = t.Category
		doc["effective_date"] = t.EffectiveDate
		doc["source_authority"] = t.SourceAuthority
	case domain.Tension:
		doc["severity"] = string(t.Severity)
		doc["category"] = t.Category
		doc["what_would_help"] = t.WhatWouldHelp
	}

	if err := s.createOne(ctx, ColSignals, doc); err != nil {
		return uuid.Nil, fmt.Errorf("arango: create signal: %w", err)
	}
	return meta.ID, nil
}

// CreateEvidence attaches one atomic observation to a signal.
func (s *Store) CreateEvidence(ctx context.Context, evidence domain.Evidence, signalID uuid.UUID) error {
	if evidence.ID == uuid.Nil {
		evidence.ID = uuid.New()
	}
	doc := map[string]any{
		"_key":        evidence.ID.String(),
		"signal_id":   signalID.String(),
		"source_url":  evidence.SourceURL,
		"snippet":     evidence.Snippet,
		"relevance":   string(evidence.Relevance),
		"confidence":  evidence.EvidenceConfidence,
		"observed_at": evidence.ObservedAt,
	}
	if err := s.createOne(ctx, ColEvidence, doc); err != nil {
		return fmt.Errorf("arango: create evidence: %w", err)
	}

	edge := map[string]any{
		"_from": fmt.Sprintf("%s/%s", ColSignals, signalID.String()),
		"_to":   fmt.Sprintf("%s/%s", ColEvidence, evidence.ID.String()),
	}
	if err := s.createOne(ctx, EdgeHasEvidence, edge); err != nil {
		return fmt.Errorf("arango: create has_evidence edge: %w", err)
	}
	return nil
}

// RefreshSignal bumps last_confirmed_active without altering corroboration
// count (the "seen again, same source" path distinct from Corroborate).
func (s *Store) RefreshSignal(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time) error {
	aql := `UPDATE @key WITH { last_confirmed_active: @now } IN signals`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": id.String(), "now": now}})
	if err != nil {
		return fmt.Errorf("arango: refresh signal %s: %w", id, err)
	}
	return nil
}

// UpdateTensionSeverity writes a re-inferred severity back onto a Tension.
func (s *Store) UpdateTensionSeverity(ctx context.Context, id uuid.UUID, severity domain.TensionSeverity) error {
	aql := `UPDATE @key WITH { severity: @severity } IN signals`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": id.String(), "severity": string(severity)}})
	if err != nil {
		return fmt.Errorf("arango: update tension severity %s: %w", id, err)
	}
	return nil
}

// RefreshURLSignals refreshes every signal sourced from one URL, returning
// the count touched. Called on the content-unchanged path, where a refetch
// confirms existing signals are still active without re-extracting them.
func (s *Store) RefreshURLSignals(ctx context.Context, url string, now time.Time) (int64, error) {
	aql := `
		FOR s IN signals FILTER s.source_url == @url
			UPDATE s WITH { last_confirmed_active: @now } IN signals
			COLLECT WITH COUNT INTO n
			RETURN n
	`
	var count int64
	err := s.query(ctx, aql, map[string]any{"url": url, "now": now}, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &count)
		return err
	})
	return count, err
}

// Corroborate records a fresh independent confirmation of an existing
// signal: bumps corroboration_count/source_diversity, links mentioned
// actors, and records the corroborating source.
func (s *Store) Corroborate(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time, mappings []traits.EntityMapping, sourceURL string, similarity float64) error {
	aql := `
		UPDATE @key WITH {
			corroboration_count: OLD.corroboration_count + 1,
			source_diversity: OLD.source_diversity + 1,
			last_confirmed_active: @now
		} IN signals
	`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": id.String(), "now": now}})
	if err != nil {
		return fmt.Errorf("arango: corroborate %s: %w", id, err)
	}

	for _, m := range mappings {
		if err := s.LinkActorToSignal(ctx, m.ActorID, id, m.Role); err != nil {
			return err
		}
	}
	return nil
}

// ExistingTitlesForURL is the L2 exact-title dedup query.
func (s *Store) ExistingTitlesForURL(ctx context.Context, url string) ([]string, error) {
	var titles []string
	aql := `FOR s IN signals FILTER s.source_url == @url RETURN s.title`
	err := s.query(ctx, aql, map[string]any{"url": url}, func(c arangodb.Cursor) error {
		var t string
		_, err := c.ReadDocument(ctx, &t)
		if err != nil {
			return err
		}
		titles = append(titles, t)
		return nil
	})
	return titles, err
}

// FindByTitlesAndTypes is the L3 batched title+type dedup query.
func (s *Store) FindByTitlesAndTypes(ctx context.Context, pairs []traits.TitleTypePair) (map[traits.TitleTypePair]traits.ExistingSignal, error) {
	out := make(map[traits.TitleTypePair]traits.ExistingSignal, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	lowerTitles := make([]string, len(pairs))
	for i, p := range pairs {
		lowerTitles[i] = p.LowerTitle
	}

	aql := `
		FOR s IN signals
			FILTER LOWER(s.title) IN @titles
			RETURN { key: s._key, lower_title: LOWER(s.title), type: s.type, source_url: s.source_url }
	`
	type row struct {
		Key        string `json:"key"`
		LowerTitle string `json:"lower_title"`
		Type       string `json:"type"`
		SourceURL  string `json:"source_url"`
	}
	err := s.query(ctx, aql, map[string]any{"titles": lowerTitles}, func(c arangodb.Cursor) error {
		var r row
		if _, err := c.ReadDocument(ctx, &r); err != nil {
			return err
		}
		id, err := uuid.Parse(r.Key)
		if err != nil {
			return fmt.Errorf("arango: parse signal key %s: %w", r.Key, err)
		}
		pair := traits.TitleTypePair{LowerTitle: r.LowerTitle, Type: domain.NodeType(r.Type)}
		out[pair] = traits.ExistingSignal{ID: id, SourceURL: r.SourceURL}
		return nil
	})
	return out, err
}

// FindDuplicate is the L4 vector+geobox dedup query, via ArangoDB's
// built-in COSINE_SIMILARITY AQL function.
func (s *Store) FindDuplicate(ctx context.Context, embedding []float32, primaryType domain.NodeType, threshold float64, minLat, maxLat, minLng, maxLng float64) (*traits.DuplicateMatch, error) {
	aql := `
		FOR s IN signals
			FILTER s.type == @type
			FILTER s.lat >= @minLat AND s.lat <= @maxLat AND s.lng >= @minLng AND s.lng <= @maxLng
			LET sim = COSINE_SIMILARITY(s.embedding, @embedding)
			FILTER sim >= @threshold
			SORT sim DESC
			LIMIT 1
			RETURN { id: s._key, source_url: s.source_url, similarity: sim }
	`
	var match *traits.DuplicateMatch
	err := s.query(ctx, aql, map[string]any{
		"type": string(primaryType), "embedding": embedding, "threshold": threshold,
		"minLat": minLat, "maxLat": maxLat, "minLng": minLng, "maxLng": maxLng,
	}, func(c arangodb.Cursor) error {
		var row struct {
			ID         string  `json:"id"`
			SourceURL  string  `json:"source_url"`
			Similarity float64 `json:"similarity"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return fmt.Errorf("arango: parse duplicate id %s: %w", row.ID, err)
		}
		match = &traits.DuplicateMatch{ExistingID: id, SourceURL: row.SourceURL, Similarity: row.Similarity}
		return nil
	})
	return match, err
}

// FindActorByName looks up an actor by exact normalized name.
func (s *Store) FindActorByName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	var found uuid.UUID
	ok := false
	aql := `FOR a IN actors FILTER a.name == @name LIMIT 1 RETURN a._key`
	err := s.query(ctx, aql, map[string]any{"name": name}, func(c arangodb.Cursor) error {
		var key string
		if _, err := c.ReadDocument(ctx, &key); err != nil {
			return err
		}
		id, err := uuid.Parse(key)
		if err != nil {
			return nil
		}
		found, ok = id, true
		return nil
	})
	return found, ok, err
}

// UpsertActor creates or updates an actor by ID.
func (s *Store) UpsertActor(ctx context.Context, actor domain.Actor) error {
	doc := map[string]any{
		"_key":            actor.ID,
		"name":            actor.Name,
		"entity_id":       actor.EntityID,
		"domains":         actor.Domains,
		"social_urls":     actor.SocialURLs,
		"bio":             actor.Bio,
		"location_name":   actor.LocationName,
		"discovery_depth": actor.DiscoveryDepth,
		"created_at":      actor.CreatedAt,
	}
	if actor.Location != nil {
		doc["lat"] = actor.Location.Lat
		doc["lng"] = actor.Location.Lng
	}

	aql := `UPSERT { _key: @key } INSERT @doc UPDATE @doc IN actors`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": actor.ID, "doc": doc}})
	if err != nil {
		return fmt.Errorf("arango: upsert actor %s: %w", actor.ID, err)
	}
	return nil
}

// LinkActorToSignal creates an ACTED_IN edge, deduped by (actor, signal, role).
func (s *Store) LinkActorToSignal(ctx context.Context, actorID, signalID uuid.UUID, role domain.ActorRole) error {
	from := fmt.Sprintf("%s/%s", ColActors, actorID.String())
	to := fmt.Sprintf("%s/%s", ColSignals, signalID.String())
	aql := `
		UPSERT { _from: @from, _to: @to, role: @role }
		INSERT { _from: @from, _to: @to, role: @role }
		UPDATE {} IN acted_in
	`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"from": from, "to": to, "role": string(role)}})
	if err != nil {
		return fmt.Errorf("arango: link actor %s to signal %s: %w", actorID, signalID, err)
	}
	return nil
}

// LinkActorToSource creates an actor-source edge.
func (s *Store) LinkActorToSource(ctx context.Context, actorID uuid.UUID, sourceKey string) error {
	return s.linkEdge(ctx, EdgeActorSource, fmt.Sprintf("%s/%s", ColActors, actorID.String()), fmt.Sprintf("%s/%s", ColSources, sourceKey))
}

// LinkSignalToSource creates a signal-source edge.
func (s *Store) LinkSignalToSource(ctx context.Context, signalID uuid.UUID, sourceKey string) error {
	return s.linkEdge(ctx, EdgeSignalSource, fmt.Sprintf("%s/%s", ColSignals, signalID.String()), fmt.Sprintf("%s/%s", ColSources, sourceKey))
}

func (s *Store) linkEdge(ctx context.Context, collection, from, to string) error {
	aql := fmt.Sprintf(`
		UPSERT { _from: @from, _to: @to }
		INSERT { _from: @from, _to: @to }
		UPDATE {} IN %s
	`, collection)
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"from": from, "to": to}})
	if err != nil {
		return fmt.Errorf("arango: link edge in %s: %w", collection, err)
	}
	return nil
}

// FindActorByEntityID looks up an actor by its URL-derived canonical identity.
func (s *Store) FindActorByEntityID(ctx context.Context, entityID string) (uuid.UUID, bool, error) {
	var found uuid.UUID
	ok := false
	aql := `FOR a IN actors FILTER a.entity_id == @entityID LIMIT 1 RETURN a._key`
	err := s.query(ctx, aql, map[string]any{"entityID": entityID}, func(c arangodb.Cursor) error {
		var key string
		if _, err := c.ReadDocument(ctx, &key); err != nil {
			return err
		}
		id, err := uuid.Parse(key)
		if err != nil {
			return nil
		}
		found, ok = id, true
		return nil
	})
	return found, ok, err
}

// FindOrCreateResource deduplicates typed-concept Resource nodes by slug.
func (s *Store) FindOrCreateResource(ctx context.Context, name, slug, description string, embedding []float32) (uuid.UUID, error) {
	var found uuid.UUID
	err := s.query(ctx, `FOR r IN resources FILTER r.slug == @slug LIMIT 1 RETURN r._key`,
		map[string]any{"slug": slug}, func(c arangodb.Cursor) error {
			var key string
			if _, err := c.ReadDocument(ctx, &key); err != nil {
				return err
			}
			id, err := uuid.Parse(key)
			if err == nil {
				found = id
			}
			return nil
		})
	if err != nil {
		return uuid.Nil, err
	}
	if found != uuid.Nil {
		return found, nil
	}

	id := uuid.New()
	doc := map[string]any{"_key": id.String(), "name": name, "slug": slug, "description": description, "embedding": embedding}
	if err := s.createOne(ctx, ColResources, doc); err != nil {
		return uuid.Nil, fmt.Errorf("arango: create resource: %w", err)
	}
	return id, nil
}

// CreateRequiresEdge links a Need to a resource it requires.
func (s *Store) CreateRequiresEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, quantity, notes *string) error {
	return s.createReferencesEdge(ctx, signalID, resourceID, domain.ResourceRequires, confidence, quantity, nil, notes)
}

// CreatePrefersEdge links a signal to a resource it prefers.
func (s *Store) CreatePrefersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64) error {
	return s.createReferencesEdge(ctx, signalID, resourceID, domain.ResourcePrefers, confidence, nil, nil, nil)
}

// CreateOffersEdge links an Aid to a resource it offers.
func (s *Store) CreateOffersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, capacity *string) error {
	return s.createReferencesEdge(ctx, signalID, resourceID, domain.ResourceOffers, confidence, nil, capacity, nil)
}

func (s *Store) createReferencesEdge(ctx context.Context, signalID, resourceID uuid.UUID, typ domain.ResourceType, confidence float64, quantity, capacity, notes *string) error {
	doc := map[string]any{
		"_from":      fmt.Sprintf("%s/%s", ColSignals, signalID.String()),
		"_to":        fmt.Sprintf("%s/%s", ColResources, resourceID.String()),
		"type":       string(typ),
		"confidence": confidence,
		"quantity":   quantity,
		"capacity":   capacity,
		"notes":      notes,
	}
	if err := s.createOne(ctx, EdgeReferences, doc); err != nil {
		return fmt.Errorf("arango: create references edge: %w", err)
	}
	return nil
}

// CreateResponseEdge records a RESPONDS_TO edge (Aid/Need -> Tension/Need).
func (s *Store) CreateResponseEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error {
	doc := map[string]any{
		"_from":       fmt.Sprintf("%s/%s", ColSignals, signalID.String()),
		"_to":         fmt.Sprintf("%s/%s", ColSignals, tensionID.String()),
		"strength":    strength,
		"explanation": explanation,
	}
	if err := s.createOne(ctx, EdgeRespondsTo, doc); err != nil {
		return fmt.Errorf("arango: create responds_to edge: %w", err)
	}
	return nil
}

// CreateDrawnToEdge records a DRAWN_TO edge (Gathering -> Tension).
func (s *Store) CreateDrawnToEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation, gatheringType string) error {
	doc := map[string]any{
		"_from":          fmt.Sprintf("%s/%s", ColSignals, signalID.String()),
		"_to":            fmt.Sprintf("%s/%s", ColSignals, tensionID.String()),
		"strength":       strength,
		"explanation":    explanation,
		"gathering_type": gatheringType,
	}
	if err := s.createOne(ctx, EdgeDrawnTo, doc); err != nil {
		return fmt.Errorf("arango: create drawn_to edge: %w", err)
	}
	return nil
}

// BatchUpsertSimilarity writes the similarity edge builder's output in one
// round trip via AQL FOR/INSERT.
func (s *Store) BatchUpsertSimilarity(ctx context.Context, edges []domain.SimilarToEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	docs := make([]map[string]any, len(edges))
	for i, e := range edges {
		docs[i] = map[string]any{
			"_from":  fmt.Sprintf("%s/%s", ColSignals, e.From.String()),
			"_to":    fmt.Sprintf("%s/%s", ColSignals, e.To.String()),
			"weight": e.Weight,
		}
	}
	aql := `FOR d IN @docs INSERT d IN similar_to`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"docs": docs}})
	if err != nil {
		return 0, fmt.Errorf("arango: batch upsert similarity: %w", err)
	}
	return len(edges), nil
}

// GetActiveSources returns every active Source for a city (scheduler input).
func (s *Store) GetActiveSources(ctx context.Context, city string) ([]domain.Source, error) {
	var out []domain.Source
	aql := `FOR src IN sources FILTER src.city == @city AND src.active == true RETURN src`
	err := s.query(ctx, aql, map[string]any{"city": city}, func(c arangodb.Cursor) error {
		var row sourceDoc
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, row.toDomain())
		return nil
	})
	return out, err
}

// UpsertSource creates or updates a Source by canonical_key (MERGE
// semantics, idempotent across every discovery surface).
func (s *Store) UpsertSource(ctx context.Context, source domain.Source) error {
	doc := sourceFromDomain(source)
	aql := `
		UPSERT { canonical_key: @key }
		INSERT @doc
		UPDATE { url: @doc.url, weight: @doc.weight, active: @doc.active }
		IN sources
	`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": source.CanonicalKey, "doc": doc}})
	if err != nil {
		return fmt.Errorf("arango: upsert source %s: %w", source.CanonicalKey, err)
	}
	return nil
}

// BatchTagSignals attaches tag slugs to a signal via SIGNAL_TAG edges,
// creating any missing Tag node first.
func (s *Store) BatchTagSignals(ctx context.Context, signalID uuid.UUID, tagSlugs []string) error {
	for _, slug := range tagSlugs {
		aql := `UPSERT { _key: @slug } INSERT { _key: @slug, slug: @slug } UPDATE {} IN tags`
		if _, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"slug": slug}}); err != nil {
			return fmt.Errorf("arango: upsert tag %s: %w", slug, err)
		}
		if err := s.linkEdge(ctx, EdgeSignalTag, fmt.Sprintf("%s/%s", ColSignals, signalID.String()), fmt.Sprintf("%s/%s", ColTags, slug)); err != nil {
			return err
		}
	}
	return nil
}

// RecordSourceScrape updates a source's rolling scrape metrics after one run.
func (s *Store) RecordSourceScrape(ctx context.Context, canonicalKey string, signalsProduced int, now time.Time) error {
	aql := `
		FOR src IN sources FILTER src.canonical_key == @key
			UPDATE src WITH {
				last_scraped: @now,
				scrape_count: OLD.scrape_count + 1,
				signals_produced: OLD.signals_produced + @produced,
				consecutive_empty_runs: @produced > 0 ? 0 : OLD.consecutive_empty_runs + 1,
				last_produced_signal: @produced > 0 ? @now : OLD.last_produced_signal,
				avg_signals_per_scrape: (OLD.signals_produced + @produced) / (OLD.scrape_count + 1)
			} IN sources
	`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": canonicalKey, "now": now, "produced": signalsProduced}})
	if err != nil {
		return fmt.Errorf("arango: record source scrape %s: %w", canonicalKey, err)
	}
	return nil
}

// GetActivePins returns every one-shot discovery hint within a scope's
// bounding box. Pins are seeded out-of-band — there is no in-core ingestion
// path for them, only a CLI-level import into this collection.
func (s *Store) GetActivePins(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]domain.Pin, error) {
	var out []domain.Pin
	aql := `
		FOR p IN pins
			FILTER p.lat >= @minLat AND p.lat <= @maxLat AND p.lng >= @minLng AND p.lng <= @maxLng
			RETURN p
	`
	err := s.query(ctx, aql, map[string]any{"minLat": minLat, "maxLat": maxLat, "minLng": minLng, "maxLng": maxLng}, func(c arangodb.Cursor) error {
		var row struct {
			Key       string    `json:"_key"`
			URL       string    `json:"url"`
			Lat       float64   `json:"lat"`
			Lng       float64   `json:"lng"`
			Context   string    `json:"context"`
			CreatedAt time.Time `json:"created_at"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, domain.Pin{ID: row.Key, URL: row.URL, Lat: row.Lat, Lng: row.Lng, Context: row.Context, CreatedAt: row.CreatedAt})
		return nil
	})
	return out, err
}

// DeletePins removes one-shot discovery hints once scraped.
func (s *Store) DeletePins(ctx context.Context, pinIDs []string) error {
	if len(pinIDs) == 0 {
		return nil
	}
	aql := `FOR id IN @ids REMOVE id IN pins`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"ids": pinIDs}})
	if err != nil {
		return fmt.Errorf("arango: delete pins: %w", err)
	}
	return nil
}

// ReapExpired removes expired Gatherings/Needs and actors with zero
// remaining signal edges, tallying what was removed.
func (s *Store) ReapExpired(ctx context.Context, now time.Time) (traits.ReapStats, error) {
	var stats traits.ReapStats

	err := s.query(ctx, `
		FOR s IN signals
			FILTER s.type == "gathering" AND s.ends_at != null AND s.ends_at < @now
			REMOVE s IN signals
			COLLECT WITH COUNT INTO n
			RETURN n
	`, map[string]any{"now": now}, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &stats.GatheringsExpired)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("arango: reap gatherings: %w", err)
	}

	horizon := now.Add(-30 * 24 * time.Hour)
	err = s.query(ctx, `
		FOR s IN signals
			FILTER s.type == "need" AND s.last_confirmed_active < @horizon
			REMOVE s IN signals
			COLLECT WITH COUNT INTO n
			RETURN n
	`, map[string]any{"horizon": horizon}, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &stats.NeedsExpired)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("arango: reap needs: %w", err)
	}

	err = s.query(ctx, `
		FOR a IN actors
			FILTER LENGTH(FOR e IN acted_in FILTER e._from == a._id LIMIT 1 RETURN 1) == 0
			REMOVE a IN actors
			COLLECT WITH COUNT INTO n
			RETURN n
	`, nil, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &stats.ActorsPruned)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("arango: reap actors: %w", err)
	}

	return stats, nil
}

// GetSignalsForActor returns the geo-tagged signals an actor authored/was
// mentioned in, for location triangulation.
func (s *Store) GetSignalsForActor(ctx context.Context, actorID uuid.UUID) ([]traits.ActorSignalObservation, error) {
	var out []traits.ActorSignalObservation
	aql := `
		FOR e IN acted_in FILTER e._from == @actor
			FOR s IN signals FILTER s._id == e._to AND s.lat != null
				RETURN { lat: s.lat, lng: s.lng, location_name: s.location_name, extracted_at: s.extracted_at }
	`
	from := fmt.Sprintf("%s/%s", ColActors, actorID.String())
	err := s.query(ctx, aql, map[string]any{"actor": from}, func(c arangodb.Cursor) error {
		var row traits.ActorSignalObservation
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// UpdateActorLocation writes the triangulated location back to an actor.
func (s *Store) UpdateActorLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64, name string) error {
	aql := `UPDATE @key WITH { lat: @lat, lng: @lng, location_name: @name } IN actors`
	_, err := s.db.Query(ctx, aql, &arangodb.QueryOptions{BindVars: map[string]any{"key": actorID.String(), "lat": lat, "lng": lng, "name": name}})
	if err != nil {
		return fmt.Errorf("arango: update actor location %s: %w", actorID, err)
	}
	return nil
}

// ListAllActors returns every actor with its linked sources, for the
// mentioned-account promotion enrichment pass.
func (s *Store) ListAllActors(ctx context.Context) ([]traits.ActorWithSources, error) {
	var out []traits.ActorWithSources
	aql := `
		FOR a IN actors
			LET srcs = (FOR e IN actor_source FILTER e._from == a._id FOR src IN sources FILTER src._id == e._to RETURN src)
			RETURN { actor: a, sources: srcs }
	`
	err := s.query(ctx, aql, nil, func(c arangodb.Cursor) error {
		var row struct {
			Actor   actorDoc    `json:"actor"`
			Sources []sourceDoc `json:"sources"`
		}
		if _, err := c.ReadDocument(ctx, &row); err != nil {
			return err
		}
		sources := make([]domain.Source, len(row.Sources))
		for i, sd := range row.Sources {
			sources[i] = sd.toDomain()
		}
		out = append(out, traits.ActorWithSources{Actor: row.Actor.toDomain(), Sources: sources})
		return nil
	})
	return out, err
}

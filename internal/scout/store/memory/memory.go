// Package memory is an in-memory implementation of traits.SignalStore and
// traits.SignalReader, used by the beacon tests. Every method locks a
// sync.Mutex, so concurrent calls are safe.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/similarity"
	"rootsignal.dev/scout/internal/scout/traits"
)

type signalRecord struct {
	meta      domain.NodeMeta
	typed     any
	embedding []float32
	sourceURL string
	createdBy string
}

type actorRecord struct {
	actor   domain.Actor
	sources map[string]bool
}

// Store is the in-memory graph double.
type Store struct {
	mu sync.Mutex

	signals   map[uuid.UUID]*signalRecord
	evidence  map[uuid.UUID][]domain.Evidence
	actors    map[uuid.UUID]*actorRecord
	resources map[uuid.UUID]resourceRecord
	sources   map[string]domain.Source // by canonical_key
	blocked   map[string]bool
	processed map[string]bool // hash+url
	pins      map[string]domain.Pin
	similar   []domain.SimilarToEdge
	responds  []domain.RespondsToEdge
	drawnTo   []domain.DrawnToEdge
	tags      map[uuid.UUID][]string
	tasks     []traits.ScoutTask
	projected []events.Kind
	actedIn   map[uuid.UUID]map[uuid.UUID]bool // actorID -> signalIDs
}

type resourceRecord struct {
	name        string
	slug        string
	description string
	embedding   []float32
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		signals:   make(map[uuid.UUID]*signalRecord),
		evidence:  make(map[uuid.UUID][]domain.Evidence),
		actors:    make(map[uuid.UUID]*actorRecord),
		resources: make(map[uuid.UUID]resourceRecord),
		sources:   make(map[string]domain.Source),
		blocked:   make(map[string]bool),
		processed: make(map[string]bool),
		pins:      make(map[string]domain.Pin),
		tags:      make(map[uuid.UUID][]string),
		actedIn:   make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

var _ traits.SignalStore = (*Store)(nil)
var _ traits.SignalReader = (*Store)(nil)

func (s *Store) BlockedURLs(_ context.Context, urls []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		out[u] = s.blocked[u]
	}
	return out, nil
}

func (s *Store) ContentAlreadyProcessed(_ context.Context, hash, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[hash+"|"+url], nil
}

// MarkProcessed is a test helper, not part of traits.SignalStore.
func (s *Store) MarkProcessed(hash, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[hash+"|"+url] = true
}

// BlockURL is a test helper.
func (s *Store) BlockURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[url] = true
}

func (s *Store) CreateNode(_ context.Context, meta domain.NodeMeta, typed any, embedding []float32, contentHash, createdBy, _ string) (uuid.UUID, error) {
	if err := meta.Validate(); err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	s.signals[meta.ID] = &signalRecord{meta: meta, typed: typed, embedding: embedding, sourceURL: meta.SourceURL, createdBy: createdBy}
	if contentHash != "" && meta.SourceURL != "" {
		s.processed[contentHash+"|"+meta.SourceURL] = true
	}
	return meta.ID, nil
}

func (s *Store) CreateEvidence(_ context.Context, evidence domain.Evidence, signalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	evidence.SignalID = signalID
	s.evidence[signalID] = append(s.evidence[signalID], evidence)
	return nil
}

func (s *Store) RefreshSignal(_ context.Context, id uuid.UUID, _ domain.NodeType, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signals[id]
	if !ok {
		return nil
	}
	rec.meta.LastConfirmedActive = now
	return nil
}

func (s *Store) UpdateTensionSeverity(_ context.Context, id uuid.UUID, severity domain.TensionSeverity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signals[id]
	if !ok {
		return nil
	}
	t, ok := rec.typed.(domain.Tension)
	if !ok {
		return nil
	}
	t.Severity = severity
	rec.typed = t
	return nil
}

func (s *Store) RefreshURLSignals(_ context.Context, url string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, rec := range s.signals {
		if rec.sourceURL == url {
			rec.meta.LastConfirmedActive = now
			count++
		}
	}
	return count, nil
}

func (s *Store) Corroborate(_ context.Context, id uuid.UUID, _ domain.NodeType, now time.Time, mappings []traits.EntityMapping, sourceURL string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signals[id]
	if !ok {
		return nil
	}
	rec.meta.LastConfirmedActive = now
	rec.meta.CorroborationCount++
	if sourceURL != rec.sourceURL {
		rec.meta.SourceDiversity++
	}
	_ = mappings
	return nil
}

func (s *Store) ExistingTitlesForURL(_ context.Context, url string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var titles []string
	for _, rec := range s.signals {
		if rec.sourceURL == url {
			titles = append(titles, rec.meta.Title)
		}
	}
	return titles, nil
}

func (s *Store) FindByTitlesAndTypes(_ context.Context, pairs []traits.TitleTypePair) (map[traits.TitleTypePair]traits.ExistingSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[traits.TitleTypePair]bool, len(pairs))
	for _, p := range pairs {
		want[p] = true
	}
	out := make(map[traits.TitleTypePair]traits.ExistingSignal)
	for _, rec := range s.signals {
		key := traits.TitleTypePair{LowerTitle: strings.ToLower(strings.TrimSpace(rec.meta.Title)), Type: rec.meta.Type}
		if !want[key] {
			continue
		}
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = traits.ExistingSignal{ID: rec.meta.ID, SourceURL: rec.sourceURL}
	}
	return out, nil
}

func (s *Store) FindDuplicate(_ context.Context, embedding []float32, primaryType domain.NodeType, threshold float64, minLat, maxLat, minLng, maxLng float64) (*traits.DuplicateMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *traits.DuplicateMatch
	for _, rec := range s.signals {
		if rec.meta.Type != primaryType {
			continue
		}
		if rec.meta.Geo != nil {
			if rec.meta.Geo.Lat < minLat || rec.meta.Geo.Lat > maxLat || rec.meta.Geo.Lng < minLng || rec.meta.Geo.Lng > maxLng {
				continue
			}
		}
		sim := similarity.Cosine(rec.embedding, embedding)
		if sim < threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &traits.DuplicateMatch{ExistingID: rec.meta.ID, SourceURL: rec.sourceURL, Similarity: sim}
		}
	}
	return best, nil
}

func (s *Store) FindActorByName(_ context.Context, name string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.actors {
		if strings.EqualFold(rec.actor.Name, name) {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (s *Store) UpsertActor(_ context.Context, actor domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := uuid.Parse(actor.ID)
	if err != nil || id == uuid.Nil {
		id = uuid.New()
		actor.ID = id.String()
	}
	if existing, ok := s.actors[id]; ok {
		existing.actor = actor
		return nil
	}
	s.actors[id] = &actorRecord{actor: actor, sources: make(map[string]bool)}
	return nil
}

func (s *Store) LinkActorToSignal(_ context.Context, actorID, signalID uuid.UUID, _ domain.ActorRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[actorID]; !ok {
		return nil
	}
	if s.actedIn[actorID] == nil {
		s.actedIn[actorID] = make(map[uuid.UUID]bool)
	}
	s.actedIn[actorID][signalID] = true
	return nil
}

func (s *Store) LinkActorToSource(_ context.Context, actorID uuid.UUID, sourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actors[actorID]
	if !ok {
		return nil
	}
	rec.sources[sourceKey] = true
	return nil
}

func (s *Store) LinkSignalToSource(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (s *Store) FindActorByEntityID(_ context.Context, entityID string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.actors {
		if rec.actor.EntityID != "" && rec.actor.EntityID == entityID {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (s *Store) FindOrCreateResource(_ context.Context, name, slug, description string, embedding []float32) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.resources {
		if r.slug == slug {
			return id, nil
		}
	}
	id := uuid.New()
	s.resources[id] = resourceRecord{name: name, slug: slug, description: description, embedding: embedding}
	return id, nil
}

func (s *Store) CreateRequiresEdge(_ context.Context, _, _ uuid.UUID, _ float64, _, _ *string) error {
	return nil
}

func (s *Store) CreatePrefersEdge(_ context.Context, _, _ uuid.UUID, _ float64) error {
	return nil
}

func (s *Store) CreateOffersEdge(_ context.Context, _, _ uuid.UUID, _ float64, _ *string) error {
	return nil
}

func (s *Store) CreateResponseEdge(_ context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responds = append(s.responds, domain.RespondsToEdge{From: signalID, To: tensionID, Strength: strength, Explanation: explanation})
	return nil
}

func (s *Store) CreateDrawnToEdge(_ context.Context, signalID, tensionID uuid.UUID, strength float64, explanation, gatheringType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawnTo = append(s.drawnTo, domain.DrawnToEdge{From: signalID, To: tensionID, Strength: strength, Explanation: explanation, GatheringType: gatheringType})
	return nil
}

func (s *Store) BatchUpsertSimilarity(_ context.Context, edges []domain.SimilarToEdge) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.similar = append(s.similar, edges...)
	return len(edges), nil
}

func (s *Store) GetActiveSources(_ context.Context, city string) ([]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Source
	for _, src := range s.sources {
		if src.City == city && src.Active {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalKey < out[j].CanonicalKey })
	return out, nil
}

func (s *Store) UpsertSource(_ context.Context, source domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sources[source.CanonicalKey]; ok {
		// MERGE semantics: keep accumulated scheduling state, refresh
		// provenance-only fields.
		existing.CanonicalValue = source.CanonicalValue
		existing.URL = source.URL
		existing.Active = true
		s.sources[source.CanonicalKey] = existing
		return nil
	}
	s.sources[source.CanonicalKey] = source
	return nil
}

func (s *Store) BatchTagSignals(_ context.Context, signalID uuid.UUID, tagSlugs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[signalID] = append(s.tags[signalID], tagSlugs...)
	return nil
}

func (s *Store) RecordSourceScrape(_ context.Context, canonicalKey string, signalsProduced int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[canonicalKey]
	if !ok {
		return nil
	}
	src.LastScraped = &now
	src.ScrapeCount++
	src.SignalsProduced += signalsProduced
	if signalsProduced == 0 {
		src.ConsecutiveEmptyRuns++
	} else {
		src.ConsecutiveEmptyRuns = 0
		src.LastProducedSignal = &now
	}
	if src.ScrapeCount > 0 {
		src.AvgSignalsPerScrape = float64(src.SignalsProduced) / float64(src.ScrapeCount)
	}
	s.sources[canonicalKey] = src
	return nil
}

// SeedPin adds a discovery hint directly, for tests that exercise the
// Finalize phase's pin-consumption step without a real import path.
func (s *Store) SeedPin(pin domain.Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[pin.ID] = pin
}

func (s *Store) GetActivePins(_ context.Context, minLat, maxLat, minLng, maxLng float64) ([]domain.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Pin
	for _, p := range s.pins {
		if p.Lat >= minLat && p.Lat <= maxLat && p.Lng >= minLng && p.Lng <= maxLng {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeletePins(_ context.Context, pinIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range pinIDs {
		delete(s.pins, id)
	}
	return nil
}

func (s *Store) ReapExpired(_ context.Context, now time.Time) (traits.ReapStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats traits.ReapStats
	for id, rec := range s.signals {
		switch v := rec.typed.(type) {
		case domain.Gathering:
			if v.Expired(now) {
				delete(s.signals, id)
				stats.GatheringsExpired++
			}
		case domain.Need:
			if v.Expired(now) {
				delete(s.signals, id)
				stats.NeedsExpired++
			}
		}
	}
	return stats, nil
}

func (s *Store) GetSignalsForActor(_ context.Context, actorID uuid.UUID) ([]traits.ActorSignalObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.actors[actorID]
	if !ok {
		return nil, nil
	}
	var out []traits.ActorSignalObservation
	for signalID := range s.actedIn[actorID] {
		rec, ok := s.signals[signalID]
		if !ok || rec.meta.Geo == nil {
			continue
		}
		out = append(out, traits.ActorSignalObservation{
			Lat: rec.meta.Geo.Lat, Lng: rec.meta.Geo.Lng,
			LocationName: rec.meta.LocationName, ExtractedAt: rec.meta.ExtractedAt,
		})
	}
	return out, nil
}

func (s *Store) UpdateActorLocation(_ context.Context, actorID uuid.UUID, lat, lng float64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actors[actorID]
	if !ok {
		return nil
	}
	rec.actor.Location = &domain.GeoPoint{Lat: lat, Lng: lng, Precision: domain.GeoPrecisionNeighborhood}
	rec.actor.LocationName = name
	return nil
}

func (s *Store) ListAllActors(_ context.Context) ([]traits.ActorWithSources, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.ActorWithSources
	for _, rec := range s.actors {
		var srcs []domain.Source
		for key := range rec.sources {
			if src, ok := s.sources[key]; ok {
				srcs = append(srcs, src)
			}
		}
		out = append(out, traits.ActorWithSources{Actor: rec.actor, Sources: srcs})
	}
	return out, nil
}

// --- SignalReader ---

func (s *Store) GetActorsWithDomains(_ context.Context, _ string) ([]traits.ActorDomains, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.ActorDomains
	for _, rec := range s.actors {
		if len(rec.actor.Domains) == 0 && len(rec.actor.SocialURLs) == 0 {
			continue
		}
		out = append(out, traits.ActorDomains{ActorName: rec.actor.Name, Domains: rec.actor.Domains, SocialURLs: rec.actor.SocialURLs})
	}
	return out, nil
}

func (s *Store) GetActiveTensions(_ context.Context, minLat, maxLat, minLng, maxLng float64) ([]traits.TensionEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.TensionEmbedding
	for _, rec := range s.signals {
		if rec.meta.Type != domain.NodeTypeTension {
			continue
		}
		if rec.meta.Geo != nil && (rec.meta.Geo.Lat < minLat || rec.meta.Geo.Lat > maxLat || rec.meta.Geo.Lng < minLng || rec.meta.Geo.Lng > maxLng) {
			continue
		}
		out = append(out, traits.TensionEmbedding{ID: rec.meta.ID, Embedding: rec.embedding})
	}
	return out, nil
}

func (s *Store) FindResponseCandidates(_ context.Context, tensionEmbedding []float32, minLat, maxLat, minLng, maxLng float64) ([]traits.ResponseCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.ResponseCandidate
	for _, rec := range s.signals {
		if !rec.meta.Type.IsResponseType() {
			continue
		}
		if rec.meta.Geo != nil && (rec.meta.Geo.Lat < minLat || rec.meta.Geo.Lat > maxLat || rec.meta.Geo.Lng < minLng || rec.meta.Geo.Lng > maxLng) {
			continue
		}
		sim := similarity.Cosine(rec.embedding, tensionEmbedding)
		if sim < 0.4 {
			continue
		}
		out = append(out, traits.ResponseCandidate{ID: rec.meta.ID, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func (s *Store) GetSignalInfo(_ context.Context, id uuid.UUID) (*traits.SignalInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signals[id]
	if !ok {
		return nil, nil
	}
	info := &traits.SignalInfo{
		Title:              rec.meta.Title,
		Summary:            rec.meta.Summary,
		Type:               rec.meta.Type,
		CorroborationCount: rec.meta.CorroborationCount,
		SourceDiversity:    rec.meta.SourceDiversity,
		CauseHeat:          rec.meta.CauseHeat,
	}
	if t, ok := rec.typed.(domain.Tension); ok {
		info.Severity = t.Severity
	}
	return info, nil
}

func (s *Store) GetRecentTensions(_ context.Context, limit int) ([]traits.RecentTension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.RecentTension
	for _, rec := range s.signals {
		if rec.meta.Type != domain.NodeTypeTension {
			continue
		}
		t, ok := rec.typed.(domain.Tension)
		if !ok {
			continue
		}
		out = append(out, traits.RecentTension{Title: rec.meta.Title, WhatWouldHelp: t.WhatWouldHelp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetLiveSignalsWithLocation(_ context.Context, since time.Time) ([]traits.LiveSignalLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.LiveSignalLocation
	for _, rec := range s.signals {
		if rec.meta.Geo == nil {
			continue
		}
		if rec.meta.LastConfirmedActive.Before(since) {
			continue
		}
		var name *string
		if rec.meta.LocationName != "" {
			n := rec.meta.LocationName
			name = &n
		}
		out = append(out, traits.LiveSignalLocation{Lat: rec.meta.Geo.Lat, Lng: rec.meta.Geo.Lng, Title: rec.meta.Title, LocationName: name})
	}
	return out, nil
}

func (s *Store) GetLiveSignalsForSimilarity(_ context.Context, since time.Time) ([]traits.LiveSignalEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.LiveSignalEmbedding
	for id, rec := range s.signals {
		switch rec.meta.Type {
		case domain.NodeTypeGathering, domain.NodeTypeAid, domain.NodeTypeNeed, domain.NodeTypeNotice, domain.NodeTypeTension:
		default:
			continue
		}
		if rec.meta.ExtractedAt.Before(since) {
			continue
		}
		out = append(out, traits.LiveSignalEmbedding{ID: id, Embedding: rec.embedding, Confidence: rec.meta.Confidence})
	}
	return out, nil
}

func (s *Store) ListScoutTasks(_ context.Context, status string, limit int) ([]traits.ScoutTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []traits.ScoutTask
	for _, t := range s.scoutTasks() {
		if status != "" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// scoutTasks returns the tasks recorded by CreateScoutTask (tasks.go), a
// beacon-detection byproduct rather than a signal-graph entity.
func (s *Store) scoutTasks() []traits.ScoutTask {
	return s.tasks
}

package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/traits"
)

// fakeStore implements traits.SignalStore, stubbing everything Cascade
// doesn't exercise so the dedup tests can depend on the interface directly
// rather than a narrower hand-cut subset.
type fakeStore struct {
	titlesForURL map[string][]string
	byTitleType  map[traits.TitleTypePair]traits.ExistingSignal
	duplicate    *traits.DuplicateMatch
}

func (f *fakeStore) BlockedURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	return nil, nil
}
func (f *fakeStore) ContentAlreadyProcessed(ctx context.Context, hash, url string) (bool, error) {
	return false, nil
}
func (f *fakeStore) CreateNode(ctx context.Context, meta domain.NodeMeta, typed any, embedding []float32, contentHash, createdBy, runID string) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeStore) CreateEvidence(ctx context.Context, evidence domain.Evidence, signalID uuid.UUID) error {
	return nil
}
func (f *fakeStore) RefreshSignal(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time) error {
	return nil
}
func (f *fakeStore) RefreshURLSignals(ctx context.Context, url string, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeStore) Corroborate(ctx context.Context, id uuid.UUID, nodeType domain.NodeType, now time.Time, mappings []traits.EntityMapping, sourceURL string, similarity float64) error {
	return nil
}
func (f *fakeStore) ExistingTitlesForURL(ctx context.Context, url string) ([]string, error) {
	return f.titlesForURL[url], nil
}
func (f *fakeStore) FindByTitlesAndTypes(ctx context.Context, pairs []traits.TitleTypePair) (map[traits.TitleTypePair]traits.ExistingSignal, error) {
	out := make(map[traits.TitleTypePair]traits.ExistingSignal)
	for _, p := range pairs {
		if hit, ok := f.byTitleType[p]; ok {
			out[p] = hit
		}
	}
	return out, nil
}
func (f *fakeStore) FindDuplicate(ctx context.Context, embedding []float32, primaryType domain.NodeType, threshold float64, minLat, maxLat, minLng, maxLng float64) (*traits.DuplicateMatch, error) {
	return f.duplicate, nil
}
func (f *fakeStore) FindActorByName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}
func (f *fakeStore) UpsertActor(ctx context.Context, actor domain.Actor) error { return nil }
func (f *fakeStore) LinkActorToSignal(ctx context.Context, actorID, signalID uuid.UUID, role domain.ActorRole) error {
	return nil
}
func (f *fakeStore) LinkActorToSource(ctx context.Context, actorID uuid.UUID, sourceKey string) error {
	return nil
}
func (f *fakeStore) LinkSignalToSource(ctx context.Context, signalID uuid.UUID, sourceKey string) error {
	return nil
}
func (f *fakeStore) FindActorByEntityID(ctx context.Context, entityID string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}
func (f *fakeStore) FindOrCreateResource(ctx context.Context, name, slug, description string, embedding []float32) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeStore) CreateRequiresEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, quantity, notes *string) error {
	return nil
}
func (f *fakeStore) CreatePrefersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64) error {
	return nil
}
func (f *fakeStore) CreateOffersEdge(ctx context.Context, signalID, resourceID uuid.UUID, confidence float64, capacity *string) error {
	return nil
}
func (f *fakeStore) CreateResponseEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error {
	return nil
}
func (f *fakeStore) CreateDrawnToEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation, gatheringType string) error {
	return nil
}
func (f *fakeStore) BatchUpsertSimilarity(ctx context.Context, edges []domain.SimilarToEdge) (int, error) {
	return 0, nil
}
func (f *fakeStore) GetActiveSources(ctx context.Context, city string) ([]domain.Source, error) {
	return nil, nil
}
func (f *fakeStore) UpsertSource(ctx context.Context, source domain.Source) error { return nil }
func (f *fakeStore) BatchTagSignals(ctx context.Context, signalID uuid.UUID, tagSlugs []string) error {
	return nil
}
func (f *fakeStore) RecordSourceScrape(ctx context.Context, canonicalKey string, signalsProduced int, now time.Time) error {
	return nil
}
func (f *fakeStore) DeletePins(ctx context.Context, pinIDs []string) error { return nil }
func (f *fakeStore) ReapExpired(ctx context.Context, now time.Time) (traits.ReapStats, error) {
	return traits.ReapStats{}, nil
}
func (f *fakeStore) GetSignalsForActor(ctx context.Context, actorID uuid.UUID) ([]traits.ActorSignalObservation, error) {
	return nil, nil
}
func (f *fakeStore) UpdateActorLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64, name string) error {
	return nil
}
func (f *fakeStore) ListAllActors(ctx context.Context) ([]traits.ActorWithSources, error) {
	return nil, nil
}

func TestCascade_L3BatchHitSameURLIsRefresh(t *testing.T) {
	existingID := uuid.New()
	store := &fakeStore{
		byTitleType: map[traits.TitleTypePair]traits.ExistingSignal{
			{LowerTitle: "community garden schedule", Type: domain.NodeTypeGathering}: {ID: existingID, SourceURL: "https://x.org/garden"},
		},
	}
	cache := NewCache()

	result, err := Cascade(context.Background(), store, cache, domain.NodeTypeGathering,
		"Community Garden Schedule", "https://x.org/garden", []float32{0.1, 0.2}, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictSameSourceReencounter, result.Verdict)
	assert.Equal(t, existingID, result.ExistingID)
}

func TestCascade_L3BatchHitDifferentURLIsCrossSource(t *testing.T) {
	existingID := uuid.New()
	store := &fakeStore{
		byTitleType: map[traits.TitleTypePair]traits.ExistingSignal{
			{LowerTitle: "food shelf relocated", Type: domain.NodeTypeAid}: {ID: existingID, SourceURL: "https://a.org"},
		},
	}
	cache := NewCache()

	result, err := Cascade(context.Background(), store, cache, domain.NodeTypeAid,
		"Food Shelf Relocated", "https://b.org", []float32{0.1, 0.2}, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictCrossSourceMatch, result.Verdict)
}

func TestCascade_NoMatchIsNewSignal(t *testing.T) {
	store := &fakeStore{}
	cache := NewCache()

	result, err := Cascade(context.Background(), store, cache, domain.NodeTypeTension,
		"Youth Violence Rising", "https://c.org", []float32{0.5, 0.5}, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictNewSignal, result.Verdict)
}

func TestCascade_L1CacheHitAvoidsStoreRoundTrip(t *testing.T) {
	existingID := uuid.New()
	cache := NewCache()
	embedding := []float32{1, 0, 0}
	cache.Put(existingID, domain.NodeTypeNotice, "https://gov.example/alert", embedding)

	store := &fakeStore{} // would return NewSignal if consulted
	result, err := Cascade(context.Background(), store, cache, domain.NodeTypeNotice,
		"Boil Water Advisory", "https://gov.example/alert", embedding, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictSameSourceReencounter, result.Verdict)
	assert.Equal(t, existingID, result.ExistingID)
}

func TestCascade_L2TitleMatchUnderSameURLShortCircuits(t *testing.T) {
	store := &fakeStore{
		titlesForURL: map[string][]string{
			"https://city.gov/notice": {"Boil Water Advisory"},
		},
		// L3 holds nothing, so without the L2 short-circuit the cascade
		// would fall through to NewSignal.
		byTitleType: map[traits.TitleTypePair]traits.ExistingSignal{},
	}
	cache := NewCache()

	result, err := Cascade(context.Background(), store, cache, domain.NodeTypeNotice,
		"boil water advisory", "https://city.gov/notice", []float32{0.2, 0.3}, -1, 1, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, VerdictSameSourceReencounter, result.Verdict)
}

func TestVectorThreshold_PerType(t *testing.T) {
	assert.Equal(t, 0.88, VectorThreshold(domain.NodeTypeNotice))
	assert.Equal(t, 0.85, VectorThreshold(domain.NodeTypeTension))
	assert.Equal(t, 0.80, VectorThreshold(domain.NodeTypeNeed))
	assert.Equal(t, 0.75, VectorThreshold(domain.NodeTypeGathering))
	assert.Equal(t, 0.75, VectorThreshold(domain.NodeTypeAid))
}

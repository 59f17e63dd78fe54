package linker_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/linker"
	"rootsignal.dev/scout/internal/scout/traits"
)

type fakeReader struct {
	tensions   []traits.TensionEmbedding
	candidates map[uuid.UUID][]traits.ResponseCandidate
	infos      map[uuid.UUID]*traits.SignalInfo
}

func (f *fakeReader) GetActiveTensions(context.Context, float64, float64, float64, float64) ([]traits.TensionEmbedding, error) {
	return f.tensions, nil
}

func (f *fakeReader) FindResponseCandidates(_ context.Context, _ []float32, _, _, _, _ float64) ([]traits.ResponseCandidate, error) {
	return nil, nil
}

func (f *fakeReader) GetSignalInfo(_ context.Context, id uuid.UUID) (*traits.SignalInfo, error) {
	return f.infos[id], nil
}

type fakeWriter struct {
	responses []uuid.UUID
	drawnTo   []uuid.UUID
}

func (f *fakeWriter) CreateResponseEdge(_ context.Context, signalID, _ uuid.UUID, _ float64, _ string) error {
	f.responses = append(f.responses, signalID)
	return nil
}

func (f *fakeWriter) CreateDrawnToEdge(_ context.Context, signalID, _ uuid.UUID, _ float64, _, _ string) error {
	f.drawnTo = append(f.drawnTo, signalID)
	return nil
}

type fakeVerifier struct{ verifyAll bool }

func (v fakeVerifier) VerifyResponds(_ context.Context, _, _, _, _ string) (string, bool, error) {
	if v.verifyAll {
		return "it helps", true, nil
	}
	return "", false, nil
}

func TestLinker_RoutesGatheringToDrawnTo(t *testing.T) {
	tensionID := uuid.New()
	aidID := uuid.New()
	gatheringID := uuid.New()

	reader := &fakeReader{
		tensions: []traits.TensionEmbedding{{ID: tensionID, Embedding: []float32{1, 0}}},
		infos: map[uuid.UUID]*traits.SignalInfo{
			tensionID:   {Title: "eviction wave", Type: domain.NodeTypeTension},
			aidID:       {Title: "rent relief fund", Type: domain.NodeTypeAid},
			gatheringID: {Title: "tenant meetup", Type: domain.NodeTypeGathering},
		},
	}
	writer := &fakeWriter{}
	l := linker.New(fakeCandidateReader{reader, []traits.ResponseCandidate{
		{ID: aidID, Similarity: 0.9},
		{ID: gatheringID, Similarity: 0.8},
	}}, writer, fakeVerifier{verifyAll: true})

	stats, err := l.Run(context.Background(), -90, 90, -180, 180)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ResponsesLinked)
	assert.Equal(t, 1, stats.GatheringsLinked)
	assert.Contains(t, writer.responses, aidID)
	assert.Contains(t, writer.drawnTo, gatheringID)
}

func TestLinker_UnverifiedCandidateSkipped(t *testing.T) {
	tensionID := uuid.New()
	aidID := uuid.New()
	reader := &fakeReader{
		tensions: []traits.TensionEmbedding{{ID: tensionID, Embedding: []float32{1, 0}}},
		infos: map[uuid.UUID]*traits.SignalInfo{
			tensionID: {Title: "t", Type: domain.NodeTypeTension},
			aidID:     {Title: "a", Type: domain.NodeTypeAid},
		},
	}
	writer := &fakeWriter{}
	l := linker.New(fakeCandidateReader{reader, []traits.ResponseCandidate{{ID: aidID, Similarity: 0.9}}}, writer, fakeVerifier{verifyAll: false})

	stats, err := l.Run(context.Background(), -90, 90, -180, 180)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ResponsesLinked)
	assert.Empty(t, writer.responses)
}

// fakeCandidateReader overrides FindResponseCandidates on top of fakeReader
// so each test can supply its own candidate set without repeating the rest
// of the Reader plumbing.
type fakeCandidateReader struct {
	*fakeReader
	candidates []traits.ResponseCandidate
}

func (f fakeCandidateReader) FindResponseCandidates(context.Context, []float32, float64, float64, float64, float64) ([]traits.ResponseCandidate, error) {
	return f.candidates, nil
}

package linker_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/linker"
)

type fakeSimilarityWriter struct {
	edges []domain.SimilarToEdge
}

func (f *fakeSimilarityWriter) BatchUpsertSimilarity(_ context.Context, edges []domain.SimilarToEdge) (int, error) {
	f.edges = append(f.edges, edges...)
	return len(edges), nil
}

func TestBuildSimilarityEdges_ThresholdFilters(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	signals := []linker.LiveSignal{
		{ID: a, Embedding: []float32{1, 0}, Confidence: 1.0},
		{ID: b, Embedding: []float32{1, 0}, Confidence: 1.0},  // identical to a: sim=1.0
		{ID: c, Embedding: []float32{0, 1}, Confidence: 1.0},  // orthogonal to a/b: sim=0.0
	}
	writer := &fakeSimilarityWriter{}

	n, err := linker.BuildSimilarityEdges(context.Background(), writer, signals)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, writer.edges, 1)
	assert.InDelta(t, 1.0, writer.edges[0].Weight, 1e-9)
}

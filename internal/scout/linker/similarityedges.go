package linker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/similarity"
)

// similarityThreshold is the cosine-similarity floor for writing a
// SIMILAR_TO edge.
const similarityThreshold = 0.65

// similarityBatchSize bounds how many edges go into one batch write.
const similarityBatchSize = 500

// LiveSignal is one live signal's embedding and confidence, the input to
// the similarity edge builder.
type LiveSignal struct {
	ID         uuid.UUID
	Embedding  []float32
	Confidence float64
}

// SimilarityWriter is the subset of traits.SignalStore the edge builder
// needs.
type SimilarityWriter interface {
	BatchUpsertSimilarity(ctx context.Context, edges []domain.SimilarToEdge) (int, error)
}

// BuildSimilarityEdges computes pairwise cosine similarity across every
// live signal supplied and writes a SIMILAR_TO edge for every pair at or
// above similarityThreshold, weighted by cosine * sqrt(conf_a * conf_b).
// O(n^2); acceptable at single-region scale — callers shard by node-type
// pair if that stops holding.
func BuildSimilarityEdges(ctx context.Context, writer SimilarityWriter, signals []LiveSignal) (int, error) {
	var batch []domain.SimilarToEdge
	written := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := writer.BatchUpsertSimilarity(ctx, batch)
		if err != nil {
			return fmt.Errorf("similarity: batch upsert: %w", err)
		}
		written += n
		batch = batch[:0]
		return nil
	}

	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			sim := similarity.Cosine(signals[i].Embedding, signals[j].Embedding)
			if sim < similarityThreshold {
				continue
			}
			weight := sim * similarity.ConfidenceWeight(signals[i].Confidence, signals[j].Confidence)
			batch = append(batch, domain.SimilarToEdge{From: signals[i].ID, To: signals[j].ID, Weight: weight})
			if len(batch) >= similarityBatchSize {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// Package linker implements the tension-response linker: response mapper,
// gathering finder, and investigator, all run in the Synthesis phase
// alongside the similarity edge builder.
package linker

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	candidateSimilarityFloor = 0.4
	topCandidates            = 5
)

// Verifier LLM-verifies a candidate response/tension pair, returning a
// one-sentence explanation when it verifies, or ok=false when the model
// answered "NO". Implemented by internal/scout/llm.
type Verifier interface {
	VerifyResponds(ctx context.Context, tensionTitle, tensionSummary, candidateTitle, candidateSummary string) (explanation string, ok bool, err error)
}

// Reader is the subset of traits.SignalReader the linker needs.
type Reader interface {
	GetActiveTensions(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]traits.TensionEmbedding, error)
	FindResponseCandidates(ctx context.Context, tensionEmbedding []float32, minLat, maxLat, minLng, maxLng float64) ([]traits.ResponseCandidate, error)
	GetSignalInfo(ctx context.Context, id uuid.UUID) (*traits.SignalInfo, error)
}

// Writer is the subset of traits.SignalStore the linker needs.
type Writer interface {
	CreateResponseEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation string) error
	CreateDrawnToEdge(ctx context.Context, signalID, tensionID uuid.UUID, strength float64, explanation, gatheringType string) error
}

// Stats tallies one linker pass.
type Stats struct {
	TensionsProcessed int
	CandidatesChecked int
	ResponsesLinked   int
	GatheringsLinked  int
}

// Linker runs the tension-response linker for one scope.
type Linker struct {
	Reader   Reader
	Writer   Writer
	Verifier Verifier
}

// New builds a Linker.
func New(reader Reader, writer Writer, verifier Verifier) *Linker {
	return &Linker{Reader: reader, Writer: writer, Verifier: verifier}
}

// Run links every active Tension in the geo-boxed scope to its top
// candidate responses and gatherings. Response mapping and gathering
// discovery are the same traversal here: a single pass over active tensions
// covers both directions since FindResponseCandidates already geo-boxes and
// vector-searches across every response-type node.
func (l *Linker) Run(ctx context.Context, minLat, maxLat, minLng, maxLng float64) (Stats, error) {
	var stats Stats

	tensions, err := l.Reader.GetActiveTensions(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return stats, fmt.Errorf("linker: load active tensions: %w", err)
	}

	for _, tension := range tensions {
		stats.TensionsProcessed++

		candidates, err := l.Reader.FindResponseCandidates(ctx, tension.Embedding, minLat, maxLat, minLng, maxLng)
		if err != nil {
			return stats, fmt.Errorf("linker: find candidates: %w", err)
		}
		candidates = topN(filterFloor(candidates), topCandidates)

		tensionInfo, err := l.Reader.GetSignalInfo(ctx, tension.ID)
		if err != nil {
			return stats, fmt.Errorf("linker: load tension info: %w", err)
		}
		if tensionInfo == nil {
			continue
		}

		for _, cand := range candidates {
			stats.CandidatesChecked++

			candInfo, err := l.Reader.GetSignalInfo(ctx, cand.ID)
			if err != nil {
				return stats, fmt.Errorf("linker: load candidate info: %w", err)
			}
			if candInfo == nil {
				continue
			}

			explanation, ok, err := l.Verifier.VerifyResponds(ctx, tensionInfo.Title, tensionInfo.Summary, candInfo.Title, candInfo.Summary)
			if err != nil {
				return stats, fmt.Errorf("linker: verify: %w", err)
			}
			if !ok {
				continue
			}

			if candInfo.Type == domain.NodeTypeGathering {
				if err := l.Writer.CreateDrawnToEdge(ctx, cand.ID, tension.ID, cand.Similarity, explanation, string(candInfo.Type)); err != nil {
					return stats, fmt.Errorf("linker: write drawn_to: %w", err)
				}
				stats.GatheringsLinked++
				continue
			}

			if err := l.Writer.CreateResponseEdge(ctx, cand.ID, tension.ID, cand.Similarity, explanation); err != nil {
				return stats, fmt.Errorf("linker: write responds_to: %w", err)
			}
			stats.ResponsesLinked++
		}
	}

	return stats, nil
}

func filterFloor(candidates []traits.ResponseCandidate) []traits.ResponseCandidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Similarity >= candidateSimilarityFloor {
			out = append(out, c)
		}
	}
	return out
}

func topN(candidates []traits.ResponseCandidate, n int) []traits.ResponseCandidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

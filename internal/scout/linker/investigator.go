package linker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/traits"
)

// causeHeatUnclearThreshold is the CauseHeat floor below which a Tension's
// root cause is considered unclear and worth a deferred investigation
// query, rather than a settled fact the existing signals already explain.
const causeHeatUnclearThreshold = 0.3

// InvestigatorReader is the subset of traits.SignalReader the investigator
// needs.
type InvestigatorReader interface {
	GetActiveTensions(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]traits.TensionEmbedding, error)
	GetSignalInfo(ctx context.Context, id uuid.UUID) (*traits.SignalInfo, error)
}

// Investigate opens one deferred expansion query per active Tension whose
// cause is unclear ("why is {tension} happening in {city}"), for the
// signal-expansion discovery surface to dedup and promote in the Expansion
// phase. causeHeat supplies each tension's NodeMeta.CauseHeat by ID — kept
// as a caller-supplied lookup since traits.TensionEmbedding (a k-NN search
// result) doesn't carry it, and adding it there would force every k-NN
// query to hydrate full node metadata it otherwise doesn't need.
func Investigate(ctx context.Context, reader InvestigatorReader, city string, minLat, maxLat, minLng, maxLng float64, causeHeat map[uuid.UUID]float64) ([]string, error) {
	tensions, err := reader.GetActiveTensions(ctx, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("investigator: load active tensions: %w", err)
	}

	var queries []string
	for _, t := range tensions {
		if causeHeat[t.ID] >= causeHeatUnclearThreshold {
			continue
		}
		info, err := reader.GetSignalInfo(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("investigator: load signal info: %w", err)
		}
		if info == nil || info.Type != domain.NodeTypeTension {
			continue
		}
		queries = append(queries, fmt.Sprintf("why is %s happening in %s", info.Title, city))
	}
	return queries, nil
}

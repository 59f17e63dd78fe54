package beacon_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/beacon"
	"rootsignal.dev/scout/internal/scout/store/memory"
	"rootsignal.dev/scout/internal/scout/traits"
)

func locPtr(s string) *string { return &s }

type fakeLiveSignals struct {
	signals []traits.LiveSignalLocation
}

func (f fakeLiveSignals) GetLiveSignalsWithLocation(_ context.Context, _ time.Time) ([]traits.LiveSignalLocation, error) {
	return f.signals, nil
}

func TestDetectFromGraph_Deterministic(t *testing.T) {
	now := time.Now()
	cluster := []traits.LiveSignalLocation{
		{Lat: 44.9778, Lng: -93.2650, Title: "a", LocationName: locPtr("Downtown")},
		{Lat: 44.9779, Lng: -93.2651, Title: "b", LocationName: locPtr("Downtown")},
		{Lat: 44.9777, Lng: -93.2649, Title: "c", LocationName: locPtr("Downtown")},
	}
	reader := fakeLiveSignals{signals: cluster}

	store1 := memory.New()
	n1, err := beacon.DetectFromGraph(context.Background(), reader, store1, now)
	require.NoError(t, err)

	store2 := memory.New()
	n2, err := beacon.DetectFromGraph(context.Background(), reader, store2, now)
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, 1, n1)
}

func TestDetectFromGraph_BelowThreshold(t *testing.T) {
	reader := fakeLiveSignals{signals: []traits.LiveSignalLocation{
		{Lat: 44.9778, Lng: -93.2650, Title: "a"},
		{Lat: 44.9779, Lng: -93.2651, Title: "b"},
	}}
	store := memory.New()
	n, err := beacon.DetectFromGraph(context.Background(), reader, store, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDetectFromGraph_SkipsExistingTaskCell(t *testing.T) {
	now := time.Now()
	cluster := []traits.LiveSignalLocation{
		{Lat: 44.9778, Lng: -93.2650, Title: "a"},
		{Lat: 44.9779, Lng: -93.2651, Title: "b"},
		{Lat: 44.9777, Lng: -93.2649, Title: "c"},
	}
	reader := fakeLiveSignals{signals: cluster}
	store := memory.New()

	n1, err := beacon.DetectFromGraph(context.Background(), reader, store, now)
	require.NoError(t, err)
	require.Equal(t, 1, n1)

	n2, err := beacon.DetectFromGraph(context.Background(), reader, store, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n2, "same cell must not produce a second task")
}

func TestDetectFromNewsScanner_RequiresTwoPerCell(t *testing.T) {
	store := memory.New()
	candidates := []beacon.BeaconCandidate{
		{Lat: 44.95, Lng: -93.10, Title: "one", SourceURL: "https://a"},
	}
	n, err := beacon.DetectFromNewsScanner(context.Background(), store, candidates, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	candidates = append(candidates, beacon.BeaconCandidate{Lat: 44.9501, Lng: -93.1001, Title: "two", SourceURL: "https://b"})
	n, err = beacon.DetectFromNewsScanner(context.Background(), store, candidates, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

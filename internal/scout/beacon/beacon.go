// Package beacon implements geohash-cell clustering of recent live signals
// into ScoutTask follow-ups. Runs at the end of Enrichment, or standalone
// outside a scope-run.
package beacon

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mmcloughlin/geohash"

	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	geohashPrecision = 5
	liveSignalWindow = 7 * 24 * time.Hour

	graphCellMinSignals   = 3
	driverBCellMinSignals = 2

	beaconRadiusKM = 10.0
)

// TaskStore is the narrow port beacon depends on: reading existing
// pending/running task geohashes for dedup, and writing new tasks.
// Implemented by internal/scout/store/arango and store/memory.
type TaskStore interface {
	ListScoutTasks(ctx context.Context, status string, limit int) ([]traits.ScoutTask, error)
	CreateScoutTask(ctx context.Context, task traits.ScoutTask) error
}

// LiveSignalSource reads recently active geo-tagged signals.
type LiveSignalSource interface {
	GetLiveSignalsWithLocation(ctx context.Context, since time.Time) ([]traits.LiveSignalLocation, error)
}

// BeaconCandidate is one article observation from an external news scanner.
// Producing the scan itself is out of this module's scope; it only
// consumes candidates a caller supplies.
type BeaconCandidate struct {
	Lat          float64
	Lng          float64
	Title        string
	LocationName string
	SourceURL    string
}

type cell struct {
	count        int
	latSum       float64
	lngSum       float64
	locationName map[string]int
}

func bucket(items []cellInput) map[string]*cell {
	cells := make(map[string]*cell)
	for _, it := range items {
		hash := geohash.EncodeWithPrecision(it.lat, it.lng, geohashPrecision)
		c, ok := cells[hash]
		if !ok {
			c = &cell{locationName: make(map[string]int)}
			cells[hash] = c
		}
		c.count++
		c.latSum += it.lat
		c.lngSum += it.lng
		if it.locationName != "" {
			c.locationName[it.locationName]++
		}
	}
	return cells
}

type cellInput struct {
	lat          float64
	lng          float64
	locationName string
}

func (c *cell) centroid() (lat, lng float64) {
	return c.latSum / float64(c.count), c.lngSum / float64(c.count)
}

// dominantLocationName returns the most frequent location_name in the cell,
// or a formatted lat/lng fallback — deterministic tie-break by name so two
// runs over the same input agree.
func (c *cell) dominantLocationName(lat, lng float64) string {
	best, bestCount := "", 0
	names := make([]string, 0, len(c.locationName))
	for n := range c.locationName {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if c.locationName[n] > bestCount {
			best, bestCount = n, c.locationName[n]
		}
	}
	if best == "" {
		return fmt.Sprintf("(%.4f, %.4f)", lat, lng)
	}
	return best
}

// existingGeohashes returns the geohash-5 cells already covered by a
// pending or running ScoutTask, so detection never double-creates a task
// for the same cell.
func existingGeohashes(ctx context.Context, store TaskStore) (map[string]bool, error) {
	seen := make(map[string]bool)
	for _, status := range []string{string(traits.ScoutTaskPending), string(traits.ScoutTaskRunning)} {
		tasks, err := store.ListScoutTasks(ctx, status, 0)
		if err != nil {
			return nil, fmt.Errorf("beacon: list %s tasks: %w", status, err)
		}
		for _, t := range tasks {
			seen[geohash.EncodeWithPrecision(t.CenterLat, t.CenterLng, geohashPrecision)] = true
		}
	}
	return seen, nil
}

// DetectFromGraph runs producer 1: recent live signals with a geo point,
// bucketed into geohash-5 cells, cells with >=3 signals and no existing
// task become a ScoutTask{Source: Beacon}.
func DetectFromGraph(ctx context.Context, reader LiveSignalSource, store TaskStore, now time.Time) (int, error) {
	signals, err := reader.GetLiveSignalsWithLocation(ctx, now.Add(-liveSignalWindow))
	if err != nil {
		return 0, fmt.Errorf("beacon: load live signals: %w", err)
	}

	inputs := make([]cellInput, 0, len(signals))
	for _, sig := range signals {
		name := ""
		if sig.LocationName != nil {
			name = *sig.LocationName
		}
		inputs = append(inputs, cellInput{lat: sig.Lat, lng: sig.Lng, locationName: name})
	}
	cells := bucket(inputs)

	existing, err := existingGeohashes(ctx, store)
	if err != nil {
		return 0, err
	}

	created := 0
	hashes := sortedKeys(cells)
	for _, hash := range hashes {
		c := cells[hash]
		if c.count < graphCellMinSignals || existing[hash] {
			continue
		}
		lat, lng := c.centroid()
		task := traits.ScoutTask{
			CenterLat: lat,
			CenterLng: lng,
			RadiusKM:  beaconRadiusKM,
			Context:   c.dominantLocationName(lat, lng),
			Priority:  math.Min(float64(c.count)/10.0, 1.0),
			Source:    traits.ScoutTaskSourceBeacon,
			Status:    traits.ScoutTaskPending,
			CreatedAt: now,
		}
		if err := store.CreateScoutTask(ctx, task); err != nil {
			return created, fmt.Errorf("beacon: create task: %w", err)
		}
		existing[hash] = true
		created++
	}
	return created, nil
}

// DetectFromNewsScanner runs producer 2: external news scanner candidates
// bucketed the same way, requiring >=2 candidates per cell since a single
// article isn't signal but two independent articles about the same area is.
func DetectFromNewsScanner(ctx context.Context, store TaskStore, candidates []BeaconCandidate, now time.Time) (int, error) {
	inputs := make([]cellInput, 0, len(candidates))
	for _, c := range candidates {
		inputs = append(inputs, cellInput{lat: c.Lat, lng: c.Lng, locationName: c.LocationName})
	}
	cells := bucket(inputs)

	existing, err := existingGeohashes(ctx, store)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, hash := range sortedKeys(cells) {
		c := cells[hash]
		if c.count < driverBCellMinSignals || existing[hash] {
			continue
		}
		lat, lng := c.centroid()
		task := traits.ScoutTask{
			CenterLat: lat,
			CenterLng: lng,
			RadiusKM:  beaconRadiusKM,
			Context:   c.dominantLocationName(lat, lng),
			Priority:  math.Min(float64(c.count)/10.0, 1.0),
			Source:    traits.ScoutTaskSourceDriverB,
			Status:    traits.ScoutTaskPending,
			CreatedAt: now,
		}
		if err := store.CreateScoutTask(ctx, task); err != nil {
			return created, fmt.Errorf("beacon: create task: %w", err)
		}
		existing[hash] = true
		created++
	}
	return created, nil
}

func sortedKeys(cells map[string]*cell) []string {
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

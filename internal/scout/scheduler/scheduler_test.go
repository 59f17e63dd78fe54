package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/domain"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestCadenceHoursForWeight(t *testing.T) {
	assert.Equal(t, 6, CadenceHoursForWeight(0.9))
	assert.Equal(t, 24, CadenceHoursForWeight(0.6))
	assert.Equal(t, 72, CadenceHoursForWeight(0.3))
	assert.Equal(t, 168, CadenceHoursForWeight(0.1))
}

func TestCadenceHoursWithBackoff_DormancyBoundary(t *testing.T) {
	// Returns MAX iff r >= dormancy_threshold(m).
	for r := 0; r < 10; r++ {
		got := CadenceHoursWithBackoff(0.5, r, domain.DiscoveryCurated)
		wantDormant := r >= DormancyThreshold(domain.DiscoveryCurated)
		if wantDormant {
			assert.Equal(t, math.MaxInt32, got, "r=%d", r)
		} else {
			assert.NotEqual(t, math.MaxInt32, got, "r=%d", r)
		}
	}
}

func TestDormancyThreshold_SocialGraphFollowIsStricter(t *testing.T) {
	assert.Equal(t, 3, DormancyThreshold(domain.DiscoverySocialGraphFollow))
	assert.Equal(t, 5, DormancyThreshold(domain.DiscoveryCurated))
	assert.Equal(t, 5, DormancyThreshold(domain.DiscoveryTensionSeed))
}

func TestShouldScrape_NeverScraped(t *testing.T) {
	s := domain.Source{CanonicalKey: "a", Weight: 0.9}
	due, reason := ShouldScrape(s, time.Now())
	require.True(t, due)
	assert.Equal(t, ReasonNeverScraped, reason)
}

func TestShouldScrape_DueByCadence(t *testing.T) {
	now := time.Now()
	last := now.Add(-7 * time.Hour)
	s := domain.Source{CanonicalKey: "a", Weight: 0.9, LastScraped: &last} // cadence 6h
	due, reason := ShouldScrape(s, now)
	require.True(t, due)
	assert.Equal(t, ReasonCadence, reason)
}

func TestShouldScrape_NotYetDue(t *testing.T) {
	now := time.Now()
	last := now.Add(-1 * time.Hour)
	s := domain.Source{CanonicalKey: "a", Weight: 0.9, LastScraped: &last}
	due, _ := ShouldScrape(s, now)
	assert.False(t, due)
}

func TestShouldScrape_DormantNeverDue(t *testing.T) {
	now := time.Now()
	last := now.Add(-1000 * time.Hour)
	s := domain.Source{
		CanonicalKey:         "a",
		Weight:               0.9,
		LastScraped:          &last,
		ConsecutiveEmptyRuns: 5,
	}
	due, _ := ShouldScrape(s, now)
	assert.False(t, due)
}

func TestSchedule_ExplorationReservoirIsDeterministic(t *testing.T) {
	now := time.Now()
	var sources []domain.Source
	for i := 0; i < 20; i++ {
		stale := now.Add(-time.Duration(5*24+20-i) * time.Hour)
		sources = append(sources, domain.Source{
			CanonicalKey: string(rune('a' + i)),
			Weight:       0.1, // below exploration threshold
			SourceRole:   domain.SourceRoleTension,
			LastScraped:  &stale,
		})
	}

	r1 := Schedule(sources, now)
	r2 := Schedule(sources, now)
	assert.Equal(t, r1.Exploration, r2.Exploration, "exploration selection must be deterministic")
	assert.NotEmpty(t, r1.Exploration)

	// Stalest sources come first.
	for i := 1; i < len(r1.Exploration); i++ {
		assert.LessOrEqual(t, r1.Exploration[i-1].CanonicalKey, r1.Exploration[i].CanonicalKey)
	}
}

func TestSchedule_RolePartition(t *testing.T) {
	now := time.Now()
	sources := []domain.Source{
		{CanonicalKey: "tension-src", SourceRole: domain.SourceRoleTension},
		{CanonicalKey: "response-src", SourceRole: domain.SourceRoleResponse},
		{CanonicalKey: "mixed-src", SourceRole: domain.SourceRoleMixed},
	}
	result := Schedule(sources, now)
	assert.Contains(t, result.TensionPhase, "tension-src")
	assert.Contains(t, result.TensionPhase, "mixed-src")
	assert.Contains(t, result.ResponsePhase, "response-src")
	assert.NotContains(t, result.ResponsePhase, "mixed-src")
}

func TestSchedule_MinimumOneExplorationSlot(t *testing.T) {
	now := time.Now()
	stale := now.Add(-6 * 24 * time.Hour)
	sources := []domain.Source{
		{CanonicalKey: "only-candidate", Weight: 0.1, LastScraped: &stale, SourceRole: domain.SourceRoleTension},
	}
	result := Schedule(sources, now)
	assert.Len(t, result.Exploration, 1)
}

func TestSchedule_QueryTierCapDemotesLowestWeightExcess(t *testing.T) {
	now := time.Now()
	var sources []domain.Source
	for i := 0; i < 10; i++ {
		sources = append(sources, domain.Source{
			CanonicalKey: string(rune('a' + i)),
			Weight:       float64(i) / 10.0, // never-scraped, so always due regardless of weight
			SourceType:   domain.SourceTypeTavilyQuery,
			SourceRole:   domain.SourceRoleResponse,
		})
	}

	result := Schedule(sources, now)

	allowed := 3 // floor(0.3 * 10)
	assert.Len(t, result.Scheduled, allowed)
	assert.Len(t, result.Skipped, len(sources)-allowed)

	for _, sched := range result.Scheduled {
		assert.GreaterOrEqual(t, sched.CanonicalKey, "h") // only the 3 highest-weight keys survive
	}
}

// Package scheduler decides, for a source pool and a point in time, which
// sources this run will scrape and in which phase.
package scheduler

import (
	"math"
	"sort"
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
)

const (
	explorationRatio              = 0.10
	explorationWeightThreshold    = 0.3
	explorationMinStaleDays       = 5

	// queryTierFraction bounds how much of a run's scheduled slots can be
	// paid search-engine queries (tavily_query/site_search), so a run with
	// many query-type sources in the pool doesn't spend its whole budget on
	// search calls at the expense of direct web/RSS/social fetches.
	queryTierFraction = 0.3
)

// ScheduleReason explains why a source was selected.
type ScheduleReason string

const (
	ReasonCadence        ScheduleReason = "cadence"
	ReasonNeverScraped    ScheduleReason = "never_scraped"
	ReasonExploration     ScheduleReason = "exploration"
)

// ScheduledSource is one source chosen for this run.
type ScheduledSource struct {
	CanonicalKey string
	Reason       ScheduleReason
}

// ScheduleResult is the scheduler's full output for one run.
type ScheduleResult struct {
	Scheduled     []ScheduledSource
	Exploration   []ScheduledSource
	Skipped       []string
	TensionPhase  []string
	ResponsePhase []string
}

// DormancyThreshold returns the consecutive-empty-runs count at which a
// source of this discovery method is considered dormant.
func DormancyThreshold(method domain.DiscoveryMethod) int {
	if method == domain.DiscoverySocialGraphFollow {
		return 3
	}
	return 5
}

// CadenceHoursForWeight maps a scheduling weight to a base cadence.
func CadenceHoursForWeight(weight float64) int {
	switch {
	case weight > 0.8:
		return 6
	case weight > 0.5:
		return 24
	case weight > 0.2:
		return 72
	default:
		return 168
	}
}

// backoffMultiplier maps consecutive empty runs (0..4) to a cadence
// multiplier.
func backoffMultiplier(consecutiveEmptyRuns int) int {
	switch {
	case consecutiveEmptyRuns <= 1:
		return 1
	case consecutiveEmptyRuns == 2:
		return 2
	case consecutiveEmptyRuns == 3:
		return 4
	default:
		return 8
	}
}

// CadenceHoursWithBackoff applies empty-run backoff on top of the base
// cadence for weight, returning math.MaxInt32 as the sentinel for
// "effectively infinite cadence" once a source crosses its dormancy
// threshold for method.
func CadenceHoursWithBackoff(weight float64, consecutiveEmptyRuns int, method domain.DiscoveryMethod) int {
	if consecutiveEmptyRuns >= DormancyThreshold(method) {
		return math.MaxInt32
	}
	return CadenceHoursForWeight(weight) * backoffMultiplier(consecutiveEmptyRuns)
}

// IsDormant reports whether a source should be treated as having infinite
// cadence right now.
func IsDormant(weight float64, consecutiveEmptyRuns int, method domain.DiscoveryMethod) bool {
	return consecutiveEmptyRuns >= DormancyThreshold(method)
}

func effectiveCadenceHours(s domain.Source) int {
	if s.CadenceHours != nil {
		return *s.CadenceHours
	}
	return CadenceHoursWithBackoff(s.Weight, s.ConsecutiveEmptyRuns, s.DiscoveryMethod)
}

// ShouldScrape reports whether a source is due for a scrape at now.
func ShouldScrape(s domain.Source, now time.Time) (due bool, reason ScheduleReason) {
	if s.LastScraped == nil {
		return true, ReasonNeverScraped
	}
	cadence := effectiveCadenceHours(s)
	if cadence == math.MaxInt32 {
		return false, ""
	}
	hoursSince := now.Sub(*s.LastScraped).Hours()
	if hoursSince >= float64(cadence) {
		return true, ReasonCadence
	}
	return false, ""
}

func isQueryType(t domain.SourceType) bool {
	return t == domain.SourceTypeTavilyQuery || t == domain.SourceTypeSiteSearch
}

// capQueryTierSources bounds the query-type share of due+exploration to
// queryTierFraction of the total, demoting the lowest-weight excess back to
// skipped. Deterministic: demotion order is weight ascending, canonical_key
// ascending.
func capQueryTierSources(sources []domain.Source, due, exploration []ScheduledSource, skipped []string) ([]ScheduledSource, []ScheduledSource, []string) {
	byKey := make(map[string]domain.Source, len(sources))
	for _, s := range sources {
		byKey[s.CanonicalKey] = s
	}

	total := len(due) + len(exploration)
	if total == 0 {
		return due, exploration, skipped
	}

	var queryKeys []string
	for _, sched := range due {
		if isQueryType(byKey[sched.CanonicalKey].SourceType) {
			queryKeys = append(queryKeys, sched.CanonicalKey)
		}
	}
	for _, sched := range exploration {
		if isQueryType(byKey[sched.CanonicalKey].SourceType) {
			queryKeys = append(queryKeys, sched.CanonicalKey)
		}
	}

	allowed := int(math.Floor(queryTierFraction * float64(total)))
	if len(queryKeys) <= allowed {
		return due, exploration, skipped
	}

	sort.Slice(queryKeys, func(i, j int) bool {
		wi, wj := byKey[queryKeys[i]].Weight, byKey[queryKeys[j]].Weight
		if wi != wj {
			return wi < wj
		}
		return queryKeys[i] < queryKeys[j]
	})
	demote := make(map[string]bool, len(queryKeys)-allowed)
	for _, key := range queryKeys[:len(queryKeys)-allowed] {
		demote[key] = true
	}

	var keptDue, keptExploration []ScheduledSource
	for _, sched := range due {
		if demote[sched.CanonicalKey] {
			skipped = append(skipped, sched.CanonicalKey)
			continue
		}
		keptDue = append(keptDue, sched)
	}
	for _, sched := range exploration {
		if demote[sched.CanonicalKey] {
			skipped = append(skipped, sched.CanonicalKey)
			continue
		}
		keptExploration = append(keptExploration, sched)
	}
	return keptDue, keptExploration, skipped
}

// isExplorationCandidate reports whether a not-due source qualifies for the
// exploration reservoir: low weight and stale, or never scraped.
func isExplorationCandidate(s domain.Source, now time.Time) bool {
	if s.Weight >= explorationWeightThreshold {
		return false
	}
	if s.LastScraped == nil {
		return true
	}
	staleDays := now.Sub(*s.LastScraped).Hours() / 24.0
	return staleDays >= explorationMinStaleDays
}

// staleness returns how many hours stale a source is, used only for
// deterministic exploration ordering (never-scraped sources sort as
// maximally stale).
func staleness(s domain.Source, now time.Time) float64 {
	if s.LastScraped == nil {
		return math.Inf(1)
	}
	return now.Sub(*s.LastScraped).Hours()
}

// Schedule partitions sources into due/exploration/skip, fills the
// exploration reservoir, and assigns phase roles. Sources must be supplied
// as a point-in-time snapshot taken at Schedule's entry, so that weight and
// last-scraped reads are consistent across the whole pass.
func Schedule(sources []domain.Source, now time.Time) ScheduleResult {
	var due []ScheduledSource
	var explorationCandidates []domain.Source
	var skipped []string

	for _, s := range sources {
		if ok, reason := ShouldScrape(s, now); ok {
			due = append(due, ScheduledSource{CanonicalKey: s.CanonicalKey, Reason: reason})
			continue
		}
		if isExplorationCandidate(s, now) {
			explorationCandidates = append(explorationCandidates, s)
			continue
		}
		skipped = append(skipped, s.CanonicalKey)
	}

	totalSlots := len(due) + len(explorationCandidates)
	explorationSlots := int(math.Ceil(explorationRatio * float64(totalSlots)))
	if explorationSlots < 1 {
		explorationSlots = 1
	}

	// Deterministic: stalest first, tie-broken by canonical_key.
	sort.Slice(explorationCandidates, func(i, j int) bool {
		si, sj := staleness(explorationCandidates[i], now), staleness(explorationCandidates[j], now)
		if si != sj {
			return si > sj
		}
		return explorationCandidates[i].CanonicalKey < explorationCandidates[j].CanonicalKey
	})

	var exploration []ScheduledSource
	for i, s := range explorationCandidates {
		if i >= explorationSlots {
			skipped = append(skipped, s.CanonicalKey)
			continue
		}
		exploration = append(exploration, ScheduledSource{CanonicalKey: s.CanonicalKey, Reason: ReasonExploration})
	}

	due, exploration, skipped = capQueryTierSources(sources, due, exploration, skipped)

	roleOf := make(map[string]domain.SourceRole, len(sources))
	for _, s := range sources {
		roleOf[s.CanonicalKey] = s.SourceRole
	}

	result := ScheduleResult{Scheduled: due, Exploration: exploration, Skipped: skipped}
	all := append(append([]ScheduledSource{}, due...), exploration...)
	for _, sched := range all {
		switch roleOf[sched.CanonicalKey] {
		case domain.SourceRoleResponse:
			result.ResponsePhase = append(result.ResponsePhase, sched.CanonicalKey)
		default: // Tension or Mixed both run in Phase A
			result.TensionPhase = append(result.TensionPhase, sched.CanonicalKey)
		}
	}
	return result
}

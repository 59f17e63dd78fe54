// Package budget holds the two pieces of process-wide mutable state the
// scout core is allowed: a cents-granularity spend gate and a cancellation
// flag. Both are safe for concurrent use since synthesis fans out over
// candidates/URLs.
package budget

import "sync/atomic"

// OperationCost names a billable LLM or search call. Handlers must call
// Tracker.TryConsume(cost) before dispatching the underlying call.
type OperationCost int64

const (
	CostExtractionLLM     OperationCost = 2 // signal extraction per URL
	CostVerificationLLM   OperationCost = 1 // tension-response / drawn-to verification
	CostBootstrapLLM      OperationCost = 5 // bootstrap seed-query generation
	CostEmbedding         OperationCost = 0 // embeddings are effectively free; named for completeness
	CostSearchQuery       OperationCost = 1 // a single search/site_search call
)

// Tracker gates spend for one run. A zero DailyBudgetCents means unlimited.
type Tracker struct {
	dailyBudgetCents int64
	spentCents       atomic.Int64
}

// NewTracker constructs a Tracker with the given daily budget in cents. 0
// means unlimited.
func NewTracker(dailyBudgetCents int64) *Tracker {
	return &Tracker{dailyBudgetCents: dailyBudgetCents}
}

// TryConsume attempts to spend cost cents against the remaining budget.
// Returns false (and spends nothing) if the budget would be exceeded.
// Unlimited trackers (dailyBudgetCents == 0) always succeed.
func (t *Tracker) TryConsume(cost OperationCost) bool {
	if t.dailyBudgetCents <= 0 {
		t.spentCents.Add(int64(cost))
		return true
	}
	for {
		current := t.spentCents.Load()
		next := current + int64(cost)
		if next > t.dailyBudgetCents {
			return false
		}
		if t.spentCents.CompareAndSwap(current, next) {
			return true
		}
	}
}

// SpentCents reports cumulative spend so far.
func (t *Tracker) SpentCents() int64 {
	return t.spentCents.Load()
}

// Exhausted reports whether the tracker has no room left for any further
// spend (used by callers that want to skip a whole sub-activity rather than
// probe TryConsume per-candidate).
func (t *Tracker) Exhausted() bool {
	if t.dailyBudgetCents <= 0 {
		return false
	}
	return t.spentCents.Load() >= t.dailyBudgetCents
}

// Cancellation is a process-wide atomic flag a run checks between phases and
// inside long inner loops.
type Cancellation struct {
	flag atomic.Bool
}

// Cancel requests that the current run stop emitting new events. In-flight
// I/O is not interrupted.
func (c *Cancellation) Cancel() {
	c.flag.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (c *Cancellation) Cancelled() bool {
	return c.flag.Load()
}

// Reset clears the flag. Used between runs when a Cancellation is reused
// across scopes (a fresh Cancellation per run is the common case; Reset
// exists for long-lived supervisors that keep one per region).
func (c *Cancellation) Reset() {
	c.flag.Store(false)
}

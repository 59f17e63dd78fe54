// Package scouterr is the scout pipeline's error vocabulary: a closed set
// of error kinds (Retryable bool wrapping a cause) covering transient
// infrastructure failures, extraction failures, budget exhaustion,
// cancellation, invariant violations, and quality flags. No pipeline code
// constructs these errors or calls Fatal, and the engine does not inspect
// Kind: it returns every handler error to the caller of Dispatch.
package scouterr

import "fmt"

// Kind classifies an Error.
type Kind string

const (
	// Transient is a retryable infrastructure failure: network timeout,
	// rate limit, temporary store unavailability.
	Transient Kind = "transient"
	// Extraction is an LLM extraction failure for one URL — logged and
	// the URL is skipped, the run continues.
	Extraction Kind = "extraction"
	// BudgetExhausted means the run's daily spend cap was hit; the
	// current sub-activity stops early but the run is not failed.
	BudgetExhausted Kind = "budget_exhausted"
	// Cancelled means the process-wide cancellation flag was observed;
	// the run winds down without emitting further events.
	Cancelled Kind = "cancelled"
	// Invariant is a data-model invariant violation, not retryable; it is
	// the only kind for which Fatal reports true.
	Invariant Kind = "invariant"
	// QualityFlag marks a signal that failed a quality check (e.g. the
	// source-diversity invariant) without aborting the handler.
	QualityFlag Kind = "quality_flag"
)

// Error is the scout pipeline's error type. Kind classifies the failure;
// Retryable marks whether the same operation may be reattempted.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error is an Invariant violation. The engine and
// Scout.Run do not call it.
func (e *Error) Fatal() bool {
	return e.Kind == Invariant
}

// NewTransient wraps err as a retryable transient failure.
func NewTransient(err error) *Error {
	return &Error{Kind: Transient, Retryable: true, Err: err}
}

// NewExtraction wraps err as a non-retryable extraction failure for one URL.
func NewExtraction(err error) *Error {
	return &Error{Kind: Extraction, Retryable: false, Err: err}
}

// NewBudgetExhausted builds a non-fatal budget-exhaustion stop.
func NewBudgetExhausted() *Error {
	return &Error{Kind: BudgetExhausted, Retryable: false}
}

// NewCancelled builds a non-fatal cancellation stop.
func NewCancelled() *Error {
	return &Error{Kind: Cancelled, Retryable: false}
}

// NewInvariant wraps err as a fatal invariant violation.
func NewInvariant(err error) *Error {
	return &Error{Kind: Invariant, Retryable: false, Err: err}
}

// NewQualityFlag wraps err as a non-fatal quality flag.
func NewQualityFlag(err error) *Error {
	return &Error{Kind: QualityFlag, Retryable: false, Err: err}
}

// Is lets errors.Is match by Kind alone, so callers can write
// errors.Is(err, &scouterr.Error{Kind: scouterr.Cancelled}) without a type
// assertion.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

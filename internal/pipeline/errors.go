package pipeline

import (
	"errors"
	"fmt"
)

// Structural errors abort a run before any fetch is attempted.
var (
	ErrInvalidRange    = errors.New("date range start must precede end")
	ErrInvalidSpan     = errors.New("max span must be positive")
	ErrNoTargets       = errors.New("no targets requested")
	ErrDuplicateDomain = errors.New("duplicate target domain")
)

// FetchExhaustedError reports that every attempt for one sub-interval
// failed. It is fatal for the owning target only; sibling sub-intervals
// and other targets are unaffected.
type FetchExhaustedError struct {
	Domain   string
	Interval DateRange
	Attempts int
	Last     error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts for %s %s: %v",
		e.Attempts, e.Domain, e.Interval, e.Last)
}

// Unwrap exposes the last underlying cause for errors.Is/As.
func (e *FetchExhaustedError) Unwrap() error { return e.Last }

// Package pipeline implements the resilient chunked-fetch pipeline:
// splitting a date range into month-bounded sub-intervals, fetching each
// sub-interval with retry and backoff, assembling the chunks into one
// hourly series per target, and collecting per-target outcomes into a
// batch result.
package pipeline

import (
	"fmt"
	"math"
	"time"
)

// Target is one logical request unit: an upstream domain code (country
// aggregate or bidding zone) plus the display label used for sheet names
// and result keys.
type Target struct {
	Domain string `json:"domain"`
	Label  string `json:"label"`
}

// DateRange is a UTC time window with Start strictly before End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalizes both instants to UTC and rejects inverted or
// empty ranges.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{Start: start, End: end}, nil
}

// DayRange builds the range covering whole days from startDay through
// endDay inclusive: 00:00 UTC on the first day up to 23:59 UTC on the
// last. Requesting a single day is valid.
func DayRange(startDay, endDay time.Time) (DateRange, error) {
	s := time.Date(startDay.Year(), startDay.Month(), startDay.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 0, 0, time.UTC)
	return NewDateRange(s, e)
}

// Duration returns the width of the range.
func (r DateRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r DateRange) String() string {
	const layout = "2006-01-02 15:04"
	return r.Start.UTC().Format(layout) + " .. " + r.End.UTC().Format(layout)
}

// MaxSpan bounds the width of one upstream request. When Months is
// positive the span is calendar-aware (a February chunk is shorter than a
// January chunk); otherwise Fixed is used as a flat duration.
type MaxSpan struct {
	Months int
	Fixed  time.Duration
}

// DefaultMaxSpan is one calendar month, the widest window the upstream
// API serves reliably.
func DefaultMaxSpan() MaxSpan {
	return MaxSpan{Months: 1}
}

func (s MaxSpan) validate() error {
	if s.Months < 0 {
		return ErrInvalidSpan
	}
	if s.Months == 0 && s.Fixed <= 0 {
		return ErrInvalidSpan
	}
	return nil
}

// next returns the earliest instant that no longer fits within the span
// starting at t.
func (s MaxSpan) next(t time.Time) time.Time {
	if s.Months > 0 {
		return addMonthsClamped(t, s.Months)
	}
	return t.Add(s.Fixed)
}

// addMonthsClamped advances t by whole calendar months, clamping the day
// to the target month's length (Jan 31 + 1 month = Feb 28, never Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	anchor := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	if last := daysIn(anchor.Year(), anchor.Month()); d > last {
		d = last
	}
	return time.Date(anchor.Year(), anchor.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Row is a single native-resolution reading: one timestamp with the
// reported value per generation category.
type Row struct {
	TS     time.Time
	Values map[string]float64
}

// Chunk holds the rows returned by one successful sub-interval fetch.
// Rows keep the upstream's native (possibly sub-hourly) resolution.
// Attempts counts the upstream calls the fetch took, including the
// successful one.
type Chunk struct {
	Interval DateRange
	Rows     []Row
	Attempts int
}

// Empty reports whether the fetch returned zero rows.
func (c Chunk) Empty() bool { return len(c.Rows) == 0 }

// RetryPolicy bounds the fetch loop. MaxAttempts counts every call
// including the first; after a failed attempt k < MaxAttempts the loop
// sleeps BackoffBase^k seconds before the next one.
type RetryPolicy struct {
	MaxAttempts int     `json:"max_attempts"`
	BackoffBase float64 `json:"backoff_base"`
}

// DefaultRetryPolicy matches the upstream operator guidance: five total
// attempts with a 1.8 backoff base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BackoffBase: 1.8}
}

// Backoff returns the sleep before the attempt following attempt k.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 1.8
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = d.BackoffBase
	}
	return p
}

// AssembledSeries is the merged, deduplicated, resampled table for one
// target. Times is strictly increasing with one contiguous row per
// bucket; Values is row-major with one column per category and NaN for
// buckets a category has no reading in.
type AssembledSeries struct {
	Categories []string
	Times      []time.Time
	Values     [][]float64
}

// Len returns the number of hourly rows.
func (s *AssembledSeries) Len() int { return len(s.Times) }

// Empty reports whether the series has no rows.
func (s *AssembledSeries) Empty() bool { return s == nil || len(s.Times) == 0 }

// Value returns the cell at row i, category column j.
func (s *AssembledSeries) Value(i, j int) float64 { return s.Values[i][j] }

// Column returns the index of the named category, or -1.
func (s *AssembledSeries) Column(category string) int {
	for j, c := range s.Categories {
		if c == category {
			return j
		}
	}
	return -1
}

// BatchResult maps every requested target label to exactly one outcome:
// an assembled series or a failure message. Order preserves the caller's
// target order so downstream rendering is deterministic.
type BatchResult struct {
	Series   map[string]*AssembledSeries `json:"-"`
	Failures map[string]string           `json:"failures"`
	Order    []string                    `json:"order"`
}

// SucceededLabels returns the labels with an assembled series, in the
// caller's target order.
func (r *BatchResult) SucceededLabels() []string {
	labels := make([]string, 0, len(r.Series))
	for _, label := range r.Order {
		if _, ok := r.Series[label]; ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// FailedLabels returns the labels that ended in a failure entry, in the
// caller's target order.
func (r *BatchResult) FailedLabels() []string {
	labels := make([]string, 0, len(r.Failures))
	for _, label := range r.Order {
		if _, ok := r.Failures[label]; ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// Progress phases reported through the orchestrator's side-channel.
const (
	PhaseStarted   = "started"
	PhaseSucceeded = "succeeded"
	PhaseFailed    = "failed"
)

// Progress is a point-in-time snapshot of batch execution: how many
// targets are settled out of the total, and what just happened to Label.
type Progress struct {
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
	Phase   string `json:"phase"`
	Message string `json:"message,omitempty"`
}

// Percent returns completion as 0..100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total) * 100
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d %s %s", p.Done, p.Total, p.Label, p.Phase)
}

// ProgressFunc receives progress snapshots. Implementations must not
// block; the orchestrator calls them inline.
type ProgressFunc func(Progress)

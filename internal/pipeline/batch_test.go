package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// progressRecorder collects snapshots safely across goroutines.
type progressRecorder struct {
	mu     sync.Mutex
	events []pipeline.Progress
}

func (p *progressRecorder) record(ev pipeline.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressRecorder) snapshot() []pipeline.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pipeline.Progress, len(p.events))
	copy(out, p.events)
	return out
}

func testBatchConfig() pipeline.BatchConfig {
	return pipeline.BatchConfig{
		Retry: pipeline.RetryPolicy{MaxAttempts: 2, BackoffBase: 0.001},
	}
}

func TestBatchRunIsolatesTargetFailures(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-02-15 23:59")
	boundary := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		if domain == "B" && start.Equal(boundary) {
			return nil, errUpstream
		}
		return hourlyRows(start, 2, "Solar", 50), nil
	})

	targets := []pipeline.Target{
		{Domain: "A", Label: "Alpha"},
		{Domain: "B", Label: "Bravo"},
		{Domain: "C", Label: "Charlie"},
	}

	batch := pipeline.NewBatch(fetch, nil, testBatchConfig(), quietLogger())
	result, err := batch.Run(context.Background(), targets, r, nil)
	require.NoError(t, err, "per-target failures must not escape Run")

	assert.Equal(t, []string{"Alpha", "Charlie"}, result.SucceededLabels())
	assert.Equal(t, []string{"Bravo"}, result.FailedLabels())

	_, partial := result.Series["Bravo"]
	assert.False(t, partial, "failed target must not leave partial data")
	assert.Contains(t, result.Failures["Bravo"], "fetch exhausted")
	assert.Contains(t, result.Failures["Bravo"], "2 attempts")

	for _, label := range []string{"Alpha", "Charlie"} {
		series := result.Series[label]
		require.NotNil(t, series)
		assert.False(t, series.Empty())
	}
}

func TestBatchRunStructuralErrors(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		return nil, nil
	})
	batch := pipeline.NewBatch(fetch, nil, testBatchConfig(), quietLogger())

	t.Run("empty target set", func(t *testing.T) {
		_, err := batch.Run(context.Background(), nil, r, nil)
		assert.ErrorIs(t, err, pipeline.ErrNoTargets)
	})

	t.Run("duplicate domains", func(t *testing.T) {
		targets := []pipeline.Target{
			{Domain: "X", Label: "One"},
			{Domain: "X", Label: "Two"},
		}
		_, err := batch.Run(context.Background(), targets, r, nil)
		assert.ErrorIs(t, err, pipeline.ErrDuplicateDomain)
		assert.Contains(t, err.Error(), "X")
	})

	t.Run("inverted range", func(t *testing.T) {
		targets := []pipeline.Target{{Domain: "X", Label: "One"}}
		_, err := batch.Run(context.Background(), targets, pipeline.DateRange{Start: r.End, End: r.Start}, nil)
		assert.ErrorIs(t, err, pipeline.ErrInvalidRange)
	})
}

func TestBatchRunReportsProgress(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	targets := []pipeline.Target{
		{Domain: "A", Label: "Alpha"},
		{Domain: "B", Label: "Bravo"},
	}

	rec := &progressRecorder{}
	batch := pipeline.NewBatch(fetch, nil, testBatchConfig(), quietLogger())
	_, err := batch.Run(context.Background(), targets, r, rec.record)
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 4, "one started and one settled event per target")

	assert.Equal(t, pipeline.PhaseStarted, events[0].Phase)
	assert.Equal(t, "Alpha", events[0].Label)
	assert.Equal(t, 0, events[0].Done)

	last := events[len(events)-1]
	assert.Equal(t, pipeline.PhaseSucceeded, last.Phase)
	assert.Equal(t, 2, last.Done)
	assert.Equal(t, 2, last.Total)
	assert.InDelta(t, 100.0, last.Percent(), 1e-9)
}

func TestBatchRunEmptySeriesIsSuccess(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		return nil, nil
	})

	rec := &progressRecorder{}
	batch := pipeline.NewBatch(fetch, nil, testBatchConfig(), quietLogger())
	result, err := batch.Run(context.Background(), []pipeline.Target{{Domain: "A", Label: "Alpha"}}, r, rec.record)
	require.NoError(t, err)

	series, ok := result.Series["Alpha"]
	require.True(t, ok, "empty result is a success, not a failure")
	assert.True(t, series.Empty())
	assert.Empty(t, result.Failures)

	events := rec.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, pipeline.PhaseSucceeded, last.Phase)
	assert.Contains(t, last.Message, "no rows")
}

type rejectingResolver struct {
	unknown string
}

func (r rejectingResolver) ResolveDomain(code string) (string, error) {
	if code == r.unknown {
		return "", errors.New("unknown target domain " + code)
	}
	return code, nil
}

func TestBatchRunResolverRejectsBeforeFetch(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")

	var mu sync.Mutex
	fetched := map[string]int{}
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		mu.Lock()
		fetched[domain]++
		mu.Unlock()
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	targets := []pipeline.Target{
		{Domain: "GOOD", Label: "Good"},
		{Domain: "BAD", Label: "Bad"},
	}

	batch := pipeline.NewBatch(fetch, rejectingResolver{unknown: "BAD"}, testBatchConfig(), quietLogger())
	result, err := batch.Run(context.Background(), targets, r, nil)
	require.NoError(t, err)

	assert.Contains(t, result.Failures["Bad"], "unknown target domain")
	assert.Zero(t, fetched["BAD"], "rejected targets are never fetched")
	assert.Equal(t, 1, fetched["GOOD"])
}

// mappingResolver translates catalog codes to upstream identifiers.
type mappingResolver map[string]string

func (m mappingResolver) ResolveDomain(code string) (string, error) {
	eic, ok := m[code]
	if !ok {
		return "", errors.New("unknown target domain " + code)
	}
	return eic, nil
}

func TestBatchRunFetchesResolvedDomains(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")

	var mu sync.Mutex
	var seen []string
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		mu.Lock()
		seen = append(seen, domain)
		mu.Unlock()
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	resolver := mappingResolver{
		"FR":   "10YFR-RTE------C",
		"DK_2": "10YDK-2--------M",
	}
	targets := []pipeline.Target{
		{Domain: "FR", Label: "France (Total)"},
		{Domain: "DK_2", Label: "DK2"},
	}

	batch := pipeline.NewBatch(fetch, resolver, testBatchConfig(), quietLogger())
	result, err := batch.Run(context.Background(), targets, r, nil)
	require.NoError(t, err)
	require.Len(t, result.Series, 2)

	assert.Equal(t, []string{"10YFR-RTE------C", "10YDK-2--------M"}, seen,
		"the upstream sees resolved identifiers, never catalog codes")
}

// countingObserver tallies fetch instrumentation events.
type countingObserver struct {
	mu        sync.Mutex
	attempts  int
	exhausted int
}

func (o *countingObserver) RecordFetchAttempts(ctx context.Context, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts += attempts
}

func (o *countingObserver) RecordFetchExhausted(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exhausted++
}

func TestBatchRunReportsFetchInstrumentation(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		if domain == "FAIL" {
			return nil, errUpstream
		}
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	targets := []pipeline.Target{
		{Domain: "A", Label: "Alpha"},
		{Domain: "FAIL", Label: "Bravo"},
	}

	obs := &countingObserver{}
	cfg := testBatchConfig()
	cfg.Observer = obs
	batch := pipeline.NewBatch(fetch, nil, cfg, quietLogger())
	_, err := batch.Run(context.Background(), targets, r, nil)
	require.NoError(t, err)

	// One attempt for Alpha, the full budget of two for Bravo.
	assert.Equal(t, 3, obs.attempts)
	assert.Equal(t, 1, obs.exhausted)
}

func TestBatchRunCancellationKeepsSettledEntries(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	targets := []pipeline.Target{
		{Domain: "A", Label: "Alpha"},
		{Domain: "B", Label: "Bravo"},
		{Domain: "C", Label: "Charlie"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	progress := func(p pipeline.Progress) {
		if p.Phase == pipeline.PhaseSucceeded && p.Label == "Alpha" {
			cancel()
		}
	}

	batch := pipeline.NewBatch(fetch, nil, testBatchConfig(), quietLogger())
	result, err := batch.Run(ctx, targets, r, progress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result, "partial result survives cancellation")
	assert.Contains(t, result.Series, "Alpha")
	assert.NotContains(t, result.Series, "Charlie")
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, result.Order)
}

func TestBatchRunParallelTargets(t *testing.T) {
	r := mustRange(t, "2025-01-01 00:00", "2025-01-10 00:00")
	fetch := pipeline.FetchFunc(func(ctx context.Context, domain string, start, end time.Time) ([]pipeline.Row, error) {
		if strings.HasPrefix(domain, "FAIL") {
			return nil, errUpstream
		}
		return hourlyRows(start, 1, "Solar", 10), nil
	})

	targets := []pipeline.Target{
		{Domain: "A", Label: "Alpha"},
		{Domain: "FAIL-B", Label: "Bravo"},
		{Domain: "C", Label: "Charlie"},
		{Domain: "D", Label: "Delta"},
	}

	cfg := testBatchConfig()
	cfg.Parallel = 4
	batch := pipeline.NewBatch(fetch, nil, cfg, quietLogger())
	result, err := batch.Run(context.Background(), targets, r, nil)
	require.NoError(t, err)

	assert.Len(t, result.Series, 3)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, []string{"Alpha", "Charlie", "Delta"}, result.SucceededLabels(),
		"success order follows the request, not completion")
}

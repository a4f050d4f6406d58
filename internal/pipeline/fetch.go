package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Fetcher is the upstream dependency: one call retrieves the raw rows for
// one domain over one sub-interval. The pipeline contracts only with this
// signature; network, auth and rate limiting live behind it.
type Fetcher interface {
	FetchRaw(ctx context.Context, domain string, start, end time.Time) ([]Row, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context, domain string, start, end time.Time) ([]Row, error)

// FetchRaw calls f.
func (f FetchFunc) FetchRaw(ctx context.Context, domain string, start, end time.Time) ([]Row, error) {
	return f(ctx, domain, start, end)
}

// FetchChunk fetches one sub-interval with retry. Each failed attempt k
// sleeps policy.Backoff(k) before the next; the sleep aborts early on
// context cancellation. Zero rows is a success. After policy.MaxAttempts
// failures the last cause is wrapped in a *FetchExhaustedError.
func FetchChunk(ctx context.Context, f Fetcher, domain string, sub DateRange, policy RetryPolicy, logger *slog.Logger) (Chunk, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy = policy.withDefaults()

	var last error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		rows, err := f.FetchRaw(ctx, domain, sub.Start, sub.End)
		if err == nil {
			if attempt > 1 {
				logger.InfoContext(ctx, "fetch recovered",
					slog.String("domain", domain),
					slog.String("interval", sub.String()),
					slog.Int("attempt", attempt))
			}
			return Chunk{Interval: sub, Rows: rows, Attempts: attempt}, nil
		}
		last = err

		// A cancelled context is not a retryable condition.
		if ctx.Err() != nil {
			return Chunk{}, ctx.Err()
		}

		logger.WarnContext(ctx, "fetch attempt failed",
			slog.String("domain", domain),
			slog.String("interval", sub.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.String("error", err.Error()))

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleepContext(ctx, policy.Backoff(attempt)); err != nil {
			return Chunk{}, err
		}
	}

	return Chunk{}, &FetchExhaustedError{
		Domain:   domain,
		Interval: sub,
		Attempts: policy.MaxAttempts,
		Last:     last,
	}
}

// sleepContext blocks for d or until ctx is cancelled, whichever comes
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DomainResolver maps a target's catalog code to the identifier the
// upstream expects, rejecting unknown codes before any fetch. A nil
// resolver passes codes through and unknown domains surface as upstream
// errors instead.
type DomainResolver interface {
	ResolveDomain(code string) (string, error)
}

// FetchObserver receives fetch instrumentation events. Implementations
// must be safe for concurrent use when targets run in parallel.
type FetchObserver interface {
	RecordFetchAttempts(ctx context.Context, attempts int)
	RecordFetchExhausted(ctx context.Context)
}

// BatchConfig controls how a run decomposes and fetches its targets.
// Observer is optional.
type BatchConfig struct {
	Retry    RetryPolicy
	Span     MaxSpan
	Step     time.Duration
	Parallel int
	Observer FetchObserver
}

func (c BatchConfig) withDefaults() BatchConfig {
	c.Retry = c.Retry.withDefaults()
	if c.Span.Months == 0 && c.Span.Fixed == 0 {
		c.Span = DefaultMaxSpan()
	}
	if c.Step <= 0 {
		c.Step = time.Hour
	}
	if c.Parallel <= 0 {
		c.Parallel = 1
	}
	return c
}

// Batch drives the split → fetch → assemble pipeline across a set of
// targets and collects every outcome into a BatchResult.
type Batch struct {
	fetcher  Fetcher
	resolver DomainResolver
	cfg      BatchConfig
	logger   *slog.Logger
}

// NewBatch creates a batch runner. fetcher is required; resolver and
// logger may be nil.
func NewBatch(fetcher Fetcher, resolver DomainResolver, cfg BatchConfig, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{
		fetcher:  fetcher,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "pipeline.batch")),
	}
}

// Run processes every target over r. Per-target failures (exhausted
// fetches, unknown domains) become entries in the result's failure map
// and never abort sibling targets; only structural problems - an empty
// target set, duplicate domains, an inverted range - return an error
// before any fetch. Targets run in order, at most cfg.Parallel at a time,
// and each target's sub-intervals are fetched strictly in chronological
// order so last-write-wins dedup is well defined. On context cancellation
// the remaining work is abandoned and the partial result is returned
// together with the context error.
func (b *Batch) Run(ctx context.Context, targets []Target, r DateRange, progress ProgressFunc) (*BatchResult, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.Domain]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, t.Domain)
		}
		seen[t.Domain] = struct{}{}
	}
	subs, err := Split(r, b.cfg.Span)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Series:   make(map[string]*AssembledSeries, len(targets)),
		Failures: make(map[string]string),
		Order:    make([]string, 0, len(targets)),
	}
	for _, t := range targets {
		result.Order = append(result.Order, t.Label)
	}

	b.logger.InfoContext(ctx, "batch started",
		slog.Int("targets", len(targets)),
		slog.Int("sub_intervals", len(subs)),
		slog.String("range", r.String()))

	var (
		mu   sync.Mutex
		done int
	)
	total := len(targets)
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Parallel)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			mu.Lock()
			d := done
			mu.Unlock()
			report(Progress{Done: d, Total: total, Label: t.Label, Phase: PhaseStarted})

			series, err := b.runTarget(gctx, t, subs)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				mu.Lock()
				result.Failures[t.Label] = err.Error()
				done++
				d = done
				mu.Unlock()
				b.logger.WarnContext(gctx, "target failed",
					slog.String("label", t.Label),
					slog.String("domain", t.Domain),
					slog.String("error", err.Error()))
				report(Progress{Done: d, Total: total, Label: t.Label, Phase: PhaseFailed, Message: err.Error()})
				return nil
			}

			msg := ""
			if series.Empty() {
				msg = "no rows returned for the requested range"
			}
			mu.Lock()
			result.Series[t.Label] = series
			done++
			d = done
			mu.Unlock()
			b.logger.InfoContext(gctx, "target assembled",
				slog.String("label", t.Label),
				slog.Int("rows", series.Len()),
				slog.Int("categories", len(series.Categories)))
			report(Progress{Done: d, Total: total, Label: t.Label, Phase: PhaseSucceeded, Message: msg})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		mu.Lock()
		settled := done
		mu.Unlock()
		b.logger.WarnContext(ctx, "batch abandoned",
			slog.Int("settled", settled),
			slog.Int("targets", total),
			slog.String("error", err.Error()))
		return result, err
	}

	b.logger.InfoContext(ctx, "batch complete",
		slog.Int("succeeded", len(result.Series)),
		slog.Int("failed", len(result.Failures)))
	return result, nil
}

// runTarget fetches and assembles one target. The resolver maps the
// target's code to the domain identifier the upstream expects; every
// fetch uses the resolved form. Any sub-interval failure discards the
// chunks fetched so far: a target is all-or-nothing.
func (b *Batch) runTarget(ctx context.Context, t Target, subs []DateRange) (*AssembledSeries, error) {
	domain := t.Domain
	if b.resolver != nil {
		resolved, err := b.resolver.ResolveDomain(t.Domain)
		if err != nil {
			return nil, err
		}
		domain = resolved
	}
	chunks := make([]Chunk, 0, len(subs))
	for _, sub := range subs {
		chunk, err := FetchChunk(ctx, b.fetcher, domain, sub, b.cfg.Retry, b.logger)
		if err != nil {
			var exhausted *FetchExhaustedError
			if b.cfg.Observer != nil && errors.As(err, &exhausted) {
				b.cfg.Observer.RecordFetchAttempts(ctx, exhausted.Attempts)
				b.cfg.Observer.RecordFetchExhausted(ctx)
			}
			return nil, err
		}
		if b.cfg.Observer != nil {
			b.cfg.Observer.RecordFetchAttempts(ctx, chunk.Attempts)
		}
		chunks = append(chunks, chunk)
	}
	return Assemble(chunks, b.cfg.Step), nil
}

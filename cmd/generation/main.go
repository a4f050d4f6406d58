// Command generation runs a batch fetch of ENTSO-E actual generation
// data from the command line and writes the result to an xlsx workbook.
//
// Modes:
//
//	daily   - fetch yesterday only (cron-friendly)
//	initial - fetch the full -from/-to range
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rohanswami293875/Entsoe-Generation/internal/config"
	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
	"github.com/rohanswami293875/Entsoe-Generation/internal/exporter"
	"github.com/rohanswami293875/Entsoe-Generation/internal/infrastructure"
	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

const dayFormat = "2006-01-02"

func main() {
	var (
		country    = flag.String("country", "", "catalog country name, e.g. \"France\" or \"Denmark\"")
		from       = flag.String("from", "", "start day (YYYY-MM-DD), required in initial mode")
		to         = flag.String("to", "", "end day (YYYY-MM-DD), required in initial mode")
		out        = flag.String("out", "", "export directory (default from config)")
		mode       = flag.String("mode", "initial", "daily (yesterday only) or initial (full range)")
		configPath = flag.String("config", "", "path to YAML config file (optional)")
	)
	flag.Parse()

	if err := run(*country, *from, *to, *out, *mode, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(country, from, to, out, mode, configPath string) error {
	if country == "" {
		return fmt.Errorf("-country is required")
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if out != "" {
		cfg.Export.Dir = out
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	dateRange, err := resolveRange(mode, from, to)
	if err != nil {
		return err
	}

	targets, err := entsoe.ResolveTargets(country, nil, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := entsoe.NewClient(entsoe.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}, logger)

	batch := pipeline.NewBatch(client, entsoe.Resolver{}, pipeline.BatchConfig{
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxRetries,
			BackoffBase: cfg.Pipeline.BackoffBase,
		},
		Span:     pipeline.MaxSpan{Months: cfg.Pipeline.MaxSpanMonths},
		Step:     cfg.Pipeline.ResampleStep,
		Parallel: cfg.Pipeline.Parallelism,
	}, logger)

	fmt.Printf("Fetching %s generation data %s, %d target(s)\n",
		country, dateRange, len(targets))

	progress := func(p pipeline.Progress) {
		switch p.Phase {
		case pipeline.PhaseSucceeded:
			fmt.Printf("[%d/%d] %s: ok\n", p.Done, p.Total, p.Label)
		case pipeline.PhaseFailed:
			fmt.Printf("[%d/%d] %s: FAILED (%s)\n", p.Done, p.Total, p.Label, p.Message)
		}
	}

	result, err := batch.Run(ctx, targets, dateRange, progress)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	for label, reason := range result.Failures {
		logger.Warn("target failed", slog.String("label", label), slog.String("reason", reason))
	}
	if len(result.Series) == 0 {
		return fmt.Errorf("no target succeeded")
	}

	meta := exporter.RangeMetadata(country, targets, dateRange, time.Now().UTC())
	workbook, err := exporter.WriteWorkbook(result, meta)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}

	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(cfg.Export.Dir, exporter.Filename(country, dateRange))
	if err := exporter.Save(workbook, path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	fmt.Printf("Wrote %s (%d succeeded, %d failed)\n",
		path, len(result.Series), len(result.Failures))
	return nil
}

// resolveRange turns mode + flags into a fetch range. Daily mode
// ignores -from/-to and targets yesterday in UTC.
func resolveRange(mode, from, to string) (pipeline.DateRange, error) {
	switch mode {
	case "daily":
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		return pipeline.DayRange(yesterday, yesterday)
	case "initial":
		if from == "" || to == "" {
			return pipeline.DateRange{}, fmt.Errorf("-from and -to are required in initial mode")
		}
		start, err := time.Parse(dayFormat, from)
		if err != nil {
			return pipeline.DateRange{}, fmt.Errorf("invalid -from: %w", err)
		}
		end, err := time.Parse(dayFormat, to)
		if err != nil {
			return pipeline.DateRange{}, fmt.Errorf("invalid -to: %w", err)
		}
		return pipeline.DayRange(start, end)
	default:
		return pipeline.DateRange{}, fmt.Errorf("unknown mode %q (want daily or initial)", mode)
	}
}

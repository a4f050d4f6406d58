package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "entsoe-generation"
	ServiceVersion = "1.0.0"
	MeterName      = "entsoe-generation"
)

// OTelConfig holds OpenTelemetry configuration.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the initialized OpenTelemetry providers.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns the default OpenTelemetry configuration.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  false,
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes tracing and metrics according to cfg.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		if err := initializeTracing(cfg, res, providers); err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := initializeMetrics(cfg, res, providers); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))
	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}
	return nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PipelineMetrics carries the batch pipeline instruments.
type PipelineMetrics struct {
	FetchAttempts  metric.Int64Counter
	FetchFailures  metric.Int64Counter
	BatchDuration  metric.Float64Histogram
	TargetsTotal   metric.Int64Counter
	ActiveJobs     metric.Int64UpDownCounter
	WorkbooksTotal metric.Int64Counter
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	fetchAttempts, err := meter.Int64Counter(
		"pipeline_fetch_attempts_total",
		metric.WithDescription("Total upstream fetch attempts"),
	)
	if err != nil {
		return nil, err
	}
	fetchFailures, err := meter.Int64Counter(
		"pipeline_fetch_failures_total",
		metric.WithDescription("Total exhausted sub-interval fetches"),
	)
	if err != nil {
		return nil, err
	}
	batchDuration, err := meter.Float64Histogram(
		"pipeline_batch_duration_seconds",
		metric.WithDescription("Batch run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	targetsTotal, err := meter.Int64Counter(
		"pipeline_targets_total",
		metric.WithDescription("Targets processed, by outcome"),
	)
	if err != nil {
		return nil, err
	}
	activeJobs, err := meter.Int64UpDownCounter(
		"pipeline_active_jobs",
		metric.WithDescription("Generation jobs currently running"),
	)
	if err != nil {
		return nil, err
	}
	workbooksTotal, err := meter.Int64Counter(
		"pipeline_workbooks_total",
		metric.WithDescription("Workbooks written"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		FetchAttempts:  fetchAttempts,
		FetchFailures:  fetchFailures,
		BatchDuration:  batchDuration,
		TargetsTotal:   targetsTotal,
		ActiveJobs:     activeJobs,
		WorkbooksTotal: workbooksTotal,
	}, nil
}

// RecordFetchAttempts adds the upstream calls one sub-interval fetch
// took.
func (m *PipelineMetrics) RecordFetchAttempts(ctx context.Context, attempts int) {
	if m == nil {
		return
	}
	m.FetchAttempts.Add(ctx, int64(attempts))
}

// RecordFetchExhausted counts one sub-interval fetch that ran out of
// attempts.
func (m *PipelineMetrics) RecordFetchExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.FetchFailures.Add(ctx, 1)
}

// RecordBatch records one finished batch run.
func (m *PipelineMetrics) RecordBatch(ctx context.Context, duration time.Duration, succeeded, failed int) {
	if m == nil {
		return
	}
	m.BatchDuration.Record(ctx, duration.Seconds())
	m.TargetsTotal.Add(ctx, int64(succeeded), metric.WithAttributes(attribute.String("outcome", "succeeded")))
	m.TargetsTotal.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("outcome", "failed")))
}

// JobStarted marks one job as running.
func (m *PipelineMetrics) JobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, 1)
}

// JobFinished marks one job as no longer running.
func (m *PipelineMetrics) JobFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveJobs.Add(ctx, -1)
}

// Package services holds the application services behind the HTTP
// transport: generation job lifecycle and health reporting.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rohanswami293875/Entsoe-Generation/internal/config"
	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
	"github.com/rohanswami293875/Entsoe-Generation/internal/exporter"
	"github.com/rohanswami293875/Entsoe-Generation/internal/infrastructure"
	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// Job states.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// ErrJobNotFound indicates an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// WebSocketHub receives job progress broadcasts.
type WebSocketHub interface {
	Broadcast(messageType string, data any)
}

// JobRequest is a generation job submission.
type JobRequest struct {
	Country      string   `json:"country" validate:"required"`
	Zones        []string `json:"zones"`
	IncludeTotal bool     `json:"include_total"`
	From         string   `json:"from" validate:"required,datetime=2006-01-02"`
	To           string   `json:"to" validate:"required,datetime=2006-01-02"`
}

// JobSnapshot is a point-in-time view of one job.
type JobSnapshot struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Country     string            `json:"country"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Done        int               `json:"done"`
	Total       int               `json:"total"`
	Succeeded   []string          `json:"succeeded,omitempty"`
	Failures    map[string]string `json:"failures,omitempty"`
	File        string            `json:"file,omitempty"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

type job struct {
	mu       sync.Mutex
	snapshot JobSnapshot
	cancel   context.CancelFunc
}

func (j *job) update(fn func(*JobSnapshot)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.snapshot)
}

func (j *job) view() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := j.snapshot
	snap.Succeeded = append([]string(nil), j.snapshot.Succeeded...)
	if j.snapshot.Failures != nil {
		snap.Failures = make(map[string]string, len(j.snapshot.Failures))
		for k, v := range j.snapshot.Failures {
			snap.Failures[k] = v
		}
	}
	return snap
}

// GenerationService runs generation jobs through the batch pipeline and
// tracks their lifecycle for the HTTP front-end.
type GenerationService struct {
	fetcher pipeline.Fetcher
	cfg     *config.Config
	hub     WebSocketHub
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*job

	validate *validator.Validate
	wg       sync.WaitGroup
}

// NewGenerationService creates the service. hub and metrics may be nil.
func NewGenerationService(fetcher pipeline.Fetcher, cfg *config.Config, hub WebSocketHub, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		fetcher:  fetcher,
		cfg:      cfg,
		hub:      hub,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "generation_service")),
		jobs:     make(map[string]*job),
		validate: validator.New(),
	}
}

// Submit validates and starts a generation job, returning its ID. The
// job runs asynchronously; progress is observable through Get and the
// WebSocket hub.
func (s *GenerationService) Submit(ctx context.Context, req JobRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("validate request: %w", err)
	}

	targets, err := entsoe.ResolveTargets(req.Country, req.Zones, req.IncludeTotal)
	if err != nil {
		return "", err
	}

	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)
	dateRange, err := pipeline.DayRange(from, to)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.JobTimeout)
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		jobCtx = infrastructure.WithTraceID(jobCtx, traceID)
	}

	j := &job{
		snapshot: JobSnapshot{
			ID:          jobID,
			Status:      JobPending,
			Country:     req.Country,
			From:        req.From,
			To:          req.To,
			Total:       len(targets),
			SubmittedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.jobs[jobID] = j
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", jobID),
		slog.String("country", req.Country),
		slog.Int("targets", len(targets)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.runJob(jobCtx, j, req.Country, targets, dateRange)
	}()

	return jobID, nil
}

func (s *GenerationService) runJob(ctx context.Context, j *job, country string, targets []pipeline.Target, r pipeline.DateRange) {
	jobID := j.view().ID
	start := time.Now()

	s.metrics.JobStarted(ctx)
	defer s.metrics.JobFinished(ctx)

	j.update(func(snap *JobSnapshot) { snap.Status = JobRunning })

	progress := func(p pipeline.Progress) {
		j.update(func(snap *JobSnapshot) {
			snap.Done = p.Done
		})
		s.broadcast(websocketProgress(jobID, p))
	}

	batch := pipeline.NewBatch(s.fetcher, entsoe.Resolver{}, pipeline.BatchConfig{
		Retry: pipeline.RetryPolicy{
			MaxAttempts: s.cfg.Pipeline.MaxRetries,
			BackoffBase: s.cfg.Pipeline.BackoffBase,
		},
		Span:     pipeline.MaxSpan{Months: s.cfg.Pipeline.MaxSpanMonths},
		Step:     s.cfg.Pipeline.ResampleStep,
		Parallel: s.cfg.Pipeline.Parallelism,
		Observer: s.metrics,
	}, s.logger)

	result, err := batch.Run(ctx, targets, r, progress)
	s.metrics.RecordBatch(ctx, time.Since(start), countSeries(result), countFailures(result))

	now := time.Now().UTC()
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		s.finishJob(ctx, j, result, JobCancelled, "", err.Error(), now)
		return
	case err != nil:
		s.finishJob(ctx, j, result, JobFailed, "", err.Error(), now)
		return
	}

	file := ""
	if countSeries(result) > 0 {
		path, exportErr := s.writeWorkbook(country, targets, r, result)
		if exportErr != nil {
			s.logger.ErrorContext(ctx, "workbook export failed",
				slog.String("job_id", jobID),
				slog.String("error", exportErr.Error()))
			s.finishJob(ctx, j, result, JobFailed, "", exportErr.Error(), now)
			return
		}
		file = path
		if s.metrics != nil {
			s.metrics.WorkbooksTotal.Add(ctx, 1)
		}
	}

	s.finishJob(ctx, j, result, JobCompleted, file, "", now)
}

func (s *GenerationService) finishJob(ctx context.Context, j *job, result *pipeline.BatchResult, status, file, errMsg string, now time.Time) {
	j.update(func(snap *JobSnapshot) {
		snap.Status = status
		snap.File = file
		snap.Error = errMsg
		snap.FinishedAt = &now
		if result != nil {
			snap.Succeeded = result.SucceededLabels()
			snap.Failures = result.Failures
			snap.Done = len(result.Series) + len(result.Failures)
		}
	})

	snap := j.view()
	s.logger.InfoContext(ctx, "job finished",
		slog.String("job_id", snap.ID),
		slog.String("status", status),
		slog.Int("succeeded", len(snap.Succeeded)),
		slog.Int("failed", len(snap.Failures)))

	s.broadcast(func(hub WebSocketHub) {
		hub.Broadcast("generation:complete", snapshotPayload(snap))
	})
}

func (s *GenerationService) writeWorkbook(country string, targets []pipeline.Target, r pipeline.DateRange, result *pipeline.BatchResult) (string, error) {
	if err := os.MkdirAll(s.cfg.Export.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	meta := exporter.RangeMetadata(country, targets, r, time.Now())
	f, err := exporter.WriteWorkbook(result, meta)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.cfg.Export.Dir, exporter.Filename(country, r))
	if err := exporter.Save(f, path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func (s *GenerationService) broadcast(fn func(WebSocketHub)) {
	if s.hub != nil {
		fn(s.hub)
	}
}

func websocketProgress(jobID string, p pipeline.Progress) func(WebSocketHub) {
	return func(hub WebSocketHub) {
		hub.Broadcast("generation:progress", map[string]any{
			"job_id":  jobID,
			"done":    p.Done,
			"total":   p.Total,
			"label":   p.Label,
			"phase":   p.Phase,
			"message": p.Message,
		})
	}
}

func snapshotPayload(snap JobSnapshot) map[string]any {
	return map[string]any{
		"job_id":    snap.ID,
		"status":    snap.Status,
		"succeeded": snap.Succeeded,
		"failures":  snap.Failures,
		"file":      filepath.Base(snap.File),
	}
}

func countSeries(result *pipeline.BatchResult) int {
	if result == nil {
		return 0
	}
	return len(result.Series)
}

func countFailures(result *pipeline.BatchResult) int {
	if result == nil {
		return 0
	}
	return len(result.Failures)
}

// Get returns the snapshot for one job.
func (s *GenerationService) Get(jobID string) (JobSnapshot, error) {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return JobSnapshot{}, ErrJobNotFound
	}
	return j.view(), nil
}

// List returns snapshots for every known job, newest first.
func (s *GenerationService) List() []JobSnapshot {
	s.mu.RLock()
	snapshots := make([]JobSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		snapshots = append(snapshots, j.view())
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, k int) bool {
		if snapshots[i].SubmittedAt.Equal(snapshots[k].SubmittedAt) {
			return snapshots[i].ID < snapshots[k].ID
		}
		return snapshots[i].SubmittedAt.After(snapshots[k].SubmittedAt)
	})
	return snapshots
}

// Cancel abandons a job's remaining work. Entries already produced stay
// in the job's result.
func (s *GenerationService) Cancel(jobID string) error {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	j.cancel()
	return nil
}

// WorkbookPath returns the exported file path for a completed job, or
// an error when the job is unknown or produced no workbook.
func (s *GenerationService) WorkbookPath(jobID string) (string, error) {
	snap, err := s.Get(jobID)
	if err != nil {
		return "", err
	}
	if snap.File == "" {
		return "", fmt.Errorf("job %s has no workbook", jobID)
	}
	return snap.File, nil
}

// Wait blocks until every running job has finished. Tests and shutdown
// only.
func (s *GenerationService) Wait() {
	s.wg.Wait()
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/rohanswami293875/Entsoe-Generation/internal/config"
	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
)

// Version information, set at build time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// HealthService reports process health and version information.
type HealthService struct {
	cfg       *config.Config
	logger    *slog.Logger
	startedAt time.Time
}

// NewHealthService creates the health service.
func NewHealthService(cfg *config.Config, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "health_service")),
		startedAt: time.Now(),
	}
}

// HealthCheck reports overall service health.
func (s *HealthService) HealthCheck(ctx context.Context) map[string]any {
	return map[string]any{
		"status":    "healthy",
		"version":   Version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// LivenessCheck reports whether the process is alive.
func (s *HealthService) LivenessCheck(ctx context.Context) map[string]any {
	return map[string]any{"status": "alive"}
}

// ReadinessCheck reports whether the service can accept generation
// jobs. Without an API token every upstream fetch would fail auth, so
// the service is not ready.
func (s *HealthService) ReadinessCheck(ctx context.Context) map[string]any {
	checks := map[string]string{
		"catalog": "ok",
		"token":   "ok",
	}
	status := "ready"

	if len(entsoe.Countries()) == 0 {
		checks["catalog"] = "empty"
		status = "not_ready"
	}
	if s.cfg.API.Token == "" {
		checks["token"] = "missing"
		status = "not_ready"
	}

	return map[string]any{
		"status": status,
		"checks": checks,
	}
}

// VersionInfo reports build metadata.
func (s *HealthService) VersionInfo() map[string]any {
	return map[string]any{
		"version":    Version,
		"build_time": BuildTime,
	}
}

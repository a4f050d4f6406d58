// Package app wires the HTTP server: configuration, logging,
// observability, services, routes and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/rohanswami293875/Entsoe-Generation/internal/config"
	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
	"github.com/rohanswami293875/Entsoe-Generation/internal/infrastructure"
	custommw "github.com/rohanswami293875/Entsoe-Generation/internal/middleware"
	"github.com/rohanswami293875/Entsoe-Generation/internal/services"
	transport "github.com/rohanswami293875/Entsoe-Generation/internal/transport/http"
	ws "github.com/rohanswami293875/Entsoe-Generation/internal/websocket"
)

// Application bundles the server's long-lived pieces.
type Application struct {
	Config *config.Config
	Logger *slog.Logger

	router    chi.Router
	server    *http.Server
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	otel      *infrastructure.OTelProviders
	genSvc    *services.GenerationService
	healthSvc *services.HealthService
}

// NewApplication builds a fully wired application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize observability: %w", err)
	}

	var metrics *infrastructure.PipelineMetrics
	if otelProviders.Meter != nil {
		metrics, err = infrastructure.NewPipelineMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("register pipeline metrics: %w", err)
		}
	}

	hub := ws.NewHub(logger)

	client := entsoe.NewClient(entsoe.Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}, logger)

	a := &Application{
		Config: cfg,
		Logger: logger,
		hub:    hub,
		otel:   otelProviders,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.Security.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		genSvc:    services.NewGenerationService(client, cfg, hub, metrics, logger),
		healthSvc: services.NewHealthService(cfg, logger),
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	// WebSocket upgrades bypass the middleware group below.
	r.Get("/ws", a.handleWebSocket)

	if a.otel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.otel.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(custommw.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.router = r
}

func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := transport.NewHealthHandler(a.healthSvc, a.Logger)
	generationHandler := transport.NewGenerationHandler(a.genSvc, a.Logger)
	catalogHandler := transport.NewCatalogHandler(a.Logger)
	queryHandler := transport.NewQueryHandler(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.Mount("/catalog", catalogHandler.Routes())
		r.Mount("/generation", generationHandler.Routes())
		r.Post("/query/parse", queryHandler.Parse)
	})
}

func (a *Application) createServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Router exposes the HTTP handler, mainly for tests.
func (a *Application) Router() http.Handler {
	return a.router
}

// Start runs the hub and the HTTP server until ctx is cancelled, then
// shuts everything down gracefully.
func (a *Application) Start(ctx context.Context) error {
	a.hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening",
			slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(shutdownCtx)
}

// Stop shuts the server, hub and observability providers down.
func (a *Application) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}
	a.hub.Stop()
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("observability shutdown: %w", err)
		}
	}
	infrastructure.CloseLogFile()
	return firstErr
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	traceID := infrastructure.GetTraceID(r.Context())
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}
	ws.ServeWS(a.hub, conn, traceID)
}

// Package http holds the REST handlers for the generation API.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
	apierrors "github.com/rohanswami293875/Entsoe-Generation/internal/errors"
	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
	"github.com/rohanswami293875/Entsoe-Generation/internal/services"
)

// GenerationHandler serves the generation job endpoints.
type GenerationHandler struct {
	service *services.GenerationService
	logger  *slog.Logger
}

// NewGenerationHandler creates the handler.
func NewGenerationHandler(service *services.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "generation")),
	}
}

// Routes mounts the generation endpoints.
func (h *GenerationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Get("/{jobID}", h.Get)
	r.Delete("/{jobID}", h.Cancel)
	r.Get("/{jobID}/download", h.Download)
	return r
}

// Submit handles POST /api/generation.
func (h *GenerationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req services.JobRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	jobID, err := h.service.Submit(r.Context(), req)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(submitError(err)))
		return
	}

	h.logger.InfoContext(r.Context(), "job accepted", slog.String("job_id", jobID))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"job_id": jobID})
}

func submitError(err error) *apierrors.APIError {
	var unknownTarget *entsoe.UnknownTargetError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRange):
		return apierrors.ErrInvalidDateRange
	case errors.Is(err, entsoe.ErrUnknownCountry):
		return apierrors.NewWithDetails(http.StatusBadRequest, "UNKNOWN_COUNTRY",
			"Requested country is not in the catalog", err.Error())
	case errors.As(err, &unknownTarget):
		return apierrors.NewWithDetails(http.StatusBadRequest, "UNKNOWN_TARGET",
			"Requested zone has no domain mapping", err.Error())
	default:
		return apierrors.InvalidRequestWithError(err)
	}
}

// List handles GET /api/generation.
func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"jobs": h.service.List()})
}

// Get handles GET /api/generation/{jobID}.
func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	snap, err := h.service.Get(jobID)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrJobNotFound))
		return
	}
	render.JSON(w, r, snap)
}

// Cancel handles DELETE /api/generation/{jobID}.
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.service.Cancel(jobID); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrJobNotFound))
		return
	}
	h.logger.InfoContext(r.Context(), "job cancelled", slog.String("job_id", jobID))
	render.JSON(w, r, map[string]string{"status": "cancelling", "job_id": jobID})
}

// Download handles GET /api/generation/{jobID}/download.
func (h *GenerationHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	path, err := h.service.WorkbookPath(jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrJobNotFound))
			return
		}
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusConflict, "NO_WORKBOOK",
				"Job has not produced a workbook", err.Error())))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

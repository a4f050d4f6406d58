package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/rohanswami293875/Entsoe-Generation/internal/errors"
	"github.com/rohanswami293875/Entsoe-Generation/internal/query"
)

// QueryHandler resolves free-text queries into structured requests so
// front-ends can preview what a submission would fetch.
type QueryHandler struct {
	logger *slog.Logger
}

// NewQueryHandler creates the handler.
func NewQueryHandler(logger *slog.Logger) *QueryHandler {
	return &QueryHandler{logger: logger.With(slog.String("handler", "query"))}
}

// Parse handles POST /api/query/parse.
func (h *QueryHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	req, err := query.Parse(body.Text)
	if err != nil {
		var unknown *query.UnknownCountryError
		if errors.As(err, &unknown) {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.NewWithDetails(http.StatusBadRequest, "UNKNOWN_COUNTRY",
					"Query does not name a catalog country",
					map[string]any{"name": unknown.Name, "suggestions": unknown.Suggestions})))
			return
		}
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	render.JSON(w, r, req)
}

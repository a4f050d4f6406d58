package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
)

// CatalogHandler serves the country and zone catalog.
type CatalogHandler struct {
	logger *slog.Logger
}

// NewCatalogHandler creates the handler.
func NewCatalogHandler(logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{logger: logger.With(slog.String("handler", "catalog"))}
}

// Routes mounts the catalog endpoints.
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/countries", h.Countries)
	r.Get("/zones", h.Zones)
	return r
}

// Countries handles GET /api/catalog/countries.
func (h *CatalogHandler) Countries(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"countries": entsoe.Countries()})
}

// Zones handles GET /api/catalog/zones. Every country's zones are
// returned with their display labels.
func (h *CatalogHandler) Zones(w http.ResponseWriter, r *http.Request) {
	type zone struct {
		Code    string `json:"code"`
		Label   string `json:"label"`
		Country string `json:"country"`
	}

	var zones []zone
	for _, c := range entsoe.Countries() {
		for _, z := range c.Zones {
			zones = append(zones, zone{Code: z, Label: entsoe.ZoneLabel(z), Country: c.Name})
		}
	}
	render.JSON(w, r, map[string]any{"zones": zones})
}

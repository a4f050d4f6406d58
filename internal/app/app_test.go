package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohanswami293875/Entsoe-Generation/internal/config"
)

// One application per test binary: the prometheus exporter registers
// collectors on the default registry.
func TestApplicationRoutes(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.Logging.Output = "stdout"

	application, err := NewApplication(cfg)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		application.Router().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/api/health/live").Code)
	assert.Equal(t, http.StatusOK, get("/api/health").Code)
	assert.Equal(t, http.StatusOK, get("/api/version").Code)
	assert.Equal(t, http.StatusOK, get("/api/catalog/countries").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/nope").Code)

	rec := get("/api/health/live")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://web-api.tp.entsoe.eu/api", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 1.8, cfg.Pipeline.BackoffBase)
	assert.Equal(t, 1, cfg.Pipeline.MaxSpanMonths)
	assert.Equal(t, time.Hour, cfg.Pipeline.ResampleStep)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NoError(t, cfg.validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  token: test-token
  rate_limit: 4
pipeline:
  max_retries: 3
  backoff_base: 2.0
export:
  dir: out
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.API.Token)
	assert.Equal(t, 4.0, cfg.API.RateLimit)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 2.0, cfg.Pipeline.BackoffBase)
	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, time.Hour, cfg.Pipeline.ResampleStep)
}

func TestLoadFromFileKeepsFileValuesForDefaultedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
security:
  enable_cors: false
  rate_limit:
    rps: 10
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// With the matching env vars unset, file values survive even on
	// fields that carry a built-in default.
	assert.False(t, cfg.Security.EnableCORS)
	assert.Equal(t, 10.0, cfg.Security.RateLimit.RPS)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
}

func TestLoadFromFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644))

	t.Setenv("ENTSOE_SERVER_PORT", "7070")
	t.Setenv("ENTSOE_API_TOKEN", "env-token")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env must take precedence over file")
	assert.Equal(t, "env-token", cfg.API.Token)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"zero retries", func(c *Config) { c.Pipeline.MaxRetries = 0 }, "max retries"},
		{"backoff base one", func(c *Config) { c.Pipeline.BackoffBase = 1 }, "backoff base"},
		{"zero span", func(c *Config) { c.Pipeline.MaxSpanMonths = 0 }, "max span"},
		{"zero step", func(c *Config) { c.Pipeline.ResampleStep = 0 }, "resample step"},
		{"empty export dir", func(c *Config) { c.Export.Dir = "" }, "export directory"},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }, "allowed origin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalizesLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "xml"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
}

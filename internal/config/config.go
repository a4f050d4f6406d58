// Package config loads application configuration from environment
// variables (prefix ENTSOE) merged over an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	API      APIConfig      `yaml:"api" envconfig:"API"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// APIConfig configures the upstream transparency-platform client.
// Defaults come from Default(), never from struct tags: envconfig
// re-applies tag defaults over file-provided values.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL"`
	Token     string        `yaml:"token" envconfig:"TOKEN"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RateLimit float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Burst     int           `yaml:"burst" envconfig:"BURST"`
}

// PipelineConfig configures how a batch decomposes and fetches targets.
type PipelineConfig struct {
	MaxRetries    int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	BackoffBase   float64       `yaml:"backoff_base" envconfig:"BACKOFF_BASE"`
	MaxSpanMonths int           `yaml:"max_span_months" envconfig:"MAX_SPAN_MONTHS"`
	ResampleStep  time.Duration `yaml:"resample_step" envconfig:"RESAMPLE_STEP"`
	Parallelism   int           `yaml:"parallelism" envconfig:"PARALLELISM"`
}

// ExportConfig configures workbook output.
type ExportConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	JobTimeout      time.Duration `yaml:"job_timeout" envconfig:"JOB_TIMEOUT"`
}

// SecurityConfig contains CORS and rate limiting configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains server-side rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load reads configuration from the environment, merged over a config
// file when one exists in a conventional location.
func Load() (*Config, error) {
	return LoadFromFile(findConfigFile())
}

// LoadFromFile reads configuration from the environment merged over the
// given YAML file. An empty path skips the file layer.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Environment variables take precedence over the file.
	if err := envconfig.Process("ENTSOE", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile checks conventional locations for a config file.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.MaxRetries <= 0 {
		return fmt.Errorf("pipeline max retries must be positive")
	}
	if c.Pipeline.BackoffBase <= 1 {
		return fmt.Errorf("pipeline backoff base must exceed 1")
	}
	if c.Pipeline.MaxSpanMonths <= 0 {
		return fmt.Errorf("pipeline max span must be at least one month")
	}
	if c.Pipeline.ResampleStep <= 0 {
		return fmt.Errorf("pipeline resample step must be positive")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export directory must be set")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://web-api.tp.entsoe.eu/api",
			Timeout:   30 * time.Second,
			RateLimit: 2,
			Burst:     1,
		},
		Pipeline: PipelineConfig{
			MaxRetries:    5,
			BackoffBase:   1.8,
			MaxSpanMonths: 1,
			ResampleStep:  time.Hour,
			Parallelism:   1,
		},
		Export: ExportConfig{Dir: "exports"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			JobTimeout:      2 * time.Hour,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
	}
}

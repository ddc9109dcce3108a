// Package config handles process configuration from environment variables.
// Pipeline behaviour is configured separately by a YAML file named in
// PIPELINE_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Storage
	DatabaseURL  string // PostgreSQL connection string (optional, uses ArtifactDir if not set)
	ArtifactDir  string
	ArtifactKeep int // versions retained by the file store

	// Pipeline
	PipelineConfig     string // path to the pipeline YAML (optional, defaults if not set)
	MaxFoldConcurrency int    // overrides cv.max_concurrency when > 0

	// Telemetry
	PushgatewayURL string
	OTLPEndpoint   string

	// Drift monitoring
	DriftWindow int
}

const (
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultArtifactDir  = "artifacts"
	DefaultArtifactKeep = 5
	DefaultDriftWindow  = 10000
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ArtifactDir:        getEnv("ARTIFACT_DIR", DefaultArtifactDir),
		ArtifactKeep:       int(getEnvInt64("ARTIFACT_KEEP", DefaultArtifactKeep)),
		PipelineConfig:     os.Getenv("PIPELINE_CONFIG"),
		MaxFoldConcurrency: int(getEnvInt64("MAX_FOLD_CONCURRENCY", 0)),
		PushgatewayURL:     os.Getenv("PUSHGATEWAY_URL"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DriftWindow:        int(getEnvInt64("DRIFT_WINDOW", DefaultDriftWindow)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a TCP port, got %q", c.Port)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.DatabaseURL == "" && c.ArtifactDir == "" {
		return fmt.Errorf("either DATABASE_URL or ARTIFACT_DIR is required")
	}
	if c.MaxFoldConcurrency < 0 {
		return fmt.Errorf("MAX_FOLD_CONCURRENCY must be >= 0")
	}
	if c.DriftWindow <= 0 {
		return fmt.Errorf("DRIFT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

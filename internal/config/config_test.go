package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_FORMAT", "ARTIFACT_DIR", "MAX_FOLD_CONCURRENCY", "DRIFT_WINDOW", "DATABASE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultArtifactDir, cfg.ArtifactDir)
	assert.Equal(t, DefaultArtifactKeep, cfg.ArtifactKeep)
	assert.Equal(t, 0, cfg.MaxFoldConcurrency)
	assert.Equal(t, DefaultDriftWindow, cfg.DriftWindow)
}

func TestLoad_WithOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("ARTIFACT_DIR", "/var/lib/fraudscore")
	t.Setenv("PIPELINE_CONFIG", "pipeline.yaml")
	t.Setenv("MAX_FOLD_CONCURRENCY", "2")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/var/lib/fraudscore", cfg.ArtifactDir)
	assert.Equal(t, "pipeline.yaml", cfg.PipelineConfig)
	assert.Equal(t, 2, cfg.MaxFoldConcurrency)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "http")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PORT must be a TCP port")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Port: "8080", LogFormat: "json", ArtifactDir: "artifacts", DriftWindow: 100}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "database only", mutate: func(c *Config) { c.ArtifactDir = ""; c.DatabaseURL = "postgres://localhost/fraud" }},
		{name: "no storage", mutate: func(c *Config) { c.ArtifactDir = "" }, wantErr: "DATABASE_URL or ARTIFACT_DIR"},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: "PORT"},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "negative concurrency", mutate: func(c *Config) { c.MaxFoldConcurrency = -1 }, wantErr: "MAX_FOLD_CONCURRENCY"},
		{name: "empty drift window", mutate: func(c *Config) { c.DriftWindow = 0 }, wantErr: "DRIFT_WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

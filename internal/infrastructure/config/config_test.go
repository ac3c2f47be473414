package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Empty(t, cfg.Server.HealthPort)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Persistence config
	assert.Equal(t, "sqlite", cfg.Remote.Driver)
	assert.Equal(t, 30*time.Second, cfg.Remote.ReconcileInterval)
	assert.Equal(t, "./data", cfg.Local.DataDir)

	// Timer config
	assert.Equal(t, time.Second, cfg.Timer.TickInterval)
	assert.Equal(t, 50, cfg.Timer.FocusXP)
	assert.Equal(t, 10, cfg.Timer.BreakXP)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "127.0.0.1",
		"ALLOWED_ORIGINS":     "https://desk.example.com,https://app.example.com",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RATE_LIMIT_RPS":      "500",
		"RATE_LIMIT_ENABLED":  "false",
		"REMOTE_DRIVER":       "postgres",
		"REMOTE_URL":          "postgres://desk@db/studydesk",
		"RECONCILE_INTERVAL":  "0s",
		"REDIS_URL":           "redis://cache:6379/0",
		"SESSION_TTL":         "24h",
		"GENERATION_API_KEY":  "sk-test",
		"GENERATION_PROVIDER": "openai",
		"TICK_INTERVAL":       "500ms",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"https://desk.example.com", "https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "postgres", cfg.Remote.Driver)
	assert.Equal(t, "postgres://desk@db/studydesk", cfg.RemoteURL())
	assert.Zero(t, cfg.Remote.ReconcileInterval)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, 500*time.Millisecond, cfg.Timer.TickInterval)
}

func TestLoadOrDefaultOnInvalidValue(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "lots")

	_, err := Load()
	require.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
}

func TestRemoteURLDefaultsToDataDir(t *testing.T) {
	cfg := Default()
	cfg.Local.DataDir = "/srv/desk"
	assert.Equal(t, "/srv/desk/remote.db", cfg.RemoteURL())
	assert.Equal(t, "/srv/desk/local", cfg.Layout().Local())
}

package config

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/paths"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Remote     RemoteConfig
	Local      LocalConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Generation generation.Config
	Timer      TimerConfig
	Workspace  WorkspaceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	HealthPort      string        `envconfig:"HEALTH_PORT"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Output      string `envconfig:"LOG_OUTPUT" default:"stdout"`
	Sample      bool   `envconfig:"LOG_SAMPLE" default:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// RemoteConfig holds the remote record store configuration. An empty URL
// with the sqlite driver uses a database file in the data directory.
type RemoteConfig struct {
	Enabled           bool          `envconfig:"REMOTE_ENABLED" default:"true"`
	Driver            string        `envconfig:"REMOTE_DRIVER" default:"sqlite"`
	URL               string        `envconfig:"REMOTE_URL"`
	MaxOpenConns      int           `envconfig:"REMOTE_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns      int           `envconfig:"REMOTE_MAX_IDLE_CONNS" default:"10"`
	ConnMaxIdleTime   time.Duration `envconfig:"REMOTE_CONN_MAX_IDLE" default:"5m"`
	ConnMaxLifetime   time.Duration `envconfig:"REMOTE_CONN_MAX_LIFETIME" default:"30m"`
	BreakerTimeout    time.Duration `envconfig:"REMOTE_BREAKER_TIMEOUT" default:"30s"`
	BreakerFailures   uint32        `envconfig:"REMOTE_BREAKER_FAILURES" default:"5"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
}

// LocalConfig holds the local durable tier configuration.
type LocalConfig struct {
	DataDir    string `envconfig:"DATA_DIR" default:"./data"`
	InMemory   bool   `envconfig:"LOCAL_IN_MEMORY" default:"false"`
	SyncWrites bool   `envconfig:"LOCAL_SYNC_WRITES" default:"false"`
}

// RedisConfig holds auth session storage configuration. An empty URL keeps
// sessions in memory.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	AllowGuest   bool          `envconfig:"AUTH_ALLOW_GUEST" default:"true"`
	AutoRegister bool          `envconfig:"AUTH_AUTO_REGISTER" default:"true"`
	BcryptCost   int           `envconfig:"AUTH_BCRYPT_COST" default:"10"`
}

// TimerConfig holds session timer configuration.
type TimerConfig struct {
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	FocusXP      int           `envconfig:"FOCUS_XP" default:"50"`
	BreakXP      int           `envconfig:"BREAK_XP" default:"10"`
}

// WorkspaceConfig holds per-user workspace configuration.
type WorkspaceConfig struct {
	ViewportWidth    int           `envconfig:"VIEWPORT_WIDTH" default:"1440"`
	ViewportHeight   int           `envconfig:"VIEWPORT_HEIGHT" default:"900"`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"1m"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      "stdout",
			Sample:      true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Remote: RemoteConfig{
			Enabled:           true,
			Driver:            "sqlite",
			MaxOpenConns:      20,
			MaxIdleConns:      10,
			ConnMaxIdleTime:   5 * time.Minute,
			ConnMaxLifetime:   30 * time.Minute,
			BreakerTimeout:    30 * time.Second,
			BreakerFailures:   5,
			ReconcileInterval: 30 * time.Second,
		},
		Local: LocalConfig{
			DataDir: "./data",
		},
		Auth: AuthConfig{
			SessionTTL:   30 * 24 * time.Hour,
			AllowGuest:   true,
			AutoRegister: true,
			BcryptCost:   10,
		},
		Generation: generation.Config{
			Provider:   "gemini",
			Timeout:    30 * time.Second,
			RateLimit:  2,
			MaxRetries: 3,
			RetryWait:  time.Second,
		},
		Timer: TimerConfig{
			TickInterval: time.Second,
			FocusXP:      50,
			BreakXP:      10,
		},
		Workspace: WorkspaceConfig{
			ViewportWidth:    1440,
			ViewportHeight:   900,
			SnapshotInterval: time.Minute,
		},
	}
}

// Layout returns the data directory layout
func (c *Config) Layout() paths.Layout {
	return paths.New(c.Local.DataDir)
}

// RemoteURL returns the remote store DSN, defaulting sqlite to a file in
// the data directory
func (c *Config) RemoteURL() string {
	if c.Remote.URL != "" {
		return c.Remote.URL
	}
	return c.Layout().RemoteDB()
}

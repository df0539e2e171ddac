// Package config provides centralized configuration management for the
// service. It loads settings from environment variables with sensible
// defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
	Watchdog WatchdogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required unless IMPORT_STORE=memory)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Store selects the backing store: postgres or memory (default: postgres)
	Store string `env:"IMPORT_STORE" default:"postgres"`
}

// ImportConfig holds bulk-import pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 10MiB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxRows is the maximum data rows per file (default: 10000)
	MaxRows int `env:"IMPORT_MAX_ROWS" default:"10000"`

	// MaxActiveJobs is the per-vendor cap on concurrently active jobs (default: 3)
	MaxActiveJobs int `env:"IMPORT_MAX_ACTIVE_JOBS" default:"3"`

	// CheckpointRows is the progress-persistence cadence in rows (default: 10)
	CheckpointRows int `env:"IMPORT_CHECKPOINT_ROWS" default:"10"`

	// MaxErrorLog is the cap on retained row errors per job (default: 1000)
	MaxErrorLog int `env:"IMPORT_MAX_ERROR_LOG" default:"1000"`

	// JobTimeout is the maximum duration for one job run (default: 10m)
	JobTimeout time.Duration `env:"IMPORT_JOB_TIMEOUT" default:"10m"`

	// UploadsDir is where submitted payloads are retained (default: ./uploads)
	UploadsDir string `env:"IMPORT_UPLOADS_DIR" default:"uploads"`

	// DefaultCategory is the category applied when a row omits one
	DefaultCategory string `env:"IMPORT_DEFAULT_CATEGORY" default:"Uncategorized"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SubmitLimit is requests per minute for the import-submission endpoint (default: 10)
	SubmitLimit int `env:"RATE_LIMIT_SUBMIT" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// WatchdogConfig holds stale-job reaper settings.
type WatchdogConfig struct {
	// MaxJobAge is how old a non-terminal job may be before it is reaped (default: 30m)
	MaxJobAge time.Duration `env:"WATCHDOG_MAX_JOB_AGE" default:"30m"`

	// CheckInterval is how often the reaper sweeps (default: 5m)
	CheckInterval time.Duration `env:"WATCHDOG_CHECK_INTERVAL" default:"5m"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

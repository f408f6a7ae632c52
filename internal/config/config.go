// Package config provides centralized configuration management for csvparse.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Parse    ParseConfig
	Convert  ConvertConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings used by the serve command.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// MaxUploadSize is the largest accepted multipart body in bytes (default: 100MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"104857600"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
// Persistence of conversion runs is enabled only when URL is set.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ParseConfig holds line reading options.
type ParseConfig struct {
	// SkipBOM strips a leading UTF-8 byte order mark (default: false)
	SkipBOM bool `env:"PARSE_SKIP_BOM" default:"false"`

	// SanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD (default: false)
	SanitizeUTF8 bool `env:"PARSE_SANITIZE_UTF8" default:"false"`

	// MaxLineBytes is the longest accepted line (default: 1MiB)
	MaxLineBytes int `env:"PARSE_MAX_LINE_BYTES" default:"1048576"`
}

// Options returns the parser options for this configuration.
func (c ParseConfig) Options() parser.Options {
	return parser.Options{
		SkipBOM:      c.SkipBOM,
		SanitizeUTF8: c.SanitizeUTF8,
		MaxLineBytes: c.MaxLineBytes,
	}
}

// ConvertConfig holds conversion service settings.
type ConvertConfig struct {
	// MaxConcurrent is the maximum number of parallel conversions (default: 4)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 10s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds a single conversion including persistence (default: 5m)
	Timeout time.Duration `env:"CONVERT_TIMEOUT" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File is an optional path that receives a JSON copy of every record
	File string `env:"LOG_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

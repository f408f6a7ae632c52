package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Every failure is collected so the operator sees them all at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		result = multierror.Append(result, fmt.Errorf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		result = multierror.Append(result, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.Database.MinConns < 0 {
		result = multierror.Append(result, errors.New("DB_MIN_CONNS must be non-negative"))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.MaxUploadSize <= 0 {
		result = multierror.Append(result, errors.New("SERVER_MAX_UPLOAD_SIZE must be positive"))
	}
	if c.Server.ReadTimeout < 0 {
		result = multierror.Append(result, errors.New("SERVER_READ_TIMEOUT must be non-negative"))
	}
	if c.Server.RequestTimeout <= 0 {
		result = multierror.Append(result, errors.New("SERVER_REQUEST_TIMEOUT must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		result = multierror.Append(result, errors.New("SERVER_SHUTDOWN_TIMEOUT must be positive"))
	}

	// Parse validation
	if c.Parse.MaxLineBytes <= 0 {
		result = multierror.Append(result, errors.New("PARSE_MAX_LINE_BYTES must be positive"))
	}

	// Convert validation
	if c.Convert.MaxConcurrent <= 0 {
		result = multierror.Append(result, errors.New("CONVERT_MAX_CONCURRENT must be positive"))
	}
	if c.Convert.MaxWaitTime <= 0 {
		result = multierror.Append(result, errors.New("CONVERT_MAX_WAIT_TIME must be positive"))
	}
	if c.Convert.Timeout <= 0 {
		result = multierror.Append(result, errors.New("CONVERT_TIMEOUT must be positive"))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		result = multierror.Append(result, fmt.Errorf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	return result.ErrorOrNil()
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	db := "[DISABLED]"
	if c.Database.Enabled() {
		db = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		db, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Parse: {SkipBOM: %v, SanitizeUTF8: %v, MaxLineBytes: %d}, ",
		c.Parse.SkipBOM, c.Parse.SanitizeUTF8, c.Parse.MaxLineBytes))
	b.WriteString(fmt.Sprintf("Convert: {MaxConcurrent: %d, MaxWaitTime: %s, Timeout: %s}, ",
		c.Convert.MaxConcurrent, c.Convert.MaxWaitTime, c.Convert.Timeout))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

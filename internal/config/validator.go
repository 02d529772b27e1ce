package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "cache.refresh_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// filePlaceholder marks the .rdp path in launch.args.
const filePlaceholder = "{file}"

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateUser()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateLaunch()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

// validateUser validates the UserConfig
func (c *Config) validateUser() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.User.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "user.name",
			Value:   c.User.Name,
			Message: "must not be empty",
		})
	} else if strings.TrimSpace(c.User.Name) != c.User.Name {
		errors = append(errors, ValidationError{
			Field:   "user.name",
			Value:   c.User.Name,
			Message: "must not have leading or trailing whitespace",
		})
	}

	return errors
}

// validateCache validates the CacheConfig
func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	if c.Cache.RefreshSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.refresh_seconds",
			Value:   c.Cache.RefreshSeconds,
			Message: "must be at least 1",
		})
	}

	// Beyond an hour other users' locks would effectively never show up
	const maxRefreshSeconds = 3600
	if c.Cache.RefreshSeconds > maxRefreshSeconds {
		errors = append(errors, ValidationError{
			Field:   "cache.refresh_seconds",
			Value:   c.Cache.RefreshSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRefreshSeconds),
		})
	}

	return errors
}

// validateLaunch validates the LaunchConfig
func (c *Config) validateLaunch() []ValidationError {
	var errors []ValidationError

	if len(c.Launch.Args) > 0 && !slices.ContainsFunc(c.Launch.Args, func(a string) bool {
		return strings.Contains(a, filePlaceholder)
	}) {
		errors = append(errors, ValidationError{
			Field:   "launch.args",
			Value:   c.Launch.Args,
			Message: fmt.Sprintf("must reference the connection file as %s", filePlaceholder),
		})
	}

	if c.Launch.Command != strings.TrimSpace(c.Launch.Command) {
		errors = append(errors, ValidationError{
			Field:   "launch.command",
			Value:   c.Launch.Command,
			Message: "must not have leading or trailing whitespace",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	const minTickMs = 100
	if c.TUI.TickMs < minTickMs {
		errors = append(errors, ValidationError{
			Field:   "tui.tick_ms",
			Value:   c.TUI.TickMs,
			Message: fmt.Sprintf("must be at least %d", minTickMs),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errors = append(errors, ValidationError{
				Field:   "metrics.address",
				Value:   c.Metrics.Address,
				Message: "must be host:port",
			})
		}
	}

	return errors
}

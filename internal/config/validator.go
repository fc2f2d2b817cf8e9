package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/shiftgrid/internal/rules"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Value   any    // The invalid value
	Field   string // The config field path (e.g., "queue.retry_delay")
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
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	positive := func(field string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, ValidationError{Field: field, Value: d, Message: "must be positive"})
		}
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of " + strings.Join(ValidLogLevels(), ", "),
		})
	}

	positive("presence.heartbeat_interval", c.Presence.HeartbeatInterval)
	positive("presence.presence_sweep_interval", c.Presence.PresenceSweepInterval)
	positive("presence.presence_ttl", c.Presence.PresenceTTL)
	positive("presence.lock_sweep_interval", c.Presence.LockSweepInterval)
	positive("presence.lock_ttl", c.Presence.LockTTL)
	positive("queue.retry_delay", c.Queue.RetryDelay)
	positive("client.request_timeout", c.Client.RequestTimeout)
	positive("server.rate_window", c.Server.RateWindow)

	if c.Presence.PresenceTTL > 0 && c.Presence.PresenceTTL <= c.Presence.HeartbeatInterval {
		errs = append(errs, ValidationError{
			Field:   "presence.presence_ttl",
			Value:   c.Presence.PresenceTTL,
			Message: "must be longer than presence.heartbeat_interval",
		})
	}
	if c.Queue.MaxRetries < 1 {
		errs = append(errs, ValidationError{Field: "queue.max_retries", Value: c.Queue.MaxRetries, Message: "must be at least 1"})
	}
	if c.History.Capacity < 1 {
		errs = append(errs, ValidationError{Field: "history.capacity", Value: c.History.Capacity, Message: "must be at least 1"})
	}
	if c.Rules.Debounce < 0 {
		errs = append(errs, ValidationError{Field: "rules.debounce", Value: c.Rules.Debounce, Message: "must not be negative"})
	}
	if _, err := rules.BuildAll(c.Rules.Definitions); err != nil {
		errs = append(errs, ValidationError{Field: "rules.definitions", Value: len(c.Rules.Definitions), Message: err.Error()})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Value: c.Server.RateLimit, Message: "must not be negative"})
	}

	return errs
}

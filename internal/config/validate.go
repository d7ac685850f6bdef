package config

import (
	"fmt"
	"strconv"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	switch cfg.StateBackend {
	case BackendFile:
		if cfg.StatePersist && cfg.StateDir == "" {
			errs = append(errs, ValidationError{Field: "STATE_DIR", Message: "required when STATE_PERSIST is true"})
		}
	case BackendPostgres, BackendSQLite:
		if cfg.StateDSN == "" {
			errs = append(errs, ValidationError{
				Field:   "STATE_DSN",
				Message: fmt.Sprintf("required for STATE_BACKEND %q", cfg.StateBackend),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "STATE_BACKEND",
			Message: fmt.Sprintf("must be 'file', 'postgres' or 'sqlite', got %q", cfg.StateBackend),
		})
	}

	errs = checkDuration(errs, "SCHEDULER_POLL_INTERVAL", cfg.SchedulerPollIntervalStr)
	errs = checkDuration(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)

	if cfg.RemoteEnabled {
		if cfg.RemoteAPIURL == "" {
			errs = append(errs, ValidationError{Field: "REMOTE_API_URL", Message: "required when REMOTE_ENABLED is true"})
		}
		if cfg.RemoteDeploymentID == "" {
			errs = append(errs, ValidationError{Field: "REMOTE_DEPLOYMENT_ID", Message: "required when REMOTE_ENABLED is true"})
		}
		errs = checkDuration(errs, "REMOTE_TIMEOUT", cfg.RemoteTimeoutStr)
		errs = checkDuration(errs, "REMOTE_BREAKER_COOLDOWN", cfg.RemoteBreakerCooldownStr)
		if cfg.RemoteRateLimit < 0 {
			errs = append(errs, ValidationError{Field: "REMOTE_RATE_LIMIT", Message: "must not be negative"})
		}
		if cfg.RemoteBreakerThreshold < 0 {
			errs = append(errs, ValidationError{Field: "REMOTE_BREAKER_THRESHOLD", Message: "must not be negative"})
		}
	}

	if cfg.MetricsEnabled {
		if port, err := strconv.Atoi(cfg.MetricsPort); err != nil || port <= 0 || port > 65535 {
			errs = append(errs, ValidationError{
				Field:   "METRICS_PORT",
				Message: fmt.Sprintf("must be a port number, got %q", cfg.MetricsPort),
			})
		}
		if cfg.MetricsPath == "" || cfg.MetricsPath[0] != '/' {
			errs = append(errs, ValidationError{Field: "METRICS_PATH", Message: "must start with '/'"})
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "LOG_LEVEL",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.LogLevel),
		})
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, ValidationError{
			Field:   "LOG_FORMAT",
			Message: fmt.Sprintf("must be 'text' or 'json', got %q", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkDuration(errs ValidationErrors, field, raw string) ValidationErrors {
	d, err := parseDuration(raw)
	if err != nil {
		return append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)})
	}
	if d <= 0 {
		return append(errs, ValidationError{Field: field, Message: "must be positive"})
	}
	return errs
}

package config

import (
	"fmt"
	"strings"
)

// ValidationError names one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every invalid field so callers see the
// whole problem at once.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

var validStrategies = map[string]struct{}{
	"last_started":         {},
	"last_started_jitter":  {},
	"last_finished":        {},
	"last_finished_jitter": {},
}

var validExecutorKinds = map[string]struct{}{
	"sync": {},
	"pool": {},
}

// Validate checks the whole configuration eagerly.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateExecutor(&cfg.Executor)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateJobs(&cfg.Jobs)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateScheduler(cfg *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if _, ok := validStrategies[cfg.Strategy]; !ok {
		errs = append(errs, ValidationError{
			Field:   "scheduler.strategy",
			Message: fmt.Sprintf("unknown strategy %q", cfg.Strategy),
		})
	}

	if cfg.MaxLoopIdle <= 0 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.max_loop_idle",
			Message: "must be greater than zero",
		})
	}

	if cfg.MaxJitterFraction < 0 || cfg.MaxJitterFraction > 1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.max_jitter_fraction",
			Message: "must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateExecutor(cfg *ExecutorConfig) ValidationErrors {
	var errs ValidationErrors

	if _, ok := validExecutorKinds[cfg.Kind]; !ok {
		errs = append(errs, ValidationError{
			Field:   "executor.kind",
			Message: fmt.Sprintf("must be one of sync, pool; got %q", cfg.Kind),
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "executor.workers",
			Message: "must be at least 1",
		})
	}

	if cfg.QueueSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "executor.queue_size",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Enabled && cfg.Addr == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.addr",
			Message: "required when metrics are enabled",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Level),
		})
	}

	switch cfg.Format {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be console or json; got %q", cfg.Format),
		})
	}

	return errs
}

func validateJobs(cfg *JobsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "jobs.path",
			Message: "must not be empty",
		})
	}

	return errs
}

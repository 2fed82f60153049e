// Package config provides configuration management for metronome.
package config

import (
	"time"
)

// Config is the root configuration structure for metronome.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// SchedulerConfig holds the periodic worker's construction settings.
type SchedulerConfig struct {
	// Strategy selects a built-in next-run strategy by name.
	Strategy string `mapstructure:"strategy"`

	// MaxLoopIdle bounds a single coordinator wait.
	MaxLoopIdle time.Duration `mapstructure:"max_loop_idle"`

	// MaxJitterFraction bounds the random offset added by jittered
	// strategies, as a fraction of each callback's spacing.
	MaxJitterFraction float64 `mapstructure:"max_jitter_fraction"`
}

// ExecutorConfig selects and sizes the execution backend.
type ExecutorConfig struct {
	// Kind is the backend type: "sync" or "pool".
	Kind string `mapstructure:"kind"`

	// Workers is the pool size (pool backend only).
	Workers int `mapstructure:"workers"`

	// QueueSize is the pool intake capacity (pool backend only).
	QueueSize int `mapstructure:"queue_size"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	// Enabled turns the /metrics listener on.
	Enabled bool `mapstructure:"enabled"`

	// Addr is the listen address.
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// JobsConfig points at the jobs manifest.
type JobsConfig struct {
	// Path is the manifest file location.
	Path string `mapstructure:"path"`

	// Watch reloads the manifest on change, adding new jobs to the
	// running worker.
	Watch bool `mapstructure:"watch"`
}

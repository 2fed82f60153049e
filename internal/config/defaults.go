package config

import "time"

// Default configuration values.
const (
	// Scheduler defaults.
	DefaultStrategy          = "last_started"
	DefaultMaxLoopIdle       = 30 * time.Second
	DefaultMaxJitterFraction = 0.05

	// Executor defaults.
	DefaultExecutorKind = "pool"
	DefaultWorkers      = 2
	DefaultQueueSize    = 256

	// Metrics defaults.
	DefaultMetricsAddr = "localhost:9090"

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	// Jobs defaults.
	DefaultJobsPath = "jobs.yaml"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Strategy:          DefaultStrategy,
			MaxLoopIdle:       DefaultMaxLoopIdle,
			MaxJitterFraction: DefaultMaxJitterFraction,
		},
		Executor: ExecutorConfig{
			Kind:      DefaultExecutorKind,
			Workers:   DefaultWorkers,
			QueueSize: DefaultQueueSize,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Jobs: JobsConfig{
			Path:  DefaultJobsPath,
			Watch: false,
		},
	}
}

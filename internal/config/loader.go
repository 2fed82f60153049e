package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// LoadOptions controls where Load reads configuration from.
type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

// Load reads configuration from defaults, an optional YAML file, and
// METRONOME_* environment variables, then validates the result.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "METRONOME"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("metronome")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/metronome")
		v.AddConfigPath("/etc/metronome")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

// LoadWithDefaults loads configuration from the standard search paths.
func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scheduler.strategy", cfg.Scheduler.Strategy)
	v.SetDefault("scheduler.max_loop_idle", cfg.Scheduler.MaxLoopIdle)
	v.SetDefault("scheduler.max_jitter_fraction", cfg.Scheduler.MaxJitterFraction)

	v.SetDefault("executor.kind", cfg.Executor.Kind)
	v.SetDefault("executor.workers", cfg.Executor.Workers)
	v.SetDefault("executor.queue_size", cfg.Executor.QueueSize)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("jobs.path", cfg.Jobs.Path)
	v.SetDefault("jobs.watch", cfg.Jobs.Watch)
}

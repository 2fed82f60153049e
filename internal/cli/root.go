// Package cli implements the metronome command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "metronome",
	Short: "A periodic task coordinator",
	Long: `Metronome runs a set of jobs on fixed intervals:

  - Jobs are declared in a YAML manifest with a spacing per job
  - A single coordinator decides what runs next; a worker pool runs it
  - Pluggable next-run strategies, with optional jitter
  - Per-job run/failure counters exported to Prometheus

Run the coordinator:
  metronome run

Validate configuration and manifest without running:
  metronome check`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./metronome.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// setupLogging configures zerolog before config is loaded; applyLogging
// refines it once the config is known.
func setupLogging() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// applyLogging reconfigures the global logger from config. The --verbose
// flag wins over the configured level.
func applyLogging(level, format string) error {
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if verbose {
		return nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("metronome version %s", "0.1.0-dev")
}

package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/metronome/internal/jobs"
)

var checkJobsPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and jobs manifest",
	Long: `Load the configuration and the jobs manifest, build the worker, and
exit. Nothing runs; validation failures are reported with a non-zero
exit status.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkJobsPath, "jobs", "", "jobs manifest path (overrides config)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs.Path = checkJobsPath
	}

	manifest, err := jobs.LoadFile(cfg.Jobs.Path)
	if err != nil {
		return err
	}

	if _, err := buildWorker(cfg, manifest); err != nil {
		return err
	}

	log.Info().
		Int("jobs", len(manifest.Jobs)).
		Str("strategy", cfg.Scheduler.Strategy).
		Msg("Configuration and manifest are valid")
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/watzon/metronome/internal/config"
	"github.com/watzon/metronome/internal/executor"
	"github.com/watzon/metronome/internal/jobs"
	"github.com/watzon/metronome/internal/metrics"
	"github.com/watzon/metronome/internal/periodic"
)

var (
	runJobsPath string
	runWatch    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic job coordinator",
	Long: `Run the coordinator until interrupted.

Jobs come from the manifest referenced by the config (or --jobs). With
--watch, jobs added to the manifest while running are picked up and
scheduled; edits to existing jobs are ignored until restart.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runJobsPath, "jobs", "", "jobs manifest path (overrides config)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "watch the manifest and add new jobs while running")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs.Path = runJobsPath
	}
	if cmd.Flags().Changed("watch") {
		cfg.Jobs.Watch = runWatch
	}
	if err := applyLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	manifest, err := jobs.LoadFile(cfg.Jobs.Path)
	if err != nil {
		return err
	}

	worker, err := buildWorker(cfg, manifest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	log.Info().
		Int("jobs", worker.Len()).
		Str("strategy", cfg.Scheduler.Strategy).
		Str("executor", cfg.Executor.Kind).
		Msg("Coordinator starting")

	g.Go(func() error {
		// allowEmpty only matters in watch mode, where jobs may arrive
		// after startup.
		return worker.Start(ctx, cfg.Jobs.Watch)
	})

	if cfg.Metrics.Enabled {
		if err := serveMetrics(ctx, g, worker, cfg.Metrics.Addr); err != nil {
			worker.Stop()
			return err
		}
	}

	if cfg.Jobs.Watch {
		if err := watchManifest(ctx, cfg.Jobs.Path, worker, manifest); err != nil {
			worker.Stop()
			return err
		}
	}

	err = g.Wait()
	log.Info().Msg("Coordinator stopped")
	return err
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	// A missing file on the search path already falls back to defaults
	// inside Load; anything surfacing here is a real read, parse, or
	// validation failure and must not be masked.
	return config.LoadWithDefaults()
}

func buildWorker(cfg *config.Config, manifest *jobs.Manifest) (*periodic.Worker, error) {
	factory, err := executorFactory(cfg.Executor)
	if err != nil {
		return nil, err
	}
	return periodic.New(jobs.Callbacks(manifest, log.Logger), periodic.Config{
		Strategy:          cfg.Scheduler.Strategy,
		MaxLoopIdle:       cfg.Scheduler.MaxLoopIdle,
		MaxJitterFraction: &cfg.Scheduler.MaxJitterFraction,
		ExecutorFactory:   factory,
		Logger:            &log.Logger,
	})
}

func executorFactory(cfg config.ExecutorConfig) (func() executor.Executor, error) {
	switch cfg.Kind {
	case "sync":
		return func() executor.Executor { return executor.NewSync() }, nil
	case "pool":
		return func() executor.Executor {
			return executor.NewPool(executor.PoolConfig{
				Workers:   cfg.Workers,
				QueueSize: cfg.QueueSize,
				Logger:    &log.Logger,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", cfg.Kind)
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, worker *periodic.Worker, addr string) error {
	reg, err := metrics.NewRegistry(worker)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Metrics listener started")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

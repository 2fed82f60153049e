package jobs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/watzon/metronome/internal/periodic"
)

// maxLoggedOutput caps how much combined output a single run logs.
const maxLoggedOutput = 4096

// Callback builds the periodic callback for a manifest job. Each run
// executes the command with a fresh run ID; a non-zero exit status
// becomes a failed run.
func Callback(job Job, logger zerolog.Logger) *periodic.Callback {
	return &periodic.Callback{
		Name:      job.Name,
		Spacing:   job.Every.Std(),
		Immediate: job.Immediate,
		Run: func(ctx context.Context) error {
			return runCommand(ctx, job, logger)
		},
	}
}

// Callbacks builds callbacks for every job in the manifest.
func Callbacks(m *Manifest, logger zerolog.Logger) []*periodic.Callback {
	callbacks := make([]*periodic.Callback, 0, len(m.Jobs))
	for _, job := range m.Jobs {
		callbacks = append(callbacks, Callback(job, logger))
	}
	return callbacks
}

func runCommand(ctx context.Context, job Job, logger zerolog.Logger) error {
	runID := uuid.NewString()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout.Std())
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, job.Command, job.Args...)
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > maxLoggedOutput {
		trimmed = trimmed[:maxLoggedOutput]
	}

	if err != nil {
		return fmt.Errorf("job %q run %s failed after %s: %w (output: %s)",
			job.Name, runID, elapsed, err, trimmed)
	}

	logger.Debug().
		Str("job", job.Name).
		Str("run_id", runID).
		Dur("elapsed", elapsed).
		Str("output", trimmed).
		Msg("Job run completed")
	return nil
}

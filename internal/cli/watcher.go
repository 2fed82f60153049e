package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/watzon/metronome/internal/jobs"
	"github.com/watzon/metronome/internal/periodic"
)

// watchDebounce coalesces the bursts of filesystem events editors emit
// for a single save.
const watchDebounce = 100 * time.Millisecond

// watchManifest watches the jobs manifest and adds newly declared jobs
// to the running worker. The registry only grows: changed or removed
// jobs are logged and left alone until restart.
func watchManifest(ctx context.Context, path string, worker *periodic.Worker, initial *jobs.Manifest) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors typically replace the
	// file, which would drop a direct watch.
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	known := make(map[string]jobs.Job, len(initial.Jobs))
	for _, job := range initial.Jobs {
		known[job.Name] = job
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(watchDebounce)
					fire = debounce.C
				} else {
					// Drain a fired-but-unreceived timer before Reset so a
					// burst straddling the expiry cannot trigger an early
					// reload.
					if !debounce.Stop() {
						select {
						case <-fire:
						default:
						}
					}
					debounce.Reset(watchDebounce)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Manifest watcher error")

			case <-fire:
				debounce = nil
				fire = nil
				reloadManifest(abs, worker, known)
			}
		}
	}()

	log.Info().Str("path", abs).Msg("Watching jobs manifest")
	return nil
}

func reloadManifest(path string, worker *periodic.Worker, known map[string]jobs.Job) {
	manifest, err := jobs.LoadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to reload jobs manifest")
		return
	}

	for _, job := range manifest.Jobs {
		prev, ok := known[job.Name]
		if !ok {
			if err := worker.Add(jobs.Callback(job, log.Logger)); err != nil {
				log.Error().Err(err).Str("job", job.Name).Msg("Failed to add job")
				continue
			}
			known[job.Name] = job
			log.Info().Str("job", job.Name).Dur("every", job.Every.Std()).Msg("Job added")
			continue
		}
		if prev.Command != job.Command || prev.Every != job.Every {
			log.Warn().Str("job", job.Name).Msg("Job changed; restart to apply")
		}
	}
	for name := range known {
		if _, ok := manifest.Find(name); !ok {
			log.Warn().Str("job", name).Msg("Job removed from manifest; restart to apply")
		}
	}
}

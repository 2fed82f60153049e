// Package periodic implements the scheduling core of metronome: a
// priority-ordered schedule of callbacks, pluggable next-run strategies,
// and a single coordinator loop that dispatches due callbacks to an
// execution backend and reschedules them from observed start/finish
// timestamps.
package periodic

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/watzon/metronome/internal/executor"
)

// Default construction values.
const (
	// DefaultMaxLoopIdle bounds any single wait in the coordinator loop
	// so external signals (stop, add) are noticed promptly even with
	// nothing scheduled.
	DefaultMaxLoopIdle = 30 * time.Second
	// DefaultMaxJitterFraction is used by the jittered strategies when
	// the config leaves the fraction unset.
	DefaultMaxJitterFraction = 0.05
)

// ErrNoCallbacks is returned by Start when the registry is empty and
// allowEmpty is false.
var ErrNoCallbacks = errors.New("periodic worker cannot start without any callbacks")

// kind tags a dispatch for diagnostics only.
type kind string

const (
	kindImmediate kind = "immediate"
	kindPeriodic  kind = "periodic"
)

// Config holds construction-time configuration for a Worker. All values
// are validated eagerly by New.
type Config struct {
	// Strategy selects a built-in scheduling strategy by name
	// (default: last_started).
	Strategy string
	// MaxLoopIdle bounds a single coordinator wait (default: 30s).
	MaxLoopIdle time.Duration
	// MaxJitterFraction is the upper bound, as a fraction of spacing,
	// for the random offset added by jittered strategies. Must lie in
	// [0, 1]; nil means DefaultMaxJitterFraction, while an explicit
	// zero disables jitter entirely.
	MaxJitterFraction *float64
	// ExecutorFactory produces the execution backend used for one Start
	// cycle (default: a synchronous executor).
	ExecutorFactory func() executor.Executor
	// Logger is the diagnostics sink (default: the global logger).
	Logger *zerolog.Logger
}

// Worker calls a collection of callbacks periodically, sleeping as
// needed between dispatches. Start is typically run on a background
// goroutine; Add and Stop are safe to call while it runs.
type Worker struct {
	mu sync.Mutex

	// wake is the coordinator's rendezvous: capacity one because the
	// coordinator is the only goroutine that ever waits on it.
	wake chan struct{}
	// dead is closed when the coordinator loop exits; Start replaces it
	// with a fresh channel on entry.
	dead chan struct{}

	callbacks  []*Callback
	metrics    []*Metrics
	immediates []int
	sched      *schedule

	stopRequested bool

	strategy    strategy
	maxLoopIdle time.Duration
	execFactory func() executor.Executor
	log         zerolog.Logger

	now func() time.Time
}

// New creates a worker over the given callbacks. Every callback is
// validated eagerly; the strategy name and jitter fraction are resolved
// here, never at dispatch time.
func New(callbacks []*Callback, cfg Config) (*Worker, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLastStarted
	}
	if cfg.MaxLoopIdle <= 0 {
		cfg.MaxLoopIdle = DefaultMaxLoopIdle
	}
	fraction := DefaultMaxJitterFraction
	if cfg.MaxJitterFraction != nil {
		fraction = *cfg.MaxJitterFraction
	}
	strat, err := resolveStrategy(cfg.Strategy, fraction)
	if err != nil {
		return nil, err
	}
	if cfg.ExecutorFactory == nil {
		cfg.ExecutorFactory = func() executor.Executor { return executor.NewSync() }
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	w := &Worker{
		wake:        make(chan struct{}, 1),
		dead:        make(chan struct{}),
		sched:       newSchedule(),
		strategy:    strat,
		maxLoopIdle: cfg.MaxLoopIdle,
		execFactory: cfg.ExecutorFactory,
		log:         logger,
		now:         time.Now,
	}
	for _, cb := range callbacks {
		if err := cb.validate(); err != nil {
			return nil, err
		}
		w.callbacks = append(w.callbacks, cb)
		w.metrics = append(w.metrics, &Metrics{})
	}
	w.rebuildLocked()
	return w, nil
}

// Len returns the number of registered callbacks.
func (w *Worker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.callbacks)
}

// Start runs the coordinator loop until Stop is called or ctx is
// canceled, then shuts the executor down and marks the loop exited. It
// blocks its caller for the loop's entire lifetime.
func (w *Worker) Start(ctx context.Context, allowEmpty bool) error {
	w.mu.Lock()
	if len(w.callbacks) == 0 && !allowEmpty {
		w.mu.Unlock()
		return ErrNoCallbacks
	}
	w.dead = make(chan struct{})
	dead := w.dead
	w.mu.Unlock()

	exec := w.execFactory()

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-watchDone:
		}
	}()

	w.run(ctx, exec)

	close(watchDone)
	exec.Shutdown()
	close(dead)
	w.logSummary()
	return nil
}

// Stop requests loop exit and wakes the coordinator. Idempotent; it does
// not wait for the loop to exit (use Wait) and cannot abort an
// in-flight invocation.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopRequested = true
	w.mu.Unlock()
	w.signal()
}

// Wait blocks until the coordinator loop has exited or the timeout
// elapses, reporting whether it exited. A non-positive timeout waits
// indefinitely.
func (w *Worker) Wait(timeout time.Duration) bool {
	w.mu.Lock()
	dead := w.dead
	w.mu.Unlock()

	if timeout <= 0 {
		<-dead
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-dead:
		return true
	case <-timer.C:
		return false
	}
}

// Reset clears the stop and loop-exited flags, zeroes every metrics
// record, and rebuilds the schedule from the current registry using the
// initial strategy. It must not be called while the loop is running.
func (w *Worker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopRequested = false
	w.dead = make(chan struct{})
	for _, m := range w.metrics {
		*m = Metrics{}
	}
	w.rebuildLocked()
}

// Add registers a new callback, validating it eagerly, and wakes the
// coordinator. Safe to call while the loop is running; the registry
// only grows.
func (w *Worker) Add(cb *Callback) error {
	if err := cb.validate(); err != nil {
		return err
	}
	now := w.now()

	w.mu.Lock()
	index := len(w.callbacks)
	w.callbacks = append(w.callbacks, cb)
	w.metrics = append(w.metrics, &Metrics{})
	if cb.Immediate {
		w.immediates = append(w.immediates, index)
	} else {
		w.sched.push(w.strategy.initial(cb, now), index)
	}
	w.mu.Unlock()
	w.signal()
	return nil
}

// MetricsSnapshot returns a copy of every callback's counters, in
// registration order.
func (w *Worker) MetricsSnapshot() []CallbackMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CallbackMetrics, len(w.callbacks))
	for i, cb := range w.callbacks {
		out[i] = CallbackMetrics{Name: cb.Name, Spacing: cb.Spacing, Metrics: *w.metrics[i]}
	}
	return out
}

// rebuildLocked seeds the immediates list and the schedule from the
// registry using the initial strategy. Indices are appended in reverse
// so popping immediates from the end dispatches them in registration
// order.
func (w *Worker) rebuildLocked() {
	w.sched = newSchedule()
	w.immediates = w.immediates[:0]
	var now time.Time
	for index := len(w.callbacks) - 1; index >= 0; index-- {
		cb := w.callbacks[index]
		if cb.Immediate {
			w.immediates = append(w.immediates, index)
			continue
		}
		if now.IsZero() {
			now = w.now()
		}
		w.sched.push(w.strategy.initial(cb, now), index)
	}
}

// run is the coordinator loop. It owns all scheduling decisions and
// never blocks on a dispatched callback's execution, only on the next
// scheduling decision.
func (w *Worker) run(ctx context.Context, exec executor.Executor) {
	for {
		w.mu.Lock()
		if w.stopRequested {
			w.mu.Unlock()
			return
		}

		if n := len(w.immediates); n > 0 {
			index := w.immediates[n-1]
			w.immediates = w.immediates[:n-1]
			cb := w.callbacks[index]
			w.mu.Unlock()
			w.submit(ctx, exec, kindImmediate, index, cb)
			continue
		}

		for w.sched.size() == 0 && !w.stopRequested {
			w.waitLocked(w.maxLoopIdle)
		}
		if w.stopRequested {
			w.mu.Unlock()
			return
		}

		now := w.now()
		due, index := w.sched.pop()
		if delay := due.Sub(now); delay > 0 {
			// Not due yet: put it back untouched and sleep until it is,
			// or until something wakes us.
			w.sched.push(due, index)
			w.waitLocked(min(delay, w.maxLoopIdle))
			w.mu.Unlock()
			continue
		}
		cb := w.callbacks[index]
		w.mu.Unlock()
		w.submit(ctx, exec, kindPeriodic, index, cb)
	}
}

// waitLocked releases the lock, waits up to d for a wake signal, and
// reacquires the lock. Spurious wakeups are fine; callers re-check
// their condition.
func (w *Worker) waitLocked(d time.Duration) {
	w.mu.Unlock()
	timer := time.NewTimer(d)
	select {
	case <-w.wake:
		timer.Stop()
	case <-timer.C:
	}
	w.mu.Lock()
}

// signal wakes the coordinator if it is waiting. The buffered slot
// coalesces signals sent while the coordinator is busy.
func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// submit hands the callback to the executor and attaches the completion
// handler. Called without the lock held: a synchronous executor runs the
// body, and the completion handler, on this goroutine.
func (w *Worker) submit(ctx context.Context, exec executor.Executor, k kind, index int, cb *Callback) {
	submittedAt := w.now()
	w.log.Debug().
		Str("kind", string(k)).
		Str("callback", cb.Name).
		Msg("Submitting periodic callback")
	fut := exec.Submit(func() executor.Result {
		return w.runCallback(ctx, cb)
	})
	fut.OnDone(func(res executor.Result) {
		w.onDone(k, index, cb, submittedAt, res)
	})
}

// runCallback executes the callback body, capturing timestamps and
// converting an error or panic into a formatted trace. Failures never
// propagate to the loop or the executor.
func (w *Worker) runCallback(ctx context.Context, cb *Callback) executor.Result {
	var trace string
	startedAt := w.now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				trace = fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		if err := cb.Run(ctx); err != nil {
			trace = err.Error()
		}
	}()
	finishedAt := w.now()
	return executor.Result{StartedAt: startedAt, FinishedAt: finishedAt, Trace: trace}
}

// onDone is the completion handler: exactly one call per dispatched
// invocation, possibly on an executor worker goroutine. It updates the
// metrics, computes the next due time, re-enters the schedule, and wakes
// the coordinator. Rescheduling strictly after completion is what keeps
// at most one invocation per callback outstanding.
func (w *Worker) onDone(k kind, index int, cb *Callback, submittedAt time.Time, res executor.Result) {
	w.mu.Lock()
	m := w.metrics[index]
	m.Runs++
	if res.Failed() {
		m.Failures++
		w.log.Error().
			Str("kind", string(k)).
			Str("callback", cb.Name).
			Dur("spacing", cb.Spacing).
			Str("trace", res.Trace).
			Msg("Periodic callback failed")
	} else {
		m.Successes++
	}
	m.Elapsed += max(0, res.FinishedAt.Sub(res.StartedAt))
	m.ElapsedWaiting += max(0, res.StartedAt.Sub(submittedAt))
	next := w.strategy.recurring(cb, res.StartedAt, res.FinishedAt, *m)
	w.sched.push(next, index)
	w.mu.Unlock()
	w.signal()
}

// logSummary emits the per-callback diagnostic summary after the loop
// exits, when debug logging is enabled.
func (w *Worker) logSummary() {
	if !w.log.Debug().Enabled() {
		return
	}
	for _, cm := range w.MetricsSnapshot() {
		w.log.Debug().
			Str("callback", cm.Name).
			Dur("spacing", cm.Spacing).
			Int64("runs", cm.Runs).
			Int64("failures", cm.Failures).
			Int64("successes", cm.Successes).
			Dur("avg_elapsed", cm.AverageElapsed()).
			Dur("avg_elapsed_waiting", cm.AverageElapsedWaiting()).
			Msg("Stopped running periodic callback")
	}
}

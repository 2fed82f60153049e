package periodic

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/watzon/metronome/internal/executor"
)

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func noop(ctx context.Context) error { return nil }

func fraction(f float64) *float64 { return &f }

// startWorker runs the loop on a background goroutine and stops it when
// the test finishes.
func startWorker(t *testing.T, w *Worker, allowEmpty bool) {
	t.Helper()
	go func() {
		_ = w.Start(context.Background(), allowEmpty)
	}()
	t.Cleanup(func() {
		w.Stop()
		require.True(t, w.Wait(5*time.Second))
	})
}

func TestNew_ValidatesSpacing(t *testing.T) {
	for _, spacing := range []time.Duration{0, -time.Second, -1} {
		_, err := New([]*Callback{{Name: "bad", Spacing: spacing, Run: noop}}, Config{Logger: nopLogger()})
		require.Error(t, err, "spacing %v", spacing)
	}
	for _, spacing := range []time.Duration{time.Nanosecond, time.Second, time.Hour} {
		w, err := New([]*Callback{{Name: "ok", Spacing: spacing, Run: noop}}, Config{Logger: nopLogger()})
		require.NoError(t, err, "spacing %v", spacing)
		require.Equal(t, 1, w.Len())
	}
}

func TestNew_EnumeratesMissingAttributes(t *testing.T) {
	_, err := New([]*Callback{{}}, Config{Logger: nopLogger()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "name")
	require.Contains(t, err.Error(), "run func")
	require.Contains(t, err.Error(), "spacing")

	_, err = New([]*Callback{{Name: "partial", Spacing: time.Second}}, Config{Logger: nopLogger()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "run func")
	require.NotContains(t, err.Error(), "spacing")
}

func TestNew_UnknownStrategyFails(t *testing.T) {
	_, err := New(nil, Config{Strategy: "fortnightly", Logger: nopLogger()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fortnightly")
}

func TestNew_InvalidJitterFractionFails(t *testing.T) {
	_, err := New(nil, Config{MaxJitterFraction: fraction(2), Logger: nopLogger()})
	require.Error(t, err)
}

func TestNew_ExplicitZeroJitterFraction(t *testing.T) {
	w, err := New([]*Callback{{Name: "a", Spacing: time.Second, Run: noop}}, Config{
		Strategy:          StrategyLastStartedJitter,
		MaxJitterFraction: fraction(0),
		Logger:            nopLogger(),
	})
	require.NoError(t, err)

	// Zero means no jitter, not the default fraction: the jittered
	// strategy must degrade to exactly started + spacing.
	cb := w.callbacks[0]
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		next := w.strategy.recurring(cb, started, started, Metrics{})
		require.Equal(t, started.Add(cb.Spacing), next)
	}
}

func TestWorker_StartEmptyRegistry(t *testing.T) {
	w, err := New(nil, Config{Logger: nopLogger()})
	require.NoError(t, err)

	require.ErrorIs(t, w.Start(context.Background(), false), ErrNoCallbacks)

	// With allowEmpty the loop idles until stopped.
	startWorker(t, w, true)
	w.Stop()
	require.True(t, w.Wait(2*time.Second))
}

func TestWorker_WaitTimesOutBeforeExit(t *testing.T) {
	w, err := New([]*Callback{{Name: "a", Spacing: time.Hour, Run: noop}}, Config{Logger: nopLogger()})
	require.NoError(t, err)
	require.False(t, w.Wait(20*time.Millisecond))
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w, err := New([]*Callback{{Name: "a", Spacing: time.Hour, Run: noop}}, Config{Logger: nopLogger()})
	require.NoError(t, err)

	startWorker(t, w, false)
	w.Stop()
	w.Stop()
	require.True(t, w.Wait(2*time.Second))
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	w, err := New([]*Callback{{Name: "a", Spacing: time.Hour, Run: noop}}, Config{Logger: nopLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = w.Start(ctx, false)
	}()
	cancel()
	require.True(t, w.Wait(2*time.Second))
}

func TestWorker_ImmediateAndPeriodicCadence(t *testing.T) {
	var aRuns, bRuns atomic.Int64

	callbacks := []*Callback{
		{
			Name:      "a",
			Spacing:   100 * time.Millisecond,
			Immediate: true,
			Run: func(ctx context.Context) error {
				aRuns.Add(1)
				return nil
			},
		},
		{
			Name:    "b",
			Spacing: 200 * time.Millisecond,
			Run: func(ctx context.Context) error {
				bRuns.Add(1)
				return nil
			},
		},
	}

	w, err := New(callbacks, Config{Logger: nopLogger()})
	require.NoError(t, err)
	startWorker(t, w, false)

	time.Sleep(250 * time.Millisecond)
	w.Stop()
	require.True(t, w.Wait(2*time.Second))

	// a runs immediately, then again around 100ms and 200ms; b first
	// becomes due around 200ms. Bounds are loose to absorb scheduler
	// latency.
	a := aRuns.Load()
	b := bRuns.Load()
	require.GreaterOrEqual(t, a, int64(2), "a should run immediately and then on its spacing")
	require.LessOrEqual(t, a, int64(4))
	require.GreaterOrEqual(t, b, int64(1), "b should run once after its spacing elapsed")
	require.LessOrEqual(t, b, int64(2))
	require.Greater(t, a, b)
}

func TestWorker_AddWhileRunning(t *testing.T) {
	w, err := New([]*Callback{{Name: "base", Spacing: time.Hour, Run: noop}}, Config{Logger: nopLogger()})
	require.NoError(t, err)
	startWorker(t, w, false)

	const added = 5
	for i := 0; i < added; i++ {
		err := w.Add(&Callback{
			Name:      fmt.Sprintf("added-%d", i),
			Spacing:   time.Hour,
			Immediate: true,
			Run:       noop,
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1+added, w.Len())

	require.Eventually(t, func() bool {
		for _, cm := range w.MetricsSnapshot()[1:] {
			if cm.Runs < 1 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "every added callback should be dispatched at least once")

	// With an hour of spacing nothing should run twice inside the test
	// window: one outstanding entry per callback, never more.
	time.Sleep(50 * time.Millisecond)
	for _, cm := range w.MetricsSnapshot()[1:] {
		require.Equal(t, int64(1), cm.Runs, "callback %s double-scheduled", cm.Name)
	}
}

func TestWorker_AddValidatesEagerly(t *testing.T) {
	w, err := New(nil, Config{Logger: nopLogger()})
	require.NoError(t, err)

	require.Error(t, w.Add(&Callback{Name: "bad", Spacing: -time.Second, Run: noop}))
	require.Error(t, w.Add(&Callback{Name: "no-body", Spacing: time.Second}))
	require.Equal(t, 0, w.Len())
}

func TestWorker_FailingCallbackKeepsCadence(t *testing.T) {
	var failing, succeeding atomic.Int64

	callbacks := []*Callback{
		{
			Name:      "failing",
			Spacing:   50 * time.Millisecond,
			Immediate: true,
			Run: func(ctx context.Context) error {
				failing.Add(1)
				return errors.New("boom")
			},
		},
		{
			Name:      "succeeding",
			Spacing:   50 * time.Millisecond,
			Immediate: true,
			Run: func(ctx context.Context) error {
				succeeding.Add(1)
				return nil
			},
		},
	}

	w, err := New(callbacks, Config{Logger: nopLogger()})
	require.NoError(t, err)
	startWorker(t, w, false)

	time.Sleep(250 * time.Millisecond)
	w.Stop()
	require.True(t, w.Wait(2*time.Second))

	snapshot := w.MetricsSnapshot()
	require.Equal(t, snapshot[0].Runs, snapshot[0].Failures, "every failing run counts as a failure")
	require.Zero(t, snapshot[0].Successes)
	require.Equal(t, snapshot[1].Runs, snapshot[1].Successes)
	require.Zero(t, snapshot[1].Failures)

	// Failure must not pause, back off, or remove the callback: both
	// stay on the same cadence.
	require.GreaterOrEqual(t, failing.Load(), int64(2))
	require.InDelta(t, float64(succeeding.Load()), float64(failing.Load()), 2)
}

func TestWorker_PanicIsIsolated(t *testing.T) {
	var runs atomic.Int64

	w, err := New([]*Callback{{
		Name:      "panics",
		Spacing:   30 * time.Millisecond,
		Immediate: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			panic("unhandled")
		},
	}}, Config{Logger: nopLogger()})
	require.NoError(t, err)
	startWorker(t, w, false)

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "panicking callback keeps getting rescheduled")

	w.Stop()
	require.True(t, w.Wait(2*time.Second))

	snapshot := w.MetricsSnapshot()
	require.Equal(t, snapshot[0].Runs, snapshot[0].Failures)
}

func TestWorker_MetricsRecorded(t *testing.T) {
	w, err := New([]*Callback{{
		Name:      "sleepy",
		Spacing:   time.Hour,
		Immediate: true,
		Run: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	}}, Config{Logger: nopLogger()})
	require.NoError(t, err)
	startWorker(t, w, false)

	require.Eventually(t, func() bool {
		return w.MetricsSnapshot()[0].Runs == 1
	}, 2*time.Second, 5*time.Millisecond)

	cm := w.MetricsSnapshot()[0]
	require.Equal(t, int64(1), cm.Successes)
	require.GreaterOrEqual(t, cm.Elapsed, 15*time.Millisecond)
	require.GreaterOrEqual(t, cm.AverageElapsed(), 15*time.Millisecond)
}

func TestWorker_ResetMatchesFreshConstruction(t *testing.T) {
	callbacks := []*Callback{
		{Name: "a", Spacing: time.Second, Immediate: true, Run: noop},
		{Name: "b", Spacing: 2 * time.Second, Run: noop},
		{Name: "c", Spacing: 3 * time.Second, Run: noop},
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	frozen := func() time.Time { return now }

	build := func() *Worker {
		w, err := New(callbacks, Config{Logger: nopLogger()})
		require.NoError(t, err)
		w.now = frozen
		w.metrics[0].Runs = 7
		w.metrics[0].Failures = 3
		w.stopRequested = true
		w.Reset()
		return w
	}

	used := build()
	fresh, err := New(callbacks, Config{Logger: nopLogger()})
	require.NoError(t, err)
	fresh.now = frozen
	fresh.Reset()

	require.False(t, used.stopRequested)
	for i := range callbacks {
		require.Equal(t, Metrics{}, *used.metrics[i])
	}
	require.Equal(t, fresh.immediates, used.immediates)

	require.Equal(t, fresh.sched.size(), used.sched.size())
	for used.sched.size() > 0 {
		wantDue, wantIndex := fresh.sched.pop()
		gotDue, gotIndex := used.sched.pop()
		require.Equal(t, wantDue, gotDue)
		require.Equal(t, wantIndex, gotIndex)
	}
}

func TestWorker_PoolExecutorBackend(t *testing.T) {
	var runs atomic.Int64

	w, err := New([]*Callback{{
		Name:      "pooled",
		Spacing:   25 * time.Millisecond,
		Immediate: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}}, Config{
		Logger: nopLogger(),
		ExecutorFactory: func() executor.Executor {
			return executor.NewPool(executor.PoolConfig{Workers: 2, Logger: nopLogger()})
		},
	})
	require.NoError(t, err)
	startWorker(t, w, false)

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

package periodic

import "time"

// Metrics holds the monotonic per-callback counters. All fields are
// zeroed only by Worker.Reset.
type Metrics struct {
	// Runs is the number of completed invocations, failed or not.
	Runs int64
	// Elapsed is the cumulative time spent inside the callback body.
	Elapsed time.Duration
	// ElapsedWaiting is the cumulative time between submission to the
	// executor and the body actually starting.
	ElapsedWaiting time.Duration
	// Failures counts runs that ended with an error or panic.
	Failures int64
	// Successes counts runs that completed cleanly.
	Successes int64
}

// AverageElapsed returns the mean body time per run, or zero before the
// first run.
func (m Metrics) AverageElapsed() time.Duration {
	if m.Runs == 0 {
		return 0
	}
	return m.Elapsed / time.Duration(m.Runs)
}

// AverageElapsedWaiting returns the mean queue wait per run, or zero
// before the first run.
func (m Metrics) AverageElapsedWaiting() time.Duration {
	if m.Runs == 0 {
		return 0
	}
	return m.ElapsedWaiting / time.Duration(m.Runs)
}

// CallbackMetrics pairs a callback's identity with a copy of its
// counters, as returned by Worker.MetricsSnapshot.
type CallbackMetrics struct {
	Name    string
	Spacing time.Duration
	Metrics
}

// Package executor provides the execution backends that run periodic
// callback bodies. The coordinator in internal/periodic submits wrapped
// invocations here and observes their completion through a Future; the
// backends supply the only real parallelism in the system.
package executor

import (
	"sync"
	"time"
)

// Result describes one completed invocation. Trace is empty on success;
// on failure it carries the formatted error or panic trace.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Trace      string
}

// Failed reports whether the invocation ended with an error or panic.
func (r Result) Failed() bool {
	return r.Trace != ""
}

// Executor runs submitted invocations. Submit must not block on the
// invocation itself; completion is reported through the returned Future.
type Executor interface {
	// Submit schedules run for execution and returns a handle to its
	// eventual result.
	Submit(run func() Result) *Future

	// Shutdown stops the executor, draining work already submitted.
	// No further Submit calls should be made after Shutdown.
	Shutdown()
}

// Future is the completion handle for a submitted invocation.
type Future struct {
	mu        sync.Mutex
	completed bool
	result    Result
	callbacks []func(Result)
}

// OnDone registers fn to be invoked with the invocation result. If the
// result is already available, fn runs immediately on the caller's
// goroutine; otherwise it runs on the goroutine that completes the
// Future.
func (f *Future) OnDone(fn func(Result)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	result := f.result
	f.mu.Unlock()
	fn(result)
}

// Result returns the invocation result and whether it is available yet.
func (f *Future) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.completed
}

// complete records the result and fires registered callbacks. Completing
// a Future more than once is a programming error and panics.
func (f *Future) complete(result Result) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		panic("executor: future completed twice")
	}
	f.completed = true
	f.result = result
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(result)
	}
}

package executor

// Sync executes every submission inline on the submitting goroutine. It
// is the default backend: deterministic, zero concurrency, useful for
// tests and for workloads where overlap between callbacks is unwanted.
type Sync struct{}

// NewSync creates a synchronous executor.
func NewSync() *Sync {
	return &Sync{}
}

// Submit runs the invocation immediately and returns an already
// completed Future.
func (s *Sync) Submit(run func() Result) *Future {
	fut := &Future{}
	fut.complete(run())
	return fut
}

// Shutdown is a no-op; nothing runs in the background.
func (s *Sync) Shutdown() {}

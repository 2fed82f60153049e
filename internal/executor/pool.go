package executor

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultQueueSize is the intake buffer used when PoolConfig leaves
// QueueSize unset.
const DefaultQueueSize = 256

// PoolConfig holds configuration for Pool.
type PoolConfig struct {
	// Workers is the number of worker goroutines (default: 2).
	Workers int
	// QueueSize is the intake channel capacity (default: 256).
	QueueSize int
	// Logger is the diagnostics sink (default: the global logger).
	Logger *zerolog.Logger
}

type poolTask struct {
	run func() Result
	fut *Future
}

// Pool runs submissions on a fixed set of worker goroutines draining a
// shared intake channel.
type Pool struct {
	tasks chan poolTask
	wg    sync.WaitGroup
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool and starts its workers.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	p := &Pool{
		tasks: make(chan poolTask, cfg.QueueSize),
		log:   logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.log.Debug().Int("workers", cfg.Workers).Msg("Executor pool started")
	return p
}

// Submit queues the invocation for a worker. If the pool has already
// been shut down, the invocation runs inline so submitted work is never
// silently lost.
func (p *Pool) Submit(run func() Result) *Future {
	fut := &Future{}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.Debug().Msg("Pool shut down, running submission inline")
		fut.complete(run())
		return fut
	}
	p.tasks <- poolTask{run: run, fut: fut}
	p.mu.Unlock()
	return fut
}

// Shutdown closes the intake and waits for queued and in-flight
// invocations to finish. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debug().Msg("Executor pool stopped")
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task.fut.complete(task.run())
	}
}

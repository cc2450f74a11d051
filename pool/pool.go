package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool is a bounded, elastic pool of worker goroutines shared by every
// named queue and every parallel submission.
//
// Sizing follows the classic thread-pool model:
//   - below the core size, every Execute starts a new worker for its task
//   - otherwise the task goes to the bounded backlog
//   - if the backlog is full, a worker is added up to the maximum size
//   - beyond that, the saturation policy applies
//
// Workers above the core size exit after staying idle for the keep-alive duration.
// Execute never blocks the caller.
type WorkerPool struct {
	conf    *poolConfig
	backlog chan Task
	quit    chan struct{}

	// ctx is cancelled once Shutdown gives up waiting, releasing rate-limited workers.
	ctx    context.Context
	cancel context.CancelFunc

	stateMu  sync.RWMutex
	shutdown bool

	spawnMu sync.Mutex
	workers int
	wg      sync.WaitGroup

	seq       atomic.Int64
	active    atomic.Int64
	peak      atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Name      string
	Workers   int
	Active    int
	Peak      int
	Queued    int
	Completed int64
	Rejected  int64
	Failed    int64
	Shutdown  bool
}

// New creates a worker pool. No goroutine is started until the first Execute.
//
// Default configuration:
//   - coreWorkers: DefaultCoreWorkers (5)
//   - maxWorkers: DefaultMaxWorkers (32)
//   - keepAlive: DefaultKeepAlive (7s)
//   - backlog: DefaultBacklog (100)
//   - saturation policy: SaturationReject
//
// Example:
//
//	p := pool.New(pool.WithCoreWorkers(2), pool.WithMaxWorkers(8))
//	defer p.Shutdown(5 * time.Second)
//	_ = p.Execute(pool.TaskFunc(func() { fmt.Println("hello") }))
func New(opts ...Option) *WorkerPool {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.maxWorkers < cfg.coreWorkers {
		cfg.maxWorkers = cfg.coreWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		conf:    cfg,
		backlog: make(chan Task, cfg.backlog),
		quit:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Execute schedules task on the pool.
//
// A refused task is reported through the returned error (wrapping ErrRejected) and
// the OnReject hook; its Reject method is not called, the caller owns that decision.
// Tasks evicted from the backlog by SaturationDropOldest were already accepted, so
// they are told through Reject.
func (p *WorkerPool) Execute(task Task) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", ErrRejected)
	}

	evicted, err := p.offer(task)
	if evicted != nil {
		p.refuse(evicted, ErrPoolSaturated)
		Reject(evicted, ErrPoolSaturated)
	}

	if err != nil {
		p.refuse(task, err)
		return err
	}
	return nil
}

func (p *WorkerPool) offer(task Task) (evicted Task, err error) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	if p.shutdown {
		return nil, ErrPoolShutdown
	}

	if p.spawn(task, p.conf.coreWorkers) {
		return nil, nil
	}

	select {
	case p.backlog <- task:
		return nil, nil
	default:
	}

	if p.spawn(task, p.conf.maxWorkers) {
		return nil, nil
	}

	if p.conf.policy == SaturationDropOldest {
		select {
		case evicted = <-p.backlog:
		default:
		}

		select {
		case p.backlog <- task:
			return evicted, nil
		default:
			return evicted, ErrPoolSaturated
		}
	}

	return nil, ErrPoolSaturated
}

// spawn starts a worker running first, provided fewer than limit workers exist.
// Callers hold stateMu for reading, so no worker is added once Shutdown has begun.
func (p *WorkerPool) spawn(first Task, limit int) bool {
	p.spawnMu.Lock()
	defer p.spawnMu.Unlock()

	if p.workers >= limit {
		return false
	}

	p.workers++
	p.wg.Add(1)
	go p.worker(p.seq.Add(1), first)
	return true
}

// retire lets an idle worker exit if the pool runs above its core size.
func (p *WorkerPool) retire() bool {
	p.spawnMu.Lock()
	defer p.spawnMu.Unlock()

	if p.workers <= p.conf.coreWorkers {
		return false
	}
	p.workers--
	return true
}

func (p *WorkerPool) release() {
	p.spawnMu.Lock()
	p.workers--
	p.spawnMu.Unlock()
}

func (p *WorkerPool) refuse(task Task, err error) {
	p.rejected.Add(1)
	if p.conf.onReject != nil {
		p.conf.onReject(task, err)
	}
	p.conf.logger.WithField("pool", p.conf.name).WithError(err).Debug("task refused")
}

// Shutdown stops accepting tasks, lets workers drain the backlog and waits for them.
// Tasks still in the backlog when the wait ends are rejected with ErrPoolShutdown.
//
// Parameters:
//   - timeout: Maximum duration to wait for the workers (0 = wait forever)
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.stateMu.Lock()
	if p.shutdown {
		p.stateMu.Unlock()
		return ErrPoolShutdown
	}
	p.shutdown = true
	p.stateMu.Unlock()

	close(p.quit)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	err := waitUntil(done, timeout)
	p.cancel()

	for {
		select {
		case t := <-p.backlog:
			p.refuse(t, ErrPoolShutdown)
			Reject(t, ErrPoolShutdown)
		default:
			return err
		}
	}
}

// Stats returns counters describing the pool.
func (p *WorkerPool) Stats() Stats {
	p.spawnMu.Lock()
	workers := p.workers
	p.spawnMu.Unlock()

	p.stateMu.RLock()
	shutdown := p.shutdown
	p.stateMu.RUnlock()

	return Stats{
		Name:      p.conf.name,
		Workers:   workers,
		Active:    int(p.active.Load()),
		Peak:      int(p.peak.Load()),
		Queued:    len(p.backlog),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Failed:    p.failed.Load(),
		Shutdown:  shutdown,
	}
}

// Name returns the configured pool name.
func (p *WorkerPool) Name() string { return p.conf.name }

// Capacity is the maximum number of tasks that can run at the same time.
func (p *WorkerPool) Capacity() int { return p.conf.maxWorkers }

package pool

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Reference sizing for the shared pool.
const (
	DefaultCoreWorkers = 5
	DefaultMaxWorkers  = 32
	DefaultKeepAlive   = 7 * time.Second
	DefaultBacklog     = 100
	DefaultName        = "reqpool"
)

// SaturationPolicy decides what Execute does when the backlog is full and the
// pool already runs its maximum number of workers.
type SaturationPolicy int

const (
	// SaturationReject refuses the incoming task with ErrPoolSaturated.
	SaturationReject SaturationPolicy = iota
	// SaturationDropOldest evicts the oldest backlog task (rejecting it with
	// ErrPoolSaturated) to make room for the incoming one.
	SaturationDropOldest
)

func (p SaturationPolicy) String() string {
	switch p {
	case SaturationReject:
		return "reject"
	case SaturationDropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// Option is a functional option for configuring the worker pool.
type Option func(*poolConfig)

type poolConfig struct {
	name        string
	coreWorkers int
	maxWorkers  int
	keepAlive   time.Duration
	backlog     int
	policy      SaturationPolicy
	rateLimiter *rate.Limiter
	affinity    bool
	logger      logrus.FieldLogger

	beforeTaskStart func(worker string)
	onTaskEnd       func(worker string, elapsed time.Duration, failure *ExecutionFailure)
	onReject        func(task Task, err error)
	onFailure       func(failure *ExecutionFailure)
}

func defaultConfig() *poolConfig {
	return &poolConfig{
		name:        DefaultName,
		coreWorkers: DefaultCoreWorkers,
		maxWorkers:  DefaultMaxWorkers,
		keepAlive:   DefaultKeepAlive,
		backlog:     DefaultBacklog,
		policy:      SaturationReject,
		logger:      logrus.StandardLogger(),
	}
}

// WithName sets the pool name used in worker labels and log fields.
func WithName(name string) Option {
	return func(cfg *poolConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithCoreWorkers sets how many workers stay alive while idle.
// Values below 1 are ignored: at least one worker must always be able to drain the backlog.
func WithCoreWorkers(n int) Option {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.coreWorkers = n
		}
	}
}

// WithMaxWorkers sets the upper bound of concurrently running workers.
// It is raised to the core size if configured lower.
func WithMaxWorkers(n int) Option {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.maxWorkers = n
		}
	}
}

// WithKeepAlive sets how long a worker above the core size may stay idle before it exits.
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *poolConfig) {
		if d > 0 {
			cfg.keepAlive = d
		}
	}
}

// WithBacklog sets the capacity of the bounded task backlog.
// Zero means tasks are only accepted when a worker can be spawned for them.
func WithBacklog(size int) Option {
	return func(cfg *poolConfig) {
		if size >= 0 {
			cfg.backlog = size
		}
	}
}

// WithSaturationPolicy selects the behavior when the pool is full.
func WithSaturationPolicy(p SaturationPolicy) Option {
	return func(cfg *poolConfig) {
		cfg.policy = p
	}
}

// WithRateLimit throttles how fast workers start tasks.
// Waiting happens on the worker goroutine, never on the submitter.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithCPUAffinity locks every worker goroutine to an OS thread pinned to a CPU core
// (where the platform supports pinning).
func WithCPUAffinity() Option {
	return func(cfg *poolConfig) {
		cfg.affinity = true
	}
}

// WithLogger sets the logger used for worker lifecycle and failure reporting.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *poolConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithBeforeTaskStart registers a hook called on the worker right before a task runs.
func WithBeforeTaskStart(fn func(worker string)) Option {
	return func(cfg *poolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called after every task, with the failure if it panicked.
func WithOnTaskEnd(fn func(worker string, elapsed time.Duration, failure *ExecutionFailure)) Option {
	return func(cfg *poolConfig) {
		cfg.onTaskEnd = fn
	}
}

// WithOnReject registers a hook called for every task the pool refuses or evicts.
func WithOnReject(fn func(task Task, err error)) Option {
	return func(cfg *poolConfig) {
		cfg.onReject = fn
	}
}

// WithFailureHandler replaces the default failure channel, which logs the failure at error level.
// The handler runs on the worker goroutine that recovered the panic.
func WithFailureHandler(fn func(failure *ExecutionFailure)) Option {
	return func(cfg *poolConfig) {
		cfg.onFailure = fn
	}
}

package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/internal/algorithms"
	"github.com/utkarsh5026/reqpool/pool"
)

// ErrConfiguration reports a misuse of the registry, such as replacing the
// delegate after it has been used.
var ErrConfiguration = errors.New("queue configuration error")

// Option is a functional option for configuring the registry.
type Option func(*registryConfig)

type registryConfig struct {
	delegate pool.Executor
	factory  func() (pool.Executor, error)
	attempts int
	backoff  algorithms.BackoffStrategy
	logger   logrus.FieldLogger
}

func defaultRegistryConfig() *registryConfig {
	return &registryConfig{
		factory: func() (pool.Executor, error) { return pool.New(), nil },
		backoff: algorithms.NewBackoffStrategy(algorithms.BackoffExponential, 10*time.Millisecond, time.Second, 0),
		logger:  logrus.StandardLogger(),
	}
}

// WithDelegate installs the shared executor up front. SetDelegate then fails.
func WithDelegate(e pool.Executor) Option {
	return func(cfg *registryConfig) {
		cfg.delegate = e
	}
}

// WithDefaultPool replaces the factory used to build the shared executor on
// first use when no delegate was configured.
func WithDefaultPool(factory func() (pool.Executor, error)) Option {
	return func(cfg *registryConfig) {
		if factory != nil {
			cfg.factory = factory
		}
	}
}

// WithResubmit makes serial queues retry a task the delegate refused, waiting
// according to strategy between attempts. Zero attempts (the default) rejects
// the task on the first refusal.
func WithResubmit(attempts int, strategy algorithms.BackoffStrategy) Option {
	return func(cfg *registryConfig) {
		if attempts >= 0 {
			cfg.attempts = attempts
		}
		if strategy != nil {
			cfg.backoff = strategy
		}
	}
}

// WithLogger sets the logger used by the registry and its queues.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *registryConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Registry hands out one SerialExecutor per queue name. Queues are created on
// first use and live as long as the registry.
type Registry struct {
	conf *registryConfig

	mu       sync.Mutex
	delegate pool.Executor
	owned    bool
	queues   map[string]*SerialExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Registry{
		conf:     cfg,
		delegate: cfg.delegate,
		queues:   make(map[string]*SerialExecutor),
	}
}

// Executor returns the serial executor for name, creating it on first use.
// The empty name returns the shared delegate for parallel execution.
// The delegate itself is resolved here the first time, building the default
// pool unless SetDelegate installed one earlier.
func (r *Registry) Executor(name string) (pool.Executor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delegate, err := r.resolveLocked()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return delegate, nil
	}

	q, ok := r.queues[name]
	if !ok {
		q = newSerialExecutor(name, delegate, r.conf)
		r.queues[name] = q
		r.conf.logger.WithField("queue", name).Debug("serial queue created")
	}
	return q, nil
}

func (r *Registry) resolveLocked() (pool.Executor, error) {
	if r.delegate != nil {
		return r.delegate, nil
	}

	e, err := r.conf.factory()
	if err != nil {
		return nil, fmt.Errorf("%w: building default pool: %v", ErrConfiguration, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: default pool factory returned nil", ErrConfiguration)
	}

	r.delegate = e
	r.owned = true
	return e, nil
}

// SetDelegate installs the shared executor. It only succeeds once, and only
// before any queue or parallel submission used the delegate.
func (r *Registry) SetDelegate(e pool.Executor) error {
	if e == nil {
		return fmt.Errorf("%w: nil delegate", ErrConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queues) > 0 {
		return fmt.Errorf("%w: delegate must be set before any queue is created", ErrConfiguration)
	}
	if r.delegate != nil {
		return fmt.Errorf("%w: delegate already set or in use", ErrConfiguration)
	}

	r.delegate = e
	return nil
}

// Names returns the names of the queues created so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of queues created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}

// Shutdown stops the shared pool if the registry built it. A delegate supplied
// from outside is left to its owner.
func (r *Registry) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	delegate, owned := r.delegate, r.owned
	r.mu.Unlock()

	if !owned {
		return nil
	}
	if s, ok := delegate.(interface{ Shutdown(time.Duration) error }); ok {
		return s.Shutdown(timeout)
	}
	return nil
}

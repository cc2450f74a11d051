package request

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/callback"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/queue"
)

var (
	// ErrInvalidRequest reports a description that cannot be submitted.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDuplicateRequest reports an id that is already in flight.
	ErrDuplicateRequest = errors.New("request already in flight")
)

// IdleNotifier is told when no request is in flight anymore. The signal is
// advisory: new requests may be submitted at any time.
type IdleNotifier interface {
	Idle()
}

// IdleFunc adapts a function to IdleNotifier.
type IdleFunc func()

func (f IdleFunc) Idle() { f() }

// Option is a functional option for configuring the registry.
type Option func(*registryConfig)

type registryConfig struct {
	queues *queue.Registry
	idle   IdleNotifier
	hooks  Hooks
	logger logrus.FieldLogger
}

// WithQueues sets the queue registry requests are routed through.
// By default the registry creates its own, backed by a default pool.
func WithQueues(q *queue.Registry) Option {
	return func(cfg *registryConfig) {
		cfg.queues = q
	}
}

// WithIdleNotifier sets who is told when the last in-flight request finished.
func WithIdleNotifier(n IdleNotifier) Option {
	return func(cfg *registryConfig) {
		cfg.idle = n
	}
}

// WithHooks installs lifecycle hooks applied to every request.
func WithHooks(h Hooks) Option {
	return func(cfg *registryConfig) {
		cfg.hooks = h
	}
}

// WithLogger sets the logger for request lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *registryConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Registry keeps every in-flight request by id, so it can be cancelled, and
// broadcasts each request's terminal outcome to the registered listeners.
type Registry struct {
	queues    *queue.Registry
	idle      IdleNotifier
	hooks     Hooks
	log       logrus.FieldLogger
	listeners callback.Broadcaster[*Description]

	mu       sync.Mutex
	inFlight map[string]*Tracker
}

// NewRegistry creates a registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := &registryConfig{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.queues == nil {
		cfg.queues = queue.NewRegistry(queue.WithLogger(cfg.logger))
	}

	r := &Registry{
		queues:   cfg.queues,
		idle:     cfg.idle,
		hooks:    cfg.hooks,
		log:      cfg.logger,
		inFlight: make(map[string]*Tracker),
	}
	r.listeners.SetLogger(cfg.logger)
	return r
}

// Submit starts tracking d and hands it to its executor. It never blocks on
// the work itself. Invalid descriptions, duplicate ids and configuration
// errors are returned right away and produce no callback; every accepted
// request gets exactly one terminal outcome. A duplicate id is refused before
// its queue is resolved, so it creates no queue.
func (r *Registry) Submit(d *Description) error {
	if err := validate(d); err != nil {
		return err
	}
	if r.tracking(d.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, d.ID)
	}

	log := r.log.WithFields(logrus.Fields{
		"request_id": d.ID,
		"mode":       d.Mode.String(),
		"queue":      d.QueueName(),
	})
	t := newTracker(d, r.hooks, r.finished, log)

	target, err := t.target(r.queues)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.inFlight[d.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, d.ID)
	}
	r.inFlight[d.ID] = t
	r.mu.Unlock()

	log.Debug("request submitted")
	t.schedule(target)
	return nil
}

func (r *Registry) tracking(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[id]
	return ok
}

func validate(d *Description) error {
	switch {
	case d == nil:
		return fmt.Errorf("%w: nil description", ErrInvalidRequest)
	case d.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidRequest)
	case d.Work == nil:
		return fmt.Errorf("%w: %s has no work", ErrInvalidRequest, d.ID)
	case d.Mode != ModeQueued && d.Mode != ModeParallel:
		return fmt.Errorf("%w: %s has unknown mode %v", ErrInvalidRequest, d.ID, d.Mode)
	}
	return nil
}

// Cancel cancels the in-flight request with the given id. It returns false when
// the id is unknown or the request already started or finished.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	t, ok := r.inFlight[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	return t.Cancel()
}

// finished runs after a tracker's own hooks: broadcast first, then forget the
// request, then tell the idle notifier if nothing is left.
func (r *Registry) finished(t *Tracker, o callback.Outcome) {
	defer r.forget(t, o)
	r.listeners.Broadcast(t.desc, o)
}

func (r *Registry) forget(t *Tracker, o callback.Outcome) {
	r.mu.Lock()
	if r.inFlight[t.desc.ID] == t {
		delete(r.inFlight, t.desc.ID)
	}
	idle := len(r.inFlight) == 0
	r.mu.Unlock()

	t.log.WithField("outcome", o.Kind.String()).Debug("request finished")

	if idle && r.idle != nil {
		r.idle.Idle()
	}
}

// RegisterListener adds l. Registering the same listener twice notifies it twice.
func (r *Registry) RegisterListener(l callback.Listener[*Description]) {
	r.listeners.Register(l)
}

// RemoveListener removes one registration of l.
func (r *Registry) RemoveListener(l callback.Listener[*Description]) {
	r.listeners.Remove(l)
}

// ConfigureDelegatePool replaces the shared pool. It must be called before the
// first request is submitted.
func (r *Registry) ConfigureDelegatePool(e pool.Executor) error {
	return r.queues.SetDelegate(e)
}

// InFlight returns the number of requests that have not reached their outcome yet.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

// IsWorking reports whether any request is in flight.
func (r *Registry) IsWorking() bool {
	return r.InFlight() > 0
}

// Close drops every listener. Requests in flight still finish, unobserved.
func (r *Registry) Close() {
	r.listeners.Clear()
}

package request

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/callback"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/queue"
)

// State is the lifecycle position of a Tracker.
type State int32

const (
	StateCreated State = iota
	StateScheduled
	StateRunning
	StateFinished
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Hooks are called around a request's execution. Nil functions are skipped.
// For every request, AfterFinish is called exactly once.
type Hooks struct {
	BeforeStart func(d *Description)
	OnCancel    func(d *Description)
	AfterFinish func(d *Description, o callback.Outcome)
}

func (h Hooks) beforeStart(d *Description) {
	if h.BeforeStart != nil {
		h.BeforeStart(d)
	}
}

func (h Hooks) onCancel(d *Description) {
	if h.OnCancel != nil {
		h.OnCancel(d)
	}
}

func (h Hooks) afterFinish(d *Description, o callback.Outcome) {
	if h.AfterFinish != nil {
		h.AfterFinish(d, o)
	}
}

// route picks the executor a request is handed to.
type route func(queues *queue.Registry, d *Description) (pool.Executor, error)

func queuedRoute(queues *queue.Registry, d *Description) (pool.Executor, error) {
	return queues.Executor(d.QueueName())
}

func parallelRoute(queues *queue.Registry, _ *Description) (pool.Executor, error) {
	return queues.Executor("")
}

func routeFor(m Mode) route {
	if m == ModeParallel {
		return parallelRoute
	}
	return queuedRoute
}

// Tracker binds a Description to its execution. It is the pool.Task handed to
// the executor and implements pool.Rejecter so a refused request still
// reaches a terminal outcome.
type Tracker struct {
	desc   *Description
	hooks  Hooks
	route  route
	done   func(t *Tracker, o callback.Outcome)
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	state   atomic.Int32
	invoked atomic.Bool
}

func newTracker(d *Description, hooks Hooks, done func(*Tracker, callback.Outcome), log logrus.FieldLogger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		desc:   d,
		hooks:  hooks,
		route:  routeFor(d.Mode),
		done:   done,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Description returns the tracked request.
func (t *Tracker) Description() *Description { return t.desc }

// State returns the current lifecycle state.
func (t *Tracker) State() State { return State(t.state.Load()) }

func (t *Tracker) target(queues *queue.Registry) (pool.Executor, error) {
	return t.route(queues, t.desc)
}

// schedule hands the tracker to e. A tracker cancelled in the meantime is not submitted.
func (t *Tracker) schedule(e pool.Executor) {
	if !t.state.CompareAndSwap(int32(StateCreated), int32(StateScheduled)) {
		return
	}
	if err := e.Execute(t); err != nil {
		t.Reject(err)
	}
}

// Cancel requests cancellation. It returns true only if the request had not
// started yet; its cancel outcome is then delivered before Cancel returns.
// A running request keeps running and reports a cancel outcome when its work returns.
func (t *Tracker) Cancel() bool {
	t.desc.SetCanceled(true)
	t.cancel()

	if !t.transition(StateCanceled, StateCreated, StateScheduled) {
		return false
	}

	t.log.Debug("request cancelled before start")
	t.hooks.beforeStart(t.desc)
	t.hooks.onCancel(t.desc)
	t.finish(callback.Canceled())
	return true
}

// Run executes the request on a pool worker. It does nothing when the request
// was cancelled before its turn.
func (t *Tracker) Run() {
	if !t.state.CompareAndSwap(int32(StateScheduled), int32(StateRunning)) {
		return
	}

	t.hooks.beforeStart(t.desc)

	if t.desc.Canceled() {
		t.state.Store(int32(StateCanceled))
		t.hooks.onCancel(t.desc)
		t.finish(callback.Canceled())
		return
	}

	outcome, failure := t.perform()
	if failure != nil {
		t.state.Store(int32(StateFinished))
		t.finish(callback.Failed(failure))
		// hand the failure to the pool's failure channel as well
		panic(failure)
	}

	if t.desc.Canceled() {
		t.state.Store(int32(StateCanceled))
		t.hooks.onCancel(t.desc)
		t.finish(callback.Canceled())
		return
	}

	if !outcome.Kind.Valid() {
		outcome = callback.Failed(fmt.Errorf("%s: %w: %v", t.desc, callback.ErrUnknownOutcome, outcome.Kind))
	}

	t.state.Store(int32(StateFinished))
	t.finish(outcome)
}

func (t *Tracker) perform() (o callback.Outcome, failure *pool.ExecutionFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = pool.NewExecutionFailure(r)
		}
	}()

	return t.desc.Work(t.ctx, t.desc), nil
}

// Reject is called when the executor refused or dropped the request.
func (t *Tracker) Reject(err error) {
	if !t.transition(StateFinished, StateCreated, StateScheduled) {
		return
	}

	t.log.WithError(err).Warn("request rejected")
	t.finish(callback.Failed(fmt.Errorf("%s: %w", t.desc, err)))
}

func (t *Tracker) transition(to State, from ...State) bool {
	for {
		cur := t.State()
		allowed := false
		for _, f := range from {
			if cur == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
		if t.state.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

func (t *Tracker) finish(o callback.Outcome) {
	if !t.invoked.CompareAndSwap(false, true) {
		return
	}
	t.cancel()

	if t.done != nil {
		defer t.done(t, o)
	}
	t.hooks.afterFinish(t.desc, o)
}

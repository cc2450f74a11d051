package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/internal/algorithms"
	"github.com/utkarsh5026/reqpool/pool"
)

// SerialExecutor runs its tasks one at a time, in submission order, on a
// delegate executor. At most one of its tasks is handed to the delegate at
// any moment.
//
// Invariant: active == nil implies pending is empty.
type SerialExecutor struct {
	name     string
	delegate pool.Executor
	attempts int
	backoff  algorithms.BackoffStrategy
	log      logrus.FieldLogger

	mu      sync.Mutex
	pending []*queued
	active  *queued
}

func newSerialExecutor(name string, delegate pool.Executor, cfg *registryConfig) *SerialExecutor {
	return &SerialExecutor{
		name:     name,
		delegate: delegate,
		attempts: cfg.attempts,
		backoff:  cfg.backoff,
		log:      cfg.logger.WithField("queue", name),
	}
}

// queued is what the delegate actually runs: the caller's task plus the hook
// that hands the turn to the next task once it is done.
type queued struct {
	q        *SerialExecutor
	task     pool.Task
	attempts int
}

func (w *queued) Run() {
	defer w.q.scheduleNext()
	w.task.Run()
}

// Reject is called when the delegate drops a task it had accepted.
func (w *queued) Reject(err error) {
	pool.Reject(w.task, err)
	w.q.scheduleNext()
}

// Execute appends task to the queue and dispatches it right away when the
// queue is idle. It only fails for a nil task: a refusal by the delegate is
// reported to the task through pool.Rejecter once resubmission gives up.
func (s *SerialExecutor) Execute(task pool.Task) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", pool.ErrRejected)
	}

	w := &queued{q: s, task: task}

	s.mu.Lock()
	if s.active != nil {
		s.pending = append(s.pending, w)
		s.mu.Unlock()
		return nil
	}
	s.active = w
	s.mu.Unlock()

	s.dispatch(w)
	return nil
}

// scheduleNext runs when the active task finished (normally, by panic or by
// rejection) and hands the queue's turn to the next pending task.
func (s *SerialExecutor) scheduleNext() {
	if next := s.advance(); next != nil {
		s.dispatch(next)
	}
}

func (s *SerialExecutor) advance() *queued {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		s.active = nil
		return nil
	}

	next := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.active = next
	return next
}

// dispatch hands w to the delegate. w must be the active entry.
func (s *SerialExecutor) dispatch(w *queued) {
	for w != nil {
		err := s.delegate.Execute(w)
		if err == nil {
			return
		}

		if w.attempts < s.attempts {
			delay := s.backoff.NextDelay(w.attempts, err)
			w.attempts++
			s.log.WithError(err).WithFields(logrus.Fields{
				"attempt": w.attempts,
				"delay":   delay,
			}).Debug("delegate refused task, resubmitting")

			retry := w
			time.AfterFunc(delay, func() { s.dispatch(retry) })
			return
		}

		s.log.WithError(err).Warn("delegate refused task")
		pool.Reject(w.task, err)
		w = s.advance()
	}
}

// Name returns the queue name.
func (s *SerialExecutor) Name() string { return s.name }

// Pending returns how many tasks wait behind the active one.
func (s *SerialExecutor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Active reports whether a task of this queue is currently handed to the delegate.
func (s *SerialExecutor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

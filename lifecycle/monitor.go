// Package lifecycle turns the advisory idle signal of a request registry into
// a debounced "nothing left to do" callback for whoever owns the process.
package lifecycle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDelay is how long the monitor waits after an idle signal before
// checking again.
const DefaultDelay = 500 * time.Millisecond

// Option is a functional option for configuring the monitor.
type Option func(*Monitor)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// Monitor implements request.IdleNotifier. Every Idle call (re)arms a timer;
// when it fires and probe reports that work remains, nothing happens,
// otherwise onIdle runs.
type Monitor struct {
	probe  func() bool
	onIdle func()
	delay  time.Duration
	log    logrus.FieldLogger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewMonitor creates a monitor. probe reports whether work is still in
// progress (for example Registry.IsWorking).
func NewMonitor(probe func() bool, onIdle func(), opts ...Option) *Monitor {
	m := &Monitor{
		probe:  probe,
		onIdle: onIdle,
		delay:  DefaultDelay,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Idle arms the debounced check.
func (m *Monitor) Idle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, m.check)
}

func (m *Monitor) check() {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()

	if stopped {
		return
	}
	if m.probe != nil && m.probe() {
		m.log.Debug("idle check: work still in progress")
		return
	}

	m.log.Debug("idle check: no work left")
	if m.onIdle != nil {
		m.onIdle()
	}
}

// Stop disarms the monitor. Later Idle calls are ignored.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

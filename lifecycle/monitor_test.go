package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitor_FiresWhenIdle(t *testing.T) {
	fired := make(chan struct{}, 1)
	m := NewMonitor(func() bool { return false }, func() { fired <- struct{}{} }, WithDelay(10*time.Millisecond))

	m.Idle()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onIdle not called")
	}
}

func TestMonitor_SkipsWhileWorking(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor(func() bool { return true }, func() { calls.Add(1) }, WithDelay(5*time.Millisecond))

	m.Idle()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("onIdle called while work remained")
	}
}

func TestMonitor_Debounce(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor(nil, func() { calls.Add(1) }, WithDelay(40*time.Millisecond))

	for i := 0; i < 5; i++ {
		m.Idle()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("expected one debounced call, got %d", got)
	}
}

func TestMonitor_Stop(t *testing.T) {
	var calls atomic.Int64
	m := NewMonitor(nil, func() { calls.Add(1) }, WithDelay(10*time.Millisecond))

	m.Idle()
	m.Stop()
	m.Idle()
	time.Sleep(50 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("stopped monitor called onIdle %d times", calls.Load())
	}
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(nil, nil, WithDelay(-1), WithLogger(nil))
	if m.delay != DefaultDelay {
		t.Errorf("expected default delay, got %v", m.delay)
	}
	if m.log == nil {
		t.Error("expected a default logger")
	}
}

package pool

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

var (
	// ErrRejected is wrapped by every error returned for a task the pool did not accept.
	ErrRejected = errors.New("task rejected")

	// ErrPoolSaturated reports that the backlog is full and no worker can be added.
	ErrPoolSaturated = fmt.Errorf("%w: pool saturated", ErrRejected)

	// ErrPoolShutdown reports that the pool no longer accepts tasks.
	ErrPoolShutdown = fmt.Errorf("%w: pool shut down", ErrRejected)

	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")
)

// ExecutionFailure describes a panic that escaped a task.
// It is delivered to the pool's failure handler and never swallowed.
type ExecutionFailure struct {
	Value  any
	Stack  []byte
	Worker string
}

func (f *ExecutionFailure) Error() string {
	return fmt.Sprintf("worker panic: %v", f.Value)
}

// Unwrap exposes a panicked error value to errors.Is / errors.As.
func (f *ExecutionFailure) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// NewExecutionFailure wraps a recovered panic value, capturing the current stack.
// A value that already is an *ExecutionFailure is returned unchanged, so a failure
// re-raised by an inner layer keeps its original stack.
func NewExecutionFailure(r any) *ExecutionFailure {
	if f, ok := r.(*ExecutionFailure); ok {
		return f
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &ExecutionFailure{Value: r, Stack: buf[:n]}
}

// waitUntil blocks until either the done channel is closed or the timeout is reached.
// It is used during graceful shutdown to wait for workers to complete their tasks.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	select {
	case <-d:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

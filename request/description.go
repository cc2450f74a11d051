// Package request tracks in-flight requests by id, routes them to a named
// serial queue or straight to the shared pool, and broadcasts exactly one
// terminal outcome per request.
//
// A request is described by a Description and submitted through a Registry:
//
//	r := request.NewRegistry()
//	r.RegisterListener(&callback.Funcs[*request.Description]{
//	    Success: func(d *request.Description, v any) { fmt.Println(d.ID, v) },
//	})
//	_ = r.Submit(request.Queued(request.NewID(), "uploads", work))
//
// Cancellation is cooperative. A request that has not started yet never runs;
// a running one finishes its work and reports a cancel outcome instead of its result.
package request

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/utkarsh5026/reqpool/callback"
)

// DefaultQueue is used by queued requests that do not name a queue.
const DefaultQueue = "default"

// Mode selects how a request is executed.
type Mode int

const (
	// ModeQueued runs the request on its named serial queue (the default).
	ModeQueued Mode = iota
	// ModeParallel runs the request directly on the shared pool.
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeQueued:
		return "queued"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Work is the unit of work behind a request. ctx is cancelled when the request
// is cancelled; observing it is optional.
type Work func(ctx context.Context, d *Description) callback.Outcome

// Description identifies a request and carries its work.
// ID must be unique among requests in flight.
type Description struct {
	ID    string
	Mode  Mode
	Queue string
	Work  Work

	canceled atomic.Bool
}

// Queued describes a request for the named serial queue.
func Queued(id, queue string, w Work) *Description {
	return &Description{ID: id, Mode: ModeQueued, Queue: queue, Work: w}
}

// Parallel describes a request that bypasses the serial queues.
func Parallel(id string, w Work) *Description {
	return &Description{ID: id, Mode: ModeParallel, Work: w}
}

// Canceled reports whether cancellation was requested.
func (d *Description) Canceled() bool { return d.canceled.Load() }

// SetCanceled sets the cancel flag. A request flagged before it starts does not run.
func (d *Description) SetCanceled(v bool) { d.canceled.Store(v) }

// QueueName returns the queue the request runs on: empty for parallel requests,
// DefaultQueue for queued requests without a name.
func (d *Description) QueueName() string {
	if d.Mode == ModeParallel {
		return ""
	}
	if d.Queue == "" {
		return DefaultQueue
	}
	return d.Queue
}

func (d *Description) String() string {
	return fmt.Sprintf("request %s (%s)", d.ID, d.Mode)
}

// NewID returns a new lexically sortable request id.
func NewID() string {
	return ulid.Make().String()
}

package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/reqpool/callback"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/request"
)

type entry struct {
	seq       int
	id        string
	mode      string
	queue     string
	submitted time.Time
	started   time.Time
	finished  time.Time
	outcome   callback.Kind
	detail    string
	cancelled string
}

// trace records what happened to every request. It is a request listener.
type trace struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newTrace() *trace {
	return &trace{entries: make(map[string]*entry)}
}

func (t *trace) submitted(d *request.Description, seq int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[d.ID] = &entry{
		seq:       seq,
		id:        d.ID,
		mode:      d.Mode.String(),
		queue:     d.QueueName(),
		submitted: time.Now(),
	}
}

func (t *trace) update(id string, fn func(e *entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		fn(e)
	}
}

func (t *trace) started(id string) {
	t.update(id, func(e *entry) { e.started = time.Now() })
}

func (t *trace) cancelRequested(id string, preempted bool) {
	t.update(id, func(e *entry) {
		if preempted {
			e.cancelled = "before start"
		} else {
			e.cancelled = "too late"
		}
	})
}

func (t *trace) finish(id string, kind callback.Kind, detail string) {
	t.update(id, func(e *entry) {
		e.finished = time.Now()
		e.outcome = kind
		e.detail = detail
	})
}

func (t *trace) OnSuccess(d *request.Description, v any) {
	t.finish(d.ID, callback.KindSuccess, fmt.Sprint(v))
}

func (t *trace) OnError(d *request.Description, err error) {
	t.finish(d.ID, callback.KindError, err.Error())
}

func (t *trace) OnCancel(d *request.Description) {
	t.finish(d.ID, callback.KindCancel, "")
}

func (t *trace) sorted() []entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (t *trace) render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Request", "Mode", "Queue", "Wait", "Run", "Outcome", "Cancel")

	for _, e := range t.sorted() {
		wait, runFor := "-", "-"
		if !e.started.IsZero() {
			wait = e.started.Sub(e.submitted).Round(time.Microsecond).String()
			runFor = e.finished.Sub(e.started).Round(time.Microsecond).String()
		}
		_ = table.Append(
			fmt.Sprint(e.seq),
			e.id,
			e.mode,
			e.queue,
			wait,
			runFor,
			outcomeLabel(e),
			e.cancelled,
		)
	}

	if err := table.Render(); err != nil {
		_, _ = red.Fprintln(w, "Error rendering trace table")
	}
}

func outcomeLabel(e entry) string {
	switch e.outcome {
	case callback.KindSuccess:
		return green.Sprint("success")
	case callback.KindCancel:
		return yellow.Sprint("cancel")
	default:
		return red.Sprintf("error: %s", e.detail)
	}
}

func printSummary(t *trace, stats pool.Stats, elapsed time.Duration) {
	counts := map[callback.Kind]int{}
	for _, e := range t.sorted() {
		counts[e.outcome]++
	}

	fmt.Println()
	_, _ = bold.Println("Summary")
	fmt.Printf("  elapsed:   %s\n", elapsed.Round(time.Millisecond))
	_, _ = green.Printf("  success:   %d\n", counts[callback.KindSuccess])
	_, _ = red.Printf("  error:     %d\n", counts[callback.KindError])
	_, _ = yellow.Printf("  cancel:    %d\n", counts[callback.KindCancel])
	fmt.Printf("  pool:      %d workers (peak %d active), %d completed, %d rejected, %d failed\n",
		stats.Workers, stats.Peak, stats.Completed, stats.Rejected, stats.Failed)
}

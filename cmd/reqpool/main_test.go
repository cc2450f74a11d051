package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/utkarsh5026/reqpool/callback"
	"github.com/utkarsh5026/reqpool/request"
)

func TestRun_Plain(t *testing.T) {
	color.NoColor = true
	t.Setenv("REQPOOL_IDLE_DELAY", "20ms")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx, options{
		queues:      2,
		requests:    12,
		parallel:    3,
		cancelEvery: 4,
		work:        time.Millisecond,
		plain:       true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	if err := run(context.Background(), options{queues: 0, requests: 1}); err == nil {
		t.Error("expected an error for zero queues")
	}
}

func TestTrace(t *testing.T) {
	color.NoColor = true
	tr := newTrace()

	ok := request.Queued("a", "q", nil)
	bad := request.Parallel("b", nil)
	tr.submitted(ok, 0)
	tr.submitted(bad, 1)
	tr.started("a")
	tr.OnSuccess(ok, 1)
	tr.OnError(bad, errors.New("refused"))
	tr.cancelRequested("b", false)
	tr.OnCancel(request.Parallel("unknown", nil))

	entries := tr.sorted()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].outcome != callback.KindSuccess || entries[1].outcome != callback.KindError {
		t.Errorf("unexpected outcomes %v, %v", entries[0].outcome, entries[1].outcome)
	}
	if entries[1].cancelled != "too late" {
		t.Errorf("unexpected cancel note %q", entries[1].cancelled)
	}

	var buf bytes.Buffer
	tr.render(&buf)
	if out := buf.String(); !strings.Contains(out, "error: refused") || !strings.Contains(out, "success") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

package algorithms

import (
	"sync"
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	b := NewBackoffStrategy(BackoffExponential, 10*time.Millisecond, 100*time.Millisecond, 0)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -1, want: 0},
		{attempt: 0, want: 10 * time.Millisecond},
		{attempt: 1, want: 20 * time.Millisecond},
		{attempt: 3, want: 80 * time.Millisecond},
		{attempt: 4, want: 100 * time.Millisecond},
		{attempt: 200, want: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := b.NextDelay(tt.attempt, nil); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJitteredBackoff_StaysWithinBounds(t *testing.T) {
	b := NewBackoffStrategy(BackoffJittered, 100*time.Millisecond, time.Second, 0.2)

	for i := 0; i < 200; i++ {
		d := b.NextDelay(1, nil)
		if d < 160*time.Millisecond || d > 240*time.Millisecond {
			t.Fatalf("delay %v outside [160ms, 240ms]", d)
		}
	}
}

func TestJitteredBackoff_JitterFactorClamped(t *testing.T) {
	b := NewBackoffStrategy(BackoffJittered, 100*time.Millisecond, time.Second, 5).(*jitteredBackoff)
	if b.jitterFactor != 1 {
		t.Errorf("expected jitter factor clamped to 1, got %v", b.jitterFactor)
	}
}

func TestDecorrelatedBackoff_NextDelay(t *testing.T) {
	b := NewBackoffStrategy(BackoffDecorrelated, 100*time.Millisecond, 2*time.Second, 0)

	if got := b.NextDelay(0, nil); got != 100*time.Millisecond {
		t.Fatalf("first delay = %v, want 100ms", got)
	}

	prev := 100 * time.Millisecond
	for attempt := 1; attempt < 20; attempt++ {
		d := b.NextDelay(attempt, nil)
		upper := min(prev*3, 2*time.Second)
		if d < 100*time.Millisecond || d > upper {
			t.Fatalf("attempt %d: delay %v outside [100ms, %v]", attempt, d, upper)
		}
		prev = d
	}
}

func TestDecorrelatedBackoff_ThreadSafety(t *testing.T) {
	b := NewBackoffStrategy(BackoffDecorrelated, time.Millisecond, 50*time.Millisecond, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 100; attempt++ {
				_ = b.NextDelay(attempt, nil)
			}
		}()
	}
	wg.Wait()
}

func TestNewBackoffStrategy_Defaults(t *testing.T) {
	b := NewBackoffStrategy(BackoffExponential, 0, 0, 0)
	if got := b.NextDelay(0, nil); got != 10*time.Millisecond {
		t.Errorf("default initial delay = %v, want 10ms", got)
	}
	if got := b.NextDelay(30, nil); got != time.Second {
		t.Errorf("default max delay = %v, want 1s", got)
	}
}

func TestParseBackoffType(t *testing.T) {
	tests := []struct {
		in      string
		want    BackoffType
		wantErr bool
	}{
		{in: "", want: BackoffExponential},
		{in: "Exponential", want: BackoffExponential},
		{in: "jitter", want: BackoffJittered},
		{in: " decorrelated ", want: BackoffDecorrelated},
		{in: "linear", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackoffType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBackoffType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBackoffType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

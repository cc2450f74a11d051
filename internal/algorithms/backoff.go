// Package algorithms holds the delay strategies used when a serial queue has to
// resubmit a task that the shared pool refused.
package algorithms

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// maxShift prevents overflow in the exponential calculation.
const maxShift = 62

// BackoffType defines the resubmission backoff algorithm to use.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every attempt (default).
	BackoffExponential BackoffType = iota
	// BackoffJittered spreads exponential delays by ±jitterFactor.
	BackoffJittered
	// BackoffDecorrelated picks each delay between the initial delay and 3x the previous one.
	BackoffDecorrelated
)

func (b BackoffType) String() string {
	switch b {
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	default:
		return "exponential"
	}
}

// ParseBackoffType maps a config name onto a BackoffType. An empty name selects exponential.
func ParseBackoffType(name string) (BackoffType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exponential":
		return BackoffExponential, nil
	case "jittered", "jitter":
		return BackoffJittered, nil
	case "decorrelated":
		return BackoffDecorrelated, nil
	default:
		return BackoffExponential, fmt.Errorf("unknown backoff type %q", name)
	}
}

// BackoffStrategy computes the wait before the next resubmission attempt.
type BackoffStrategy interface {
	// NextDelay returns the delay before attempt (0-indexed: 0 = first resubmission).
	NextDelay(attempt int, lastErr error) time.Duration
}

// NewBackoffStrategy creates a backoff strategy. Non-positive delays fall back to
// 10ms initial and 1s max; maxDelay is raised to initialDelay when smaller.
func NewBackoffStrategy(kind BackoffType, initialDelay, maxDelay time.Duration, jitterFactor float64) BackoffStrategy {
	if initialDelay <= 0 {
		initialDelay = 10 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	maxDelay = max(maxDelay, initialDelay)

	switch kind {
	case BackoffJittered:
		return &jitteredBackoff{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			jitterFactor: clamp(jitterFactor, 0, 1),
			rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
		}
	case BackoffDecorrelated:
		return &decorrelatedBackoff{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
		}
	default:
		return exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}
	}
}

// exponentialBackoff: initialDelay * 2^attempt, capped at maxDelay.
type exponentialBackoff struct {
	initialDelay, maxDelay time.Duration
}

func (e exponentialBackoff) NextDelay(attempt int, _ error) time.Duration {
	return exponentialDelay(attempt, e.initialDelay, e.maxDelay)
}

// jitteredBackoff multiplies the exponential delay by a random factor in [1-j, 1+j].
type jitteredBackoff struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jitteredBackoff) NextDelay(attempt int, _ error) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := exponentialDelay(attempt, j.initialDelay, j.maxDelay)

	j.mu.Lock()
	factor := 1.0 + (j.rng.Float64()*2-1)*j.jitterFactor
	j.mu.Unlock()

	return clamp(time.Duration(float64(base)*factor), 0, j.maxDelay)
}

// decorrelatedBackoff follows sleep = min(max, random(initial, prev*3)).
// The first attempt always waits exactly initialDelay and resets the sequence.
type decorrelatedBackoff struct {
	initialDelay, maxDelay time.Duration

	mu   sync.Mutex
	prev time.Duration
	rng  *rand.Rand
}

func (d *decorrelatedBackoff) NextDelay(attempt int, _ error) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if attempt <= 0 || d.prev == 0 {
		d.prev = d.initialDelay
		return d.initialDelay
	}

	upper := min(d.prev*3, d.maxDelay)
	span := upper - d.initialDelay
	if span <= 0 {
		d.prev = d.initialDelay
		return d.initialDelay
	}

	d.prev = d.initialDelay + time.Duration(d.rng.Int63n(int64(span)))
	return d.prev
}

func exponentialDelay(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(attempt)) * initialDelay
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}

func clamp[T ~int64 | ~float64](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/utkarsh5026/reqpool/pool"
)

func TestRegistry_Executor(t *testing.T) {
	delegate := &refusingExecutor{}
	r := NewRegistry(WithDelegate(delegate))

	t.Run("same name returns the same queue", func(t *testing.T) {
		a1, err := r.Executor("a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a2, _ := r.Executor("a")
		if a1 != a2 {
			t.Error("expected one executor per name")
		}
		b, _ := r.Executor("b")
		if a1 == b {
			t.Error("different names must get different executors")
		}
	})

	t.Run("empty name returns the delegate", func(t *testing.T) {
		e, err := r.Executor("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e != pool.Executor(delegate) {
			t.Error("expected the delegate for the empty name")
		}
	})

	t.Run("names and len", func(t *testing.T) {
		if r.Len() != 2 {
			t.Errorf("expected 2 queues, got %d", r.Len())
		}
		names := r.Names()
		if len(names) != 2 || names[0] != "a" || names[1] != "b" {
			t.Errorf("unexpected names %v", names)
		}
	})
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	var built atomic.Int64
	r := NewRegistry(WithDefaultPool(func() (pool.Executor, error) {
		built.Add(1)
		return &refusingExecutor{}, nil
	}))

	const n = 50
	results := make([]pool.Executor, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Executor("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent first use created more than one executor")
		}
	}
	if built.Load() != 1 {
		t.Errorf("expected the default pool to be built once, got %d", built.Load())
	}
}

func TestRegistry_SetDelegate(t *testing.T) {
	t.Run("honored before first use", func(t *testing.T) {
		r := NewRegistry(WithDefaultPool(func() (pool.Executor, error) {
			t.Fatal("default pool must not be built")
			return nil, nil
		}))
		custom := &refusingExecutor{}

		if err := r.SetDelegate(custom); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		e, _ := r.Executor("")
		if e != pool.Executor(custom) {
			t.Error("expected the custom delegate")
		}
	})

	tests := []struct {
		name  string
		setup func(r *Registry)
		arg   pool.Executor
	}{
		{
			name:  "after a queue exists",
			setup: func(r *Registry) { _, _ = r.Executor("q") },
			arg:   &refusingExecutor{},
		},
		{
			name:  "after parallel use",
			setup: func(r *Registry) { _, _ = r.Executor("") },
			arg:   &refusingExecutor{},
		},
		{
			name:  "second call",
			setup: func(r *Registry) { _ = r.SetDelegate(&refusingExecutor{}) },
			arg:   &refusingExecutor{},
		},
		{
			name:  "nil delegate",
			setup: func(*Registry) {},
			arg:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(WithDefaultPool(func() (pool.Executor, error) {
				return &refusingExecutor{}, nil
			}))
			tt.setup(r)

			if err := r.SetDelegate(tt.arg); !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestRegistry_FactoryFailure(t *testing.T) {
	boom := errors.New("no pool today")
	r := NewRegistry(WithDefaultPool(func() (pool.Executor, error) { return nil, boom }))

	if _, err := r.Executor("q"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if r.Len() != 0 {
		t.Error("no queue should be created when the delegate cannot be built")
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	t.Run("owned pool", func(t *testing.T) {
		var p *pool.WorkerPool
		r := NewRegistry(WithDefaultPool(func() (pool.Executor, error) {
			p = pool.New()
			return p, nil
		}))
		_, _ = r.Executor("")

		if err := r.Shutdown(time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !p.Stats().Shutdown {
			t.Error("owned pool should be shut down")
		}
	})

	t.Run("external pool untouched", func(t *testing.T) {
		p := pool.New()
		defer p.Shutdown(time.Second)
		r := NewRegistry(WithDelegate(p))

		if err := r.Shutdown(time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Stats().Shutdown {
			t.Error("external pool must be left to its owner")
		}
	})
}

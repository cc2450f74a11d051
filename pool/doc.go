// Package pool provides the bounded, elastic worker pool shared by every named
// queue and every parallel request.
//
// The primary type is WorkerPool, which runs Task values on a set of worker
// goroutines sized like a classic thread pool: a core of workers that stay
// alive, a bounded backlog, and extra workers up to a maximum that exit after
// a keep-alive period without work.
//
// # Basic Usage
//
//	p := pool.New(
//	    pool.WithCoreWorkers(5),
//	    pool.WithMaxWorkers(32),
//	    pool.WithKeepAlive(7*time.Second),
//	)
//	defer p.Shutdown(5 * time.Second)
//
//	if err := p.Execute(pool.TaskFunc(func() { fmt.Println("hello") })); err != nil {
//	    // errors.Is(err, pool.ErrRejected)
//	}
//
// # Saturation
//
// Execute never blocks. When the backlog is full and the maximum number of
// workers is running, the saturation policy decides:
//
//   - SaturationReject: the new task is refused with ErrPoolSaturated (default)
//   - SaturationDropOldest: the oldest queued task is evicted and told via Rejecter
//
// # Failures
//
// A panic inside a task is recovered on the worker, wrapped in an
// ExecutionFailure carrying the value and stack, and handed to the failure
// handler (WithFailureHandler). Without a handler the failure is logged at
// error level. The worker keeps serving the backlog.
//
// # Configuration Options
//
//   - WithCoreWorkers(n), WithMaxWorkers(n), WithKeepAlive(d), WithBacklog(n)
//   - WithSaturationPolicy(p)
//   - WithRateLimit(tasksPerSecond, burst): throttle task starts on the workers
//   - WithCPUAffinity(): pin worker goroutines to CPU cores
//   - WithBeforeTaskStart, WithOnTaskEnd, WithOnReject, WithFailureHandler: hooks
package pool

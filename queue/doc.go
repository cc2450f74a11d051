// Package queue maps queue names to serial executors layered on one shared
// delegate executor.
//
// Tasks submitted to the same named queue run one at a time in submission
// order, while tasks of different queues run concurrently on the delegate.
// The empty name addresses the delegate itself (parallel execution).
package queue

// Package metrics exports request outcomes and shared pool activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/request"
)

// Collector holds the Prometheus collectors. It is a request listener and
// provides pool hooks through PoolOptions.
type Collector struct {
	namespace string
	reg       prometheus.Registerer

	RequestsStarted prometheus.Counter
	Outcomes        *prometheus.CounterVec
	TasksRejected   prometheus.Counter
	TaskFailures    prometheus.Counter
	ActiveWorkers   prometheus.Gauge
	TaskDuration    prometheus.Histogram
}

// NewCollector creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		namespace: namespace,
		reg:       reg,
		RequestsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_started_total",
			Help:      "Total number of requests whose work started.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Terminal request outcomes by kind and mode.",
		}, []string{"kind", "mode"}),
		TasksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks the shared pool refused or evicted.",
		}),
		TaskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_failures_total",
			Help:      "Total number of tasks that panicked on a worker.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "active_workers",
			Help:      "Number of workers currently running a task.",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_duration_seconds",
			Help:      "Task execution time on pool workers.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, col := range []prometheus.Collector{
		c.RequestsStarted, c.Outcomes, c.TasksRejected, c.TaskFailures, c.ActiveWorkers, c.TaskDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WatchInFlight registers a gauge reading the number of in-flight requests from fn.
func (c *Collector) WatchInFlight(fn func() int) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "requests_in_flight",
		Help:      "Requests submitted but not finished yet.",
	}, func() float64 { return float64(fn()) }))
}

// Hooks returns request hooks counting started requests.
func (c *Collector) Hooks() request.Hooks {
	return request.Hooks{
		BeforeStart: func(*request.Description) { c.RequestsStarted.Inc() },
	}
}

// PoolOptions returns pool hooks feeding the worker metrics.
func (c *Collector) PoolOptions() []pool.Option {
	return []pool.Option{
		pool.WithBeforeTaskStart(func(string) { c.ActiveWorkers.Inc() }),
		pool.WithOnTaskEnd(func(_ string, elapsed time.Duration, failure *pool.ExecutionFailure) {
			c.ActiveWorkers.Dec()
			c.TaskDuration.Observe(elapsed.Seconds())
			if failure != nil {
				c.TaskFailures.Inc()
			}
		}),
		pool.WithOnReject(func(pool.Task, error) { c.TasksRejected.Inc() }),
	}
}

func (c *Collector) OnSuccess(d *request.Description, _ any) {
	c.Outcomes.WithLabelValues("success", d.Mode.String()).Inc()
}

func (c *Collector) OnError(d *request.Description, _ error) {
	c.Outcomes.WithLabelValues("error", d.Mode.String()).Inc()
}

func (c *Collector) OnCancel(d *request.Description) {
	c.Outcomes.WithLabelValues("cancel", d.Mode.String()).Inc()
}

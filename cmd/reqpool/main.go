// Command reqpool runs a synthetic workload through the request registry:
// requests spread over named serial queues and the parallel path, some of them
// cancelled, and prints a per-request trace once the registry reports idle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/reqpool/callback"
	"github.com/utkarsh5026/reqpool/config"
	"github.com/utkarsh5026/reqpool/lifecycle"
	"github.com/utkarsh5026/reqpool/metrics"
	"github.com/utkarsh5026/reqpool/pool"
	"github.com/utkarsh5026/reqpool/queue"
	"github.com/utkarsh5026/reqpool/request"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

type options struct {
	configPath  string
	queues      int
	requests    int
	parallel    int
	cancelEvery int
	work        time.Duration
	metricsAddr string
	plain       bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML or JSON config file")
	flag.IntVar(&o.queues, "queues", 3, "number of named serial queues (one submitter per queue)")
	flag.IntVar(&o.requests, "requests", 60, "total number of requests")
	flag.IntVar(&o.parallel, "parallel", 4, "run every Nth request on the parallel path (0 = never)")
	flag.IntVar(&o.cancelEvery, "cancel-every", 7, "cancel every Nth request right after submitting it (0 = never)")
	flag.DurationVar(&o.work, "work", 20*time.Millisecond, "simulated work per request")
	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flag.BoolVar(&o.plain, "plain", false, "no colors and no progress bar")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	if o.plain {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		_, _ = red.Fprintf(os.Stderr, "reqpool: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.queues < 1 || o.requests < 1 {
		return errors.New("-queues and -requests must be at least 1")
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector, err := metrics.NewCollector(cfg.MetricsNamespace, reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	if o.metricsAddr != "" {
		srv := serveMetrics(o.metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	shared := pool.New(append(cfg.PoolOptions(logger), collector.PoolOptions()...)...)
	defer func() {
		if err := shared.Shutdown(5 * time.Second); err != nil {
			logger.WithError(err).Warn("pool shutdown")
		}
	}()
	queues := queue.NewRegistry(append(cfg.QueueOptions(logger), queue.WithDelegate(shared))...)

	idle := make(chan struct{})
	var idleOnce sync.Once
	var submitting atomic.Bool
	submitting.Store(true)
	var reqs *request.Registry
	monitor := lifecycle.NewMonitor(
		func() bool { return submitting.Load() || reqs.IsWorking() },
		func() { idleOnce.Do(func() { close(idle) }) },
		lifecycle.WithDelay(cfg.IdleDelayDuration()),
		lifecycle.WithLogger(logger),
	)
	defer monitor.Stop()

	reqs = request.NewRegistry(
		request.WithQueues(queues),
		request.WithIdleNotifier(monitor),
		request.WithHooks(collector.Hooks()),
		request.WithLogger(logger),
	)
	defer reqs.Close()
	if err := collector.WatchInFlight(reqs.InFlight); err != nil {
		return fmt.Errorf("registering in-flight gauge: %w", err)
	}

	tr := newTrace()
	reqs.RegisterListener(collector)
	reqs.RegisterListener(tr)

	var bar *progressbar.ProgressBar
	if !o.plain {
		bar = progressbar.NewOptions(o.requests,
			progressbar.OptionSetDescription("Running requests"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		reqs.RegisterListener(&callback.Funcs[*request.Description]{
			Success: func(*request.Description, any) { _ = bar.Add(1) },
			Error:   func(*request.Description, error) { _ = bar.Add(1) },
			Cancel:  func(*request.Description) { _ = bar.Add(1) },
		})
	}

	_, _ = bold.Printf("Submitting %d requests over %d queues (pool %d-%d workers)\n\n",
		o.requests, o.queues, cfg.Pool.CoreWorkers, cfg.Pool.MaxWorkers)

	start := time.Now()
	if err := submitAll(ctx, reqs, tr, o); err != nil {
		return err
	}
	submitting.Store(false)
	// the registry may have drained while submitters were still running
	monitor.Idle()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	elapsed := time.Since(start)

	if bar != nil {
		_ = bar.Finish()
	}

	tr.render(os.Stdout)
	printSummary(tr, shared.Stats(), elapsed)
	return nil
}

// submitAll runs one submitter per queue. Request i goes to queue i % queues.
func submitAll(ctx context.Context, reqs *request.Registry, tr *trace, o options) error {
	g, ctx := errgroup.WithContext(ctx)

	for q := 0; q < o.queues; q++ {
		q := q
		g.Go(func() error {
			name := fmt.Sprintf("queue-%d", q)
			for i := q; i < o.requests; i += o.queues {
				if err := ctx.Err(); err != nil {
					return err
				}

				d := request.Queued(request.NewID(), name, simulate(o.work, tr))
				if o.parallel > 0 && i%o.parallel == 0 {
					d.Mode = request.ModeParallel
				}
				tr.submitted(d, i)

				if err := reqs.Submit(d); err != nil {
					return fmt.Errorf("submit %s: %w", d.ID, err)
				}
				if o.cancelEvery > 0 && i%o.cancelEvery == o.cancelEvery-1 {
					tr.cancelRequested(d.ID, reqs.Cancel(d.ID))
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// simulate sleeps for d unless the request is cancelled first.
func simulate(d time.Duration, tr *trace) request.Work {
	return func(ctx context.Context, desc *request.Description) callback.Outcome {
		tr.started(desc.ID)

		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return callback.Succeeded(d)
		case <-ctx.Done():
			return callback.Failed(ctx.Err())
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", addr).Info("serving metrics")
	return srv
}

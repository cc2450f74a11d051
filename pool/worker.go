package pool

import (
	"context"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/utkarsh5026/reqpool/internal/cpu"
)

// worker is the goroutine body of a pool worker. It runs first (if any), then keeps
// taking tasks from the backlog until it retires or the pool shuts down.
// Workers are labelled for pprof so goroutine dumps show which pool they serve.
func (p *WorkerPool) worker(id int64, first Task) {
	defer p.wg.Done()

	name := p.conf.name + "-worker-" + strconv.FormatInt(id, 10)
	labels := pprof.Labels("pool", p.conf.name, "worker", name)
	pprof.Do(p.ctx, labels, func(context.Context) {
		p.loop(int(id), name, first)
	})
}

func (p *WorkerPool) loop(id int, name string, first Task) {
	if p.conf.affinity {
		defer cpu.SetupWorkerAffinity(id)()
	}

	log := p.conf.logger.WithField("worker", name)
	log.Debug("worker started")

	if first != nil {
		p.run(name, first)
	}

	idle := time.NewTimer(p.conf.keepAlive)
	defer idle.Stop()

	for {
		select {
		case t := <-p.backlog:
			p.run(name, t)

		case <-idle.C:
			if p.retire() {
				log.Debug("worker retired after keep-alive")
				return
			}

		case <-p.quit:
			p.drain(name)
			p.release()
			log.Debug("worker stopped")
			return
		}
		idle.Reset(p.conf.keepAlive)
	}
}

// drain runs whatever is left in the backlog during shutdown.
func (p *WorkerPool) drain(name string) {
	for {
		select {
		case t := <-p.backlog:
			p.run(name, t)
		default:
			return
		}
	}
}

// run executes one task with rate limiting, hooks and panic recovery.
func (p *WorkerPool) run(name string, t Task) {
	if p.conf.rateLimiter != nil {
		// Only fails once Shutdown cancelled the pool context; the task still runs.
		_ = p.conf.rateLimiter.Wait(p.ctx)
	}

	if p.conf.beforeTaskStart != nil {
		p.conf.beforeTaskStart(name)
	}

	current := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if current <= peak || p.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	start := time.Now()
	failure := p.runWithRecovery(name, t)
	elapsed := time.Since(start)
	p.active.Add(-1)

	if failure != nil {
		p.failed.Add(1)
		p.fail(failure)
	} else {
		p.completed.Add(1)
	}

	if p.conf.onTaskEnd != nil {
		p.conf.onTaskEnd(name, elapsed, failure)
	}
}

// runWithRecovery converts a panic into an ExecutionFailure so a single task
// cannot take its worker down.
func (p *WorkerPool) runWithRecovery(name string, t Task) (failure *ExecutionFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = NewExecutionFailure(r)
			if failure.Worker == "" {
				failure.Worker = name
			}
		}
	}()

	t.Run()
	return nil
}

func (p *WorkerPool) fail(f *ExecutionFailure) {
	if p.conf.onFailure != nil {
		p.conf.onFailure(f)
		return
	}

	p.conf.logger.WithFields(logrus.Fields{
		"pool":   p.conf.name,
		"worker": f.Worker,
		"stack":  string(f.Stack),
	}).Errorf("task failed: %v", f.Value)
}

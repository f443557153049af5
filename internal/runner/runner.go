// Package runner executes queued check-in tasks when their window opens and
// re-queues the successor of every task that was not the last leg.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/metrics"
	"github.com/example/checkin-scheduler/internal/tasks"
)

// CheckInExecutor is satisfied by *checkin.Executor.
type CheckInExecutor interface {
	CheckIn(ctx context.Context, task checkin.Task) (checkin.Result, error)
}

// Runner polls the queue for due tasks. Each claimed task runs in its own
// goroutine; lineages never share state.
type Runner struct {
	Queue     tasks.Queue
	Executor  CheckInExecutor
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Interval  time.Duration
	BatchSize int
	// AttemptTimeout bounds one check-in including its notification.
	AttemptTimeout time.Duration
	// StaleAfter returns running entries untouched for this long to the
	// queue. Zero disables it.
	StaleAfter time.Duration
	Now        func() time.Time

	wg sync.WaitGroup
}

// Run ticks until ctx is done, then waits for in-flight attempts.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	r.logger().Info("runner started", slog.Duration("interval", interval))

	// kick immediately
	r.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick claims due tasks and starts them. It returns the number claimed.
func (r *Runner) Tick(ctx context.Context) int {
	batch := r.BatchSize
	if batch <= 0 {
		batch = 25
	}
	now := r.now()
	if r.StaleAfter > 0 {
		n, err := r.Queue.Requeue(ctx, now.Add(-r.StaleAfter))
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger().Error("requeue stale tasks failed", slog.String("error", err.Error()))
		}
		if n > 0 {
			r.logger().Warn("requeued stale tasks", slog.Int("count", n))
		}
	}

	entries, err := r.Queue.Claim(ctx, now, batch)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger().Error("claim due tasks failed", slog.String("error", err.Error()))
	}
	r.metrics().RecordClaimed(len(entries))

	for _, e := range entries {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			// a claimed attempt finishes even when shutdown begins
			r.process(context.WithoutCancel(ctx), e)
		}()
	}
	return len(entries)
}

// Wait blocks until every started attempt has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) process(ctx context.Context, e tasks.Entry) {
	if r.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.AttemptTimeout)
		defer cancel()
	}
	log := r.logger().With(
		slog.String("task_id", e.ID),
		slog.String("confirmation_number", e.Task.ConfirmationNumber),
		slog.Int("attempt", e.Attempts),
	)

	result, err := r.Executor.CheckIn(ctx, e.Task)
	r.metrics().RecordCheckIn(result.Outcome.String())

	status := tasks.StatusFor(result.Outcome)
	detail := result.Reason
	if err != nil {
		status, detail = tasks.StatusFailed, err.Error()
	}

	if result.Outcome == checkin.OutcomeContinue && err == nil {
		next, ok, qerr := tasks.EnqueueNext(ctx, r.Queue, *result.Successor, e.ID)
		switch {
		case qerr != nil:
			log.Error("enqueue successor failed", slog.String("error", qerr.Error()))
			status, detail = tasks.StatusFailed, "enqueue successor: "+qerr.Error()
		case !ok:
			status = tasks.StatusCompleted
		default:
			log.Info("successor queued", slog.String("successor_id", next.ID), slog.Time("run_at", next.RunAt))
		}
	}

	if ferr := r.Queue.Finish(ctx, e.ID, status, detail); ferr != nil {
		log.Error("finish task failed", slog.String("status", string(status)), slog.String("error", ferr.Error()))
		return
	}
	log.Info("task finished", slog.String("status", string(status)))
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) metrics() metrics.Recorder {
	if r.Metrics != nil {
		return r.Metrics
	}
	return metrics.Nop{}
}

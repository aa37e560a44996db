package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/jobs/runtime"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter is how long a running job may go without a heartbeat before another
	// worker reclaims it.
	StaleAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	return o
}

// Worker is a pool of loops that claim job_run rows and hand them to the Executor.
type Worker struct {
	log  *logger.Logger
	repo repos.JobRunRepo
	exec *runtime.Executor
	opts Options
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, exec *runtime.Executor, opts Options) *Worker {
	return &Worker{
		log:  baseLog.With("component", "JobWorker"),
		repo: repo,
		exec: exec,
		opts: opts.withDefaults(),
	}
}

// Start runs the pool in the background until ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("Job worker pool exited", "error", err)
		}
	}()
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool",
		"concurrency", w.opts.Concurrency,
		"job_types", w.exec.Registry().Types(),
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	g.Go(func() error {
		w.sweepLoop(gctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything runnable before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("Job claim/execute failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.exec.Registry().Types(), w.opts.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	stop := w.heartbeat(ctx, job)
	defer stop()
	return true, w.exec.Execute(ctx, job)
}

func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	done := make(chan struct{})
	interval := w.opts.StaleAfter / 3
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
					w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (w *Worker) sweepLoop(ctx context.Context) {
	t := time.NewTicker(w.opts.StaleAfter)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep dead-letters running jobs that lost their worker with no attempts left.
func (w *Worker) Sweep(ctx context.Context) int {
	dead, err := w.repo.SweepStale(dbctx.Context{Ctx: ctx}, w.opts.StaleAfter)
	if err != nil {
		w.log.Warn("Stale job sweep failed", "error", err)
		return 0
	}
	for _, job := range dead {
		w.exec.DeadLetter(ctx, job, errHeartbeatLost)
	}
	return len(dead)
}

type heartbeatLostError struct{}

func (heartbeatLostError) Error() string { return "worker heartbeat lost" }

var errHeartbeatLost error = heartbeatLostError{}

package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	jobrt "github.com/yungbote/negotiator-backend/internal/jobs/runtime"
	"github.com/yungbote/negotiator-backend/internal/platform/envutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/temporalx"
	"github.com/yungbote/negotiator-backend/internal/temporalx/jobrun"
)

// Runner hosts the assessment workflow and its activities on the configured task queue.
type Runner struct {
	log         *logger.Logger
	cfg         temporalx.Config
	tc          temporalsdkclient.Client
	jobRepo     repos.JobRunRepo
	exec        *jobrt.Executor
	concurrency int
}

func NewRunner(
	baseLog *logger.Logger,
	cfg temporalx.Config,
	tc temporalsdkclient.Client,
	jobRepo repos.JobRunRepo,
	exec *jobrt.Executor,
	concurrency int,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if jobRepo == nil || exec == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:         baseLog.With("component", "TemporalWorker"),
		cfg:         cfg,
		tc:          tc,
		jobRepo:     jobRepo,
		exec:        exec,
		concurrency: max(concurrency, 1),
	}, nil
}

// Start polls until ctx is done. Start failures are retried with backoff until
// TEMPORAL_WORKER_START_MAX_WAIT_SECONDS elapses.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	if r.cfg.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", r.cfg.Namespace, "error", err)
		}
	}

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)
	backoff := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MS", 250)
	backoffMax := envutil.Millis("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && r.cfg.AutoRegisterNamespace {
			_ = temporalx.EnsureNamespace(ctx, r.log, r.cfg)
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(temporalx.ClampBackoff(backoff, backoffMax, attempt)):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.concurrency,
	})
	acts := &jobrun.Activities{
		Log:  r.log,
		Jobs: r.jobRepo,
		Exec: r.exec,
	}
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Run, activity.RegisterOptions{Name: jobrun.ActivityRun})
	w.RegisterActivityWithOptions(acts.DeadLetter, activity.RegisterOptions{Name: jobrun.ActivityDeadLetter})
	return w
}

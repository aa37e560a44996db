package jobrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	"github.com/yungbote/negotiator-backend/internal/data/repos/dberr"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type DispatcherOptions struct {
	TaskQueue   string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Dispatcher records a job_run row and starts its workflow. A repeated enqueue for the
// same attempt maps to the same row and workflow id and is a no-op.
type Dispatcher struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	jobs repos.JobRunRepo
	opts DispatcherOptions
}

func NewDispatcher(baseLog *logger.Logger, tc temporalsdkclient.Client, jobs repos.JobRunRepo, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		log:  baseLog.With("component", "TemporalDispatcher"),
		tc:   tc,
		jobs: jobs,
		opts: opts,
	}
}

func (d *Dispatcher) Name() string { return "temporal" }

func (d *Dispatcher) Enqueue(ctx context.Context, t queue.Task) (queue.Receipt, error) {
	if d.tc == nil {
		return queue.Receipt{}, fmt.Errorf("%w: temporal client not configured", apperr.ErrQueueUnavailable)
	}
	job, err := queue.NewJobRun(t, d.opts.MaxAttempts)
	if err != nil {
		return queue.Receipt{}, err
	}
	job.ID = JobID(t)
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := d.jobs.Create(dbc, []*types.JobRun{job}); err != nil && !dberr.IsUniqueViolation(err) {
		return queue.Receipt{}, fmt.Errorf("%w: %v", apperr.ErrQueueUnavailable, err)
	}
	receipt := queue.Receipt{JobID: job.ID.String(), Driver: d.Name()}

	_, err = d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(t),
		TaskQueue: d.opts.TaskQueue,
	}, WorkflowName, Input{
		JobID:       job.ID.String(),
		MaxAttempts: d.opts.MaxAttempts,
		BackoffBase: d.opts.BackoffBase,
		BackoffMax:  d.opts.BackoffMax,
	})
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case err == nil:
		return receipt, nil
	case errors.As(err, &already):
		d.log.Info("Workflow already started", "workflow_id", WorkflowID(t))
		return receipt, nil
	}
	// The row would never be claimed; retire it so the caller's fallback owns the task.
	_ = d.jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
		"status":      domjobs.StatusDead,
		"stage":       "dispatch_failed",
		"error":       err.Error(),
		"finished_at": time.Now(),
	})
	return queue.Receipt{}, fmt.Errorf("%w: start workflow: %v", apperr.ErrQueueUnavailable, err)
}

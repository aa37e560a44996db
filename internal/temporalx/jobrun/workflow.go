package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs the job once per activity attempt. Temporal owns the backoff; when it
// gives up, the job is dead-lettered before the workflow fails.
func Workflow(ctx workflow.Context, in Input) error {
	if strings.TrimSpace(in.JobID) == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}
	run := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         RetryPolicy(in),
	})
	var out RunResult
	err := workflow.ExecuteActivity(run, ActivityRun, in.JobID).Get(ctx, &out)
	if err == nil {
		return nil
	}

	dl := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
	})
	if dlErr := workflow.ExecuteActivity(dl, ActivityDeadLetter, in.JobID, err.Error()).Get(ctx, nil); dlErr != nil {
		workflow.GetLogger(ctx).Error("Dead-letter activity failed", "job_id", in.JobID, "error", dlErr)
	}
	return err
}

func RetryPolicy(in Input) *temporal.RetryPolicy {
	base := in.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	maxInterval := in.BackoffMax
	if maxInterval < base {
		maxInterval = base
	}
	return &temporal.RetryPolicy{
		InitialInterval:        base,
		BackoffCoefficient:     2,
		MaximumInterval:        maxInterval,
		MaximumAttempts:        int32(max(in.MaxAttempts, 1)),
		NonRetryableErrorTypes: []string{ErrTypePermanent},
	}
}

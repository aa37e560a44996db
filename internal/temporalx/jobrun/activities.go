package jobrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/negotiator-backend/internal/jobs/runtime"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// Activities execute job_run rows through the same executor the DB worker uses. The
// activity attempt number is the job's attempt count.
type Activities struct {
	Log  *logger.Logger
	Jobs repos.JobRunRepo
	Exec *jobrt.Executor
}

func (a *Activities) Run(ctx context.Context, jobID string) (RunResult, error) {
	res := RunResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Exec == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}
	job, err := a.load(ctx, res.JobID)
	if err != nil {
		return res, err
	}
	if job.Status == domjobs.StatusSucceeded || job.Status == domjobs.StatusDead {
		res.Status = job.Status
		return res, nil
	}

	attempt := int(activity.GetInfo(ctx).Attempt)
	now := time.Now()
	if err := a.Jobs.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{
		"status":       domjobs.StatusRunning,
		"stage":        "running",
		"attempts":     attempt,
		"locked_at":    now,
		"heartbeat_at": now,
	}); err != nil {
		return res, err
	}
	job.Status = domjobs.StatusRunning
	job.Attempts = attempt
	job.LockedAt, job.HeartbeatAt = &now, &now
	res.Attempt = attempt

	stop := a.startHeartbeat(ctx, job.ID)
	result, runErr := a.Exec.Run(ctx, job)
	stop()

	dbc := dbctx.Context{Ctx: ctx}
	if runErr == nil {
		var raw []byte
		if result != nil {
			raw, _ = json.Marshal(result)
		}
		if err := a.Jobs.MarkSucceeded(dbc, job.ID, raw); err != nil {
			return res, err
		}
		res.Status = domjobs.StatusSucceeded
		return res, nil
	}

	if jobrt.IsPermanent(runErr) {
		return res, temporal.NewNonRetryableApplicationError(runErr.Error(), ErrTypePermanent, runErr)
	}
	_ = a.Jobs.UpdateFields(dbc, job.ID, map[string]interface{}{
		"status":        domjobs.StatusQueued,
		"stage":         "retry_scheduled",
		"error":         runErr.Error(),
		"last_error_at": time.Now(),
	})
	a.Log.Warn("Job attempt failed, Temporal will retry", "job_id", job.ID, "attempt", attempt, "error", runErr)
	return res, runErr
}

// DeadLetter marks the job dead once Temporal stops retrying it.
func (a *Activities) DeadLetter(ctx context.Context, jobID string, cause string) error {
	job, err := a.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == domjobs.StatusSucceeded || job.Status == domjobs.StatusDead {
		return nil
	}
	job.Attempts = max(job.Attempts, 1)
	return a.Exec.Fail(ctx, job, jobrt.Permanent(errors.New(cause)))
}

func (a *Activities) load(ctx context.Context, raw string) (*types.JobRun, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid job_id", ErrTypePermanent, err)
	}
	job, err := a.Jobs.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, temporal.NewNonRetryableApplicationError("job not found: "+raw, ErrTypePermanent, nil)
	}
	return job, nil
}

func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()
		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx}, jobID)
			}
		}
	}()
	return func() { close(done) }
}

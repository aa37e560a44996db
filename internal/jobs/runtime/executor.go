package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/pkg/httpx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// DeadLetterFunc is told about every run that will never be retried.
type DeadLetterFunc func(ctx context.Context, job *types.JobRun, cause error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type MissingHandlerError struct{ JobType string }

func (e *MissingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// Executor runs claimed jobs and owns their terminal transitions. Both the polling worker
// and the Temporal activity go through it.
type Executor struct {
	log         *logger.Logger
	repo        repos.JobRunRepo
	registry    *Registry
	onDead      DeadLetterFunc
	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewExecutor(baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry, backoffBase, backoffMax time.Duration, onDead DeadLetterFunc) *Executor {
	return &Executor{
		log:         baseLog.With("component", "JobExecutor"),
		repo:        repo,
		registry:    registry,
		onDead:      onDead,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}
}

func (e *Executor) Registry() *Registry { return e.registry }

// Run invokes the handler for job and returns its error without touching job_run.
// Panics are recovered and surfaced as *PanicError.
func (e *Executor) Run(ctx context.Context, job *types.JobRun) (result any, err error) {
	h, ok := e.registry.Get(job.JobType)
	if !ok {
		return nil, Permanent(&MissingHandlerError{JobType: job.JobType})
	}
	jc := NewContext(ctx, job, e.repo, e.log)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			err = &PanicError{Val: r}
		}
	}()
	if err := h.Run(jc); err != nil {
		return nil, err
	}
	return jc.Result(), nil
}

// Execute runs job and records the outcome: succeeded, requeued with backoff, or dead.
func (e *Executor) Execute(ctx context.Context, job *types.JobRun) error {
	result, runErr := e.Run(ctx, job)
	if runErr == nil {
		var raw []byte
		if result != nil {
			raw, _ = json.Marshal(result)
		}
		return e.repo.MarkSucceeded(dbctx.Context{Ctx: ctx}, job.ID, raw)
	}
	return e.Fail(ctx, job, runErr)
}

// Fail requeues job after an exponential backoff, or dead-letters it when attempts are
// exhausted or the error is permanent.
func (e *Executor) Fail(ctx context.Context, job *types.JobRun, cause error) error {
	if IsPermanent(cause) {
		job.MaxAttempts = job.Attempts
	}
	backoff := httpx.ExponentialBackoff(job.Attempts, e.backoffBase, e.backoffMax)
	dead, err := e.repo.MarkFailed(dbctx.Context{Ctx: ctx}, job, cause, backoff)
	if err != nil {
		return err
	}
	if !dead {
		e.log.Warn("Job failed, retry scheduled",
			"job_id", job.ID,
			"job_type", job.JobType,
			"attempt", job.Attempts,
			"backoff", backoff.String(),
			"error", cause,
		)
		return nil
	}
	e.DeadLetter(ctx, job, cause)
	return nil
}

func (e *Executor) DeadLetter(ctx context.Context, job *types.JobRun, cause error) {
	e.log.Error("Job dead-lettered", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", cause)
	if e.onDead != nil {
		e.onDead(ctx, job, cause)
	}
}

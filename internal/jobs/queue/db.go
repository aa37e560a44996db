package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
)

// DBDispatcher queues tasks as job_run rows claimed by the polling worker.
type DBDispatcher struct {
	repo        repos.JobRunRepo
	maxAttempts int
}

func NewDBDispatcher(repo repos.JobRunRepo, maxAttempts int) *DBDispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DBDispatcher{repo: repo, maxAttempts: maxAttempts}
}

func (d *DBDispatcher) Name() string { return "db" }

func (d *DBDispatcher) Enqueue(ctx context.Context, t Task) (Receipt, error) {
	job, err := NewJobRun(t, d.maxAttempts)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := d.repo.Create(dbctx.Context{Ctx: ctx}, []*types.JobRun{job}); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", apperr.ErrQueueUnavailable, err)
	}
	return Receipt{JobID: job.ID.String(), Driver: d.Name()}, nil
}

// NewJobRun builds the queued row for t.
func NewJobRun(t Task, maxAttempts int) (*types.JobRun, error) {
	if t.AssessmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: task without assessment id", apperr.ErrInvalidArgument)
	}
	entityID := t.AssessmentID
	return &types.JobRun{
		OwnerUserID: t.UserID,
		JobType:     JobTypeAssessment,
		EntityType:  EntityAssessment,
		EntityID:    &entityID,
		Status:      domjobs.StatusQueued,
		Stage:       "queued",
		Priority:    t.Priority,
		MaxAttempts: maxAttempts,
		Payload:     t.Payload(),
	}, nil
}

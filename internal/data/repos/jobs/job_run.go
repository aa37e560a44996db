package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	// ClaimNextRunnable locks the highest-priority due run and marks it running. Runs
	// whose heartbeat is older than staleRunning are reclaimed while they have attempts left,
	// after any queued run of the same priority.
	ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, staleRunning time.Duration) (*types.JobRun, error)
	MarkSucceeded(dbc dbctx.Context, id uuid.UUID, result []byte) error
	// MarkFailed requeues the run after backoff, or moves it to dead when attempts are
	// exhausted. It reports whether the run is now dead.
	MarkFailed(dbc dbctx.Context, job *types.JobRun, cause error, backoff time.Duration) (bool, error)
	// SweepStale moves running rows with stale heartbeats and no attempts left to dead.
	SweepStale(dbc dbctx.Context, staleRunning time.Duration) ([]*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error)
	Stats(dbc dbctx.Context) (domjobs.QueueStats, error)
}

// queuedFirst ranks fresh work ahead of stale reclaims of the same priority.
const queuedFirst = "CASE WHEN status = '" + domjobs.StatusQueued + "' THEN 0 ELSE 1 END"

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.JobRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := dbc.DB(r.db).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, jobTypes []string, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          AND (run_after IS NULL OR run_after <= ?)
        )
        OR (
          status = ?
          AND heartbeat_at IS NOT NULL
          AND heartbeat_at < ?
          AND attempts < max_attempts
        )
      `, domjobs.StatusQueued, now, domjobs.StatusRunning, staleCutoff)
		if len(jobTypes) > 0 {
			q = q.Where("job_type IN ?", jobTypes)
		}
		qErr := q.Order("priority DESC").
			Order(queuedFirst).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       domjobs.StatusRunning,
				"stage":        "running",
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = domjobs.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, id uuid.UUID, result []byte) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      domjobs.StatusSucceeded,
		"stage":       "done",
		"progress":    100,
		"error":       "",
		"finished_at": now,
		"updated_at":  now,
	}
	if len(result) > 0 {
		updates["result"] = result
	}
	return r.UpdateFields(dbc, id, updates)
}

func (r *jobRunRepo) MarkFailed(dbc dbctx.Context, job *types.JobRun, cause error, backoff time.Duration) (bool, error) {
	if job == nil || job.ID == uuid.Nil {
		return false, nil
	}
	now := time.Now()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	dead := job.MaxAttempts > 0 && job.Attempts >= job.MaxAttempts
	updates := map[string]interface{}{
		"error":         msg,
		"last_error_at": now,
		"updated_at":    now,
	}
	if dead {
		updates["status"] = domjobs.StatusDead
		updates["stage"] = "dead"
		updates["finished_at"] = now
	} else {
		runAfter := now.Add(backoff)
		updates["status"] = domjobs.StatusQueued
		updates["stage"] = "retry_scheduled"
		updates["run_after"] = runAfter
	}
	if err := r.UpdateFields(dbc, job.ID, updates); err != nil {
		return false, err
	}
	return dead, nil
}

func (r *jobRunRepo) SweepStale(dbc dbctx.Context, staleRunning time.Duration) ([]*types.JobRun, error) {
	now := time.Now()
	var out []*types.JobRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ? AND attempts >= max_attempts",
				domjobs.StatusRunning, now.Add(-staleRunning)).
			Find(&out).Error; err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(out))
		for _, j := range out {
			ids = append(ids, j.ID)
		}
		return txx.Model(&types.JobRun{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":      domjobs.StatusDead,
				"stage":       "dead",
				"error":       "worker heartbeat lost",
				"finished_at": now,
				"updated_at":  now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, domjobs.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return false, nil
	}
	var count int64
	err := dbc.DB(r.db).
		Model(&types.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []string{domjobs.StatusQueued, domjobs.StatusRunning},
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *jobRunRepo) Stats(dbc dbctx.Context) (domjobs.QueueStats, error) {
	var rows []struct {
		Status string
		N      int64
	}
	var out domjobs.QueueStats
	if err := dbc.DB(r.db).Model(&types.JobRun{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, row := range rows {
		switch row.Status {
		case domjobs.StatusQueued:
			out.Queued = row.N
		case domjobs.StatusRunning:
			out.Running = row.N
		case domjobs.StatusSucceeded:
			out.Succeeded = row.N
		case domjobs.StatusFailed:
			out.Failed = row.N
		case domjobs.StatusDead:
			out.Dead = row.N
		}
	}
	return out, nil
}

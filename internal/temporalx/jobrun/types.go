package jobrun

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
)

const (
	WorkflowName       = "assessment_job"
	ActivityRun        = "assessment_job_run"
	ActivityDeadLetter = "assessment_job_dead_letter"

	// ErrTypePermanent is the application error type Temporal never retries.
	ErrTypePermanent = "PermanentJobError"
)

// Input starts one workflow per job_run row. The retry settings mirror the DB queue so
// both drivers back off the same way.
type Input struct {
	JobID       string        `json:"job_id"`
	MaxAttempts int           `json:"max_attempts"`
	BackoffBase time.Duration `json:"backoff_base"`
	BackoffMax  time.Duration `json:"backoff_max"`
}

type RunResult struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Attempt int    `json:"attempt"`
}

var jobNamespace = uuid.MustParse("6f1c7a8e-3d2b-4c59-9f0e-5b8a2d4e7c13")

// WorkflowID is stable per (assessment, attempt) so a duplicate enqueue is rejected by
// Temporal instead of running twice.
func WorkflowID(t queue.Task) string {
	return fmt.Sprintf("assessment-%s-attempt-%d", t.AssessmentID, t.Attempt)
}

// JobID derives the job_run id from the workflow id for the same reason.
func JobID(t queue.Task) uuid.UUID {
	return uuid.NewSHA1(jobNamespace, []byte(WorkflowID(t)))
}

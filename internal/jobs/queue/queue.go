package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// JobTypeAssessment is the job_run.job_type for scoring one assessment.
	JobTypeAssessment = "assessment.process"
	EntityAssessment  = "assessment"

	PriorityNormal = 0
)

// Task is the enqueue envelope. The conversation input itself lives on the assessment
// row, so the payload only carries identifiers.
type Task struct {
	AssessmentID   uuid.UUID `json:"assessment_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ScenarioID     string    `json:"scenario_id,omitempty"`
	Attempt        int       `json:"attempt"`
	Priority       int       `json:"-"`
	TraceID        string    `json:"trace_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
}

func (t Task) Payload() datatypes.JSON {
	b, _ := json.Marshal(t)
	return datatypes.JSON(b)
}

// Receipt identifies where a task went.
type Receipt struct {
	JobID  string `json:"job_id"`
	Driver string `json:"driver"`
	// Inline is set when the task already ran in the caller's context.
	Inline bool `json:"inline"`
}

// Dispatcher hands a task to a queue collaborator. Implementations deliver at least once.
type Dispatcher interface {
	Name() string
	Enqueue(ctx context.Context, t Task) (Receipt, error)
}

// ProcessFunc runs a task to completion in the calling goroutine.
type ProcessFunc func(ctx context.Context, t Task) error

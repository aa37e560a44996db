package assessment_process

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	jobrt "github.com/yungbote/negotiator-backend/internal/jobs/runtime"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
)

type result struct {
	AssessmentID  uuid.UUID `json:"assessment_id"`
	Status        string    `json:"status"`
	OverallScore  int       `json:"overall_score"`
	SourceOfTruth string    `json:"source_of_truth,omitempty"`
	Stale         bool      `json:"stale,omitempty"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var t queue.Task
	if err := jc.Decode(&t); err != nil {
		return jobrt.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	if t.AssessmentID == uuid.Nil {
		return jobrt.Permanent(fmt.Errorf("%w: missing assessment_id", apperr.ErrInvalidArgument))
	}

	jc.Progress("processing", 10)
	a, err := p.proc.Process(jc.Ctx, t)
	p.metrics.ObserveJob(p.Type(), outcome(err))
	switch {
	case errors.Is(err, apperr.ErrStaleCompletion):
		p.log.Info("Attempt lost the completion race", "assessment_id", t.AssessmentID, "job_id", jc.Job.ID)
		jc.SetResult(result{AssessmentID: t.AssessmentID, Stale: true})
		return nil
	case errors.Is(err, apperr.ErrConversationIneligible):
		return jobrt.Permanent(err)
	case err != nil:
		return err
	}
	if a != nil {
		jc.SetResult(result{
			AssessmentID:  a.ID,
			Status:        string(a.Status),
			OverallScore:  a.OverallScore,
			SourceOfTruth: string(a.SourceOfTruth),
		})
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrStaleCompletion):
		return "stale"
	case errors.Is(err, apperr.ErrConversationIneligible):
		return "ineligible"
	default:
		return "error"
	}
}

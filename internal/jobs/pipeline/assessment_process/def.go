package assessment_process

import (
	"context"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// Processor runs one assessment attempt end to end.
type Processor interface {
	Process(ctx context.Context, t queue.Task) (*types.Assessment, error)
}

type Pipeline struct {
	log     *logger.Logger
	proc    Processor
	metrics *observability.Metrics
}

func New(baseLog *logger.Logger, proc Processor, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", queue.JobTypeAssessment),
		proc:    proc,
		metrics: metrics,
	}
}

func (p *Pipeline) Type() string { return queue.JobTypeAssessment }

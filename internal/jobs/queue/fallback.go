package queue

import (
	"context"

	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// Fallback sends to primary and, when primary refuses the task, runs it inline. A nil
// primary always runs inline.
type Fallback struct {
	log     *logger.Logger
	primary Dispatcher
	inline  *InlineDispatcher
}

func NewFallback(baseLog *logger.Logger, primary Dispatcher, inline *InlineDispatcher) *Fallback {
	return &Fallback{
		log:     baseLog.With("component", "QueueFallback"),
		primary: primary,
		inline:  inline,
	}
}

func (f *Fallback) Name() string {
	if f.primary == nil {
		return f.inline.Name()
	}
	return f.primary.Name()
}

func (f *Fallback) Enqueue(ctx context.Context, t Task) (Receipt, error) {
	if f.primary != nil {
		rec, err := f.primary.Enqueue(ctx, t)
		if err == nil {
			return rec, nil
		}
		f.log.Warn("Queue unavailable, processing inline",
			"driver", f.primary.Name(),
			"assessment_id", t.AssessmentID,
			"error", err,
		)
	}
	return f.inline.Enqueue(ctx, t)
}

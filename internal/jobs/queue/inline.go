package queue

import (
	"context"

	"github.com/google/uuid"
)

// InlineDispatcher runs the task synchronously. It is both the "inline" driver and the
// degraded path when the configured queue cannot accept work.
type InlineDispatcher struct {
	process ProcessFunc
}

func NewInlineDispatcher(process ProcessFunc) *InlineDispatcher {
	return &InlineDispatcher{process: process}
}

func (d *InlineDispatcher) Name() string { return "inline" }

func (d *InlineDispatcher) Enqueue(ctx context.Context, t Task) (Receipt, error) {
	rec := Receipt{JobID: "inline-" + uuid.NewString(), Driver: d.Name(), Inline: true}
	return rec, d.process(ctx, t)
}

package ctxutil

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
	UserID    string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// TraceID prefers the explicit trace data and falls back to the active span.
func TraceID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil && td.TraceID != "" {
		return td.TraceID
	}
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

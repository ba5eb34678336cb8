package context

import (
	"context"
)

// TraceContext identifies one request across logs, spans and responses.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// LogFields returns the trace as logger key-value pairs.
func (t *TraceContext) LogFields() []any {
	return []any{"trace_id", t.TraceID, "span_id", t.SpanID, "request_id", t.RequestID}
}

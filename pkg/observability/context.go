package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	jobCtxKey           contextKey = "job"
)

// Standard attribute keys used in logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	JobKey           = "job"
	UserIDKey        = "user_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
	StatusKey        = "status"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithJob tags the context with the name of the running job.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobCtxKey, job)
}

// JobFromContext extracts the job name from context.
func JobFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if job, ok := ctx.Value(jobCtxKey).(string); ok {
		return job
	}
	return ""
}

// NewJobContext starts a job invocation: it sets the job name and a
// correlation ID, reusing parentCorrelationID when one is given.
func NewJobContext(ctx context.Context, job, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithJob(ctx, job), parentCorrelationID)
}

// Package jobs runs the pipeline handlers as named, independently
// triggered jobs with a uniform invocation contract.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

// Job is a unit of work triggered by the scheduler, the CLI or the MCP
// server.
type Job interface {
	Name() string
	Run(ctx context.Context, payload json.RawMessage) (any, error)
}

type funcJob struct {
	name string
	fn   func(ctx context.Context, payload json.RawMessage) (any, error)
}

func (j funcJob) Name() string { return j.name }

func (j funcJob) Run(ctx context.Context, payload json.RawMessage) (any, error) {
	return j.fn(ctx, payload)
}

// NewJob wraps fn as a Job.
func NewJob(name string, fn func(ctx context.Context, payload json.RawMessage) (any, error)) Job {
	return funcJob{name: name, fn: fn}
}

// Outcome is the result of one invocation.
type Outcome struct {
	Job           string    `json:"job"`
	Success       bool      `json:"success"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// Invoker runs jobs with logging, metrics and a correlation ID.
type Invoker struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewInvoker creates an invoker.
func NewInvoker(logger *slog.Logger, metrics observability.Metrics) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Invoker{logger: logger, metrics: metrics}
}

// Invoke runs job once. It never returns an error: failures, including
// panics, are reported in the Outcome.
func (i *Invoker) Invoke(ctx context.Context, job Job, payload json.RawMessage) (out Outcome) {
	ctx = observability.NewJobContext(ctx, job.Name(), observability.CorrelationIDFromContext(ctx))
	out = Outcome{
		Job:           job.Name(),
		CorrelationID: observability.CorrelationIDFromContext(ctx),
		StartedAt:     time.Now().UTC(),
	}

	result, err := observability.TimeJob(ctx, i.logger, i.metrics, job.Name(), func() (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
			}
		}()
		return job.Run(ctx, payload)
	})

	out.DurationMS = time.Since(out.StartedAt).Milliseconds()
	out.Result = result
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Success = true
	return out
}

// Invoke runs job with the default logger and no metrics.
func Invoke(ctx context.Context, job Job, payload json.RawMessage) Outcome {
	return NewInvoker(nil, nil).Invoke(ctx, job, payload)
}

// DecodePayload unmarshals payload into T. An empty payload yields the
// zero value.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, &domain.ValidationError{Field: "payload", Message: err.Error()}
	}
	return v, nil
}

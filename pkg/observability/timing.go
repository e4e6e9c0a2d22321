package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer tracks the duration of a job run and records it on stop.
type Timer struct {
	job     string
	start   time.Time
	logger  *slog.Logger
	metrics Metrics
}

// StartTimer creates a new timer for the given job.
func StartTimer(job string) *Timer {
	return &Timer{
		job:   job,
		start: time.Now(),
	}
}

// WithLogger adds a logger to the timer for automatic logging on stop.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics adds a metrics collector to the timer.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// Stop records the run duration and outcome.
func (t *Timer) Stop(ctx context.Context, err error) time.Duration {
	duration := time.Since(t.start)

	if t.logger != nil {
		if err != nil {
			t.logger.ErrorContext(ctx, "job failed",
				JobKey, t.job,
				DurationKey, duration.Milliseconds(),
				ErrorKey, err.Error(),
			)
		} else {
			t.logger.InfoContext(ctx, "job completed",
				JobKey, t.job,
				DurationKey, duration.Milliseconds(),
			)
		}
	}

	if t.metrics != nil {
		tag := T(JobKey, t.job)
		t.metrics.Timing(MetricJobDuration, duration, tag)
		t.metrics.Counter(MetricJobRuns, 1, tag)
		if err != nil {
			t.metrics.Counter(MetricJobFailures, 1, tag)
		}
	}

	return duration
}

// Elapsed returns the elapsed time without stopping the timer.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// TimeJob times fn as one run of job.
func TimeJob[T any](ctx context.Context, logger *slog.Logger, metrics Metrics, job string, fn func() (T, error)) (T, error) {
	timer := StartTimer(job).
		WithLogger(logger).
		WithMetrics(metrics)

	result, err := fn()
	timer.Stop(ctx, err)
	return result, err
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/application/commands"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

// Job names.
const (
	JobSync       = "sync"
	JobCapacity   = "capacity"
	JobPriorities = "priorities"
	JobOverload   = "overload"
	JobMatch      = "match"
)

// SyncPayload is the payload of the sync job.
type SyncPayload struct {
	Incremental bool       `json:"incremental"`
	Since       *time.Time `json:"since,omitempty"`
}

// UsersPayload limits an aggregation job to some members.
type UsersPayload struct {
	UserIDs []string `json:"user_ids,omitempty"`
}

// MatchPayload is the payload of the match job.
type MatchPayload struct {
	TaskDescription string `json:"task_description"`
	ProjectID       string `json:"project_id,omitempty"`
}

// Pipeline exposes the workload handlers as jobs.
type Pipeline struct {
	Sync       *commands.SyncTeamDataHandler
	Capacity   *commands.CalculateCapacityHandler
	Priorities *commands.AggregatePrioritiesHandler
	Overload   *commands.DetectOverloadHandler
	Match      *queries.MatchCandidatesHandler
	Metrics    observability.Metrics
}

func (p *Pipeline) metrics() observability.Metrics {
	if p.Metrics == nil {
		return observability.NoopMetrics{}
	}
	return p.Metrics
}

// Jobs returns every job keyed by name.
func (p *Pipeline) Jobs() map[string]Job {
	return map[string]Job{
		JobSync:       p.SyncJob(),
		JobCapacity:   p.CapacityJob(),
		JobPriorities: p.PrioritiesJob(),
		JobOverload:   p.OverloadJob(),
		JobMatch:      p.MatchJob(),
	}
}

// Lookup returns the named job.
func (p *Pipeline) Lookup(name string) (Job, error) {
	job, ok := p.Jobs()[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return job, nil
}

// SyncJob runs ingestion. Batch failures are reported in the result; only
// terminal failures fail the job.
func (p *Pipeline) SyncJob() Job {
	return NewJob(JobSync, func(ctx context.Context, payload json.RawMessage) (any, error) {
		in, err := DecodePayload[SyncPayload](payload)
		if err != nil {
			return nil, err
		}
		report, err := p.Sync.Handle(ctx, commands.SyncTeamDataCommand{Watermark: in.Since, Incremental: in.Incremental})
		if report != nil {
			p.metrics().Counter(observability.MetricUsersSynced, int64(report.UsersSynced))
			p.metrics().Counter(observability.MetricTasksSynced, int64(report.TasksSynced))
		}
		return orNil(report, err)
	})
}

// CapacityJob recomputes the capacity cache.
func (p *Pipeline) CapacityJob() Job {
	return NewJob(JobCapacity, func(ctx context.Context, payload json.RawMessage) (any, error) {
		in, err := DecodePayload[UsersPayload](payload)
		if err != nil {
			return nil, err
		}
		result, err := p.Capacity.Handle(ctx, commands.CalculateCapacityCommand{UserIDs: in.UserIDs})
		if result != nil {
			p.metrics().Counter(observability.MetricSnapshotsWritten, int64(result.SnapshotsWritten))
			p.metrics().Counter(observability.MetricUserFailures, int64(result.UsersFailed), observability.T(observability.JobKey, JobCapacity))
			p.metrics().Counter(observability.MetricOverloadAlerts, int64(result.AlertsSent))
		}
		return orNil(result, err)
	})
}

// PrioritiesJob recomputes the priority cache.
func (p *Pipeline) PrioritiesJob() Job {
	return NewJob(JobPriorities, func(ctx context.Context, payload json.RawMessage) (any, error) {
		in, err := DecodePayload[UsersPayload](payload)
		if err != nil {
			return nil, err
		}
		result, err := p.Priorities.Handle(ctx, commands.AggregatePrioritiesCommand{UserIDs: in.UserIDs})
		if result != nil {
			p.metrics().Counter(observability.MetricPriorityEntries, int64(result.EntriesWritten))
			p.metrics().Counter(observability.MetricUserFailures, int64(result.UsersFailed), observability.T(observability.JobKey, JobPriorities))
		}
		return orNil(result, err)
	})
}

// OverloadJob evaluates one status transition.
func (p *Pipeline) OverloadJob() Job {
	return NewJob(JobOverload, func(ctx context.Context, payload json.RawMessage) (any, error) {
		ev, err := DecodePayload[commands.OverloadEvent](payload)
		if err != nil {
			return nil, err
		}
		return orNil(p.Overload.Handle(ctx, ev))
	})
}

// MatchJob ranks staffing candidates.
func (p *Pipeline) MatchJob() Job {
	return NewJob(JobMatch, func(ctx context.Context, payload json.RawMessage) (any, error) {
		in, err := DecodePayload[MatchPayload](payload)
		if err != nil {
			return nil, err
		}
		candidates, err := p.Match.Handle(ctx, queries.MatchCandidatesQuery{TaskDescription: in.TaskDescription, ProjectID: in.ProjectID})
		if err != nil {
			return nil, err
		}
		return candidates, nil
	})
}

// orNil keeps a nil result pointer from becoming a non-nil any.
func orNil[T any](v *T, err error) (any, error) {
	if v == nil {
		return nil, err
	}
	return v, err
}

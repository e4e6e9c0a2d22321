package services

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// MaxUrgency caps the total urgency score.
const MaxUrgency = 100

// UrgencyEngineConfig holds the per-source bonus added to every item.
type UrgencyEngineConfig struct {
	SourceWeights map[domain.Source]int
}

// DefaultUrgencyEngineConfig returns the production weights.
func DefaultUrgencyEngineConfig() UrgencyEngineConfig {
	return UrgencyEngineConfig{
		SourceWeights: map[domain.Source]int{
			domain.SourceProjects: 10,
		},
	}
}

// UrgencyBreakdown shows how a score was assembled.
type UrgencyBreakdown struct {
	Deadline  int
	Priority  int
	Source    int
	Staleness int
	Total     int
}

// String renders the components for logs and CLI output.
func (b UrgencyBreakdown) String() string {
	return fmt.Sprintf("deadline=%d priority=%d source=%d staleness=%d total=%d",
		b.Deadline, b.Priority, b.Source, b.Staleness, b.Total)
}

// UrgencyEngine scores tasks 0..100. It is pure: the same task and now
// always produce the same score.
type UrgencyEngine struct {
	config UrgencyEngineConfig
}

// NewUrgencyEngine creates an engine with the given configuration.
func NewUrgencyEngine(cfg UrgencyEngineConfig) *UrgencyEngine {
	if cfg.SourceWeights == nil {
		cfg = DefaultUrgencyEngineConfig()
	}
	return &UrgencyEngine{config: cfg}
}

// Score returns the capped urgency of task from source at now.
func (e *UrgencyEngine) Score(task domain.Task, source domain.Source, now time.Time) int {
	return e.Explain(task, source, now).Total
}

// Explain returns every component of the score.
func (e *UrgencyEngine) Explain(task domain.Task, source domain.Source, now time.Time) UrgencyBreakdown {
	b := UrgencyBreakdown{
		Deadline:  DeadlineScore(task, now),
		Priority:  PriorityScore(task.Priority),
		Source:    e.config.SourceWeights[source],
		Staleness: StalenessScore(task.LastUpdated, now),
	}
	b.Total = min(MaxUrgency, b.Deadline+b.Priority+b.Source+b.Staleness)
	return b
}

// DeadlineScore grades time to deadline 0..40. Overdue tasks get the
// maximum; tasks without a due date get nothing.
func DeadlineScore(task domain.Task, now time.Time) int {
	if !task.HasDueDate() {
		return 0
	}
	h := task.HoursUntilDue(now)
	switch {
	case h < 0:
		return 40
	case h < 24:
		return 35
	case h < 72:
		return 20
	case h < 168:
		return 10
	default:
		return 5
	}
}

// PriorityScore grades the task priority 0..30.
func PriorityScore(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return 30
	case domain.PriorityMedium:
		return 15
	case domain.PriorityLow:
		return 5
	default:
		return 0
	}
}

// StalenessScore grades days since the last upstream update 0..10.
func StalenessScore(lastUpdated, now time.Time) int {
	if lastUpdated.IsZero() {
		return 0
	}
	days := now.Sub(lastUpdated).Hours() / 24
	switch {
	case days > 7:
		return 10
	case days > 3:
		return 5
	default:
		return 0
	}
}

package queries

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/felixgeelhaar/teamflow/internal/workload/application/services"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

const (
	// DefaultCandidateLimit is how many candidates a match returns.
	DefaultCandidateLimit = 3
	// DefaultPerformanceScore is used until completion history is tracked.
	DefaultPerformanceScore = 10
)

// PerformanceScorer grades a member's track record 0..10.
type PerformanceScorer interface {
	Score(ctx context.Context, member domain.Member) (int, error)
}

// FixedPerformance gives every member the same score.
type FixedPerformance int

// Score implements PerformanceScorer.
func (f FixedPerformance) Score(context.Context, domain.Member) (int, error) {
	return int(f), nil
}

// MatchCandidatesQuery asks who should take a new task.
type MatchCandidatesQuery struct {
	TaskDescription string
	// ProjectID is recorded but does not filter: there is no project
	// membership data to filter on.
	ProjectID string
}

// ScoreBreakdown shows how a candidate's score was assembled.
type ScoreBreakdown struct {
	Availability int `json:"availability"`
	Skills       int `json:"skills"`
	Performance  int `json:"performance"`
}

// Candidate is a ranked staffing suggestion.
type Candidate struct {
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Score           int            `json:"score"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	Skills          []string       `json:"skills"`
	CapacityPercent int            `json:"capacity_percent"`
}

// MatchCandidatesHandler ranks members for a task by availability, skill
// fit and performance.
type MatchCandidatesHandler struct {
	members     domain.MemberRepository
	capacity    domain.CapacityRepository
	skills      services.SkillTable
	performance PerformanceScorer
	limit       int
	logger      *slog.Logger
}

// NewMatchCandidatesHandler creates a new matcher. Nil skills and
// performance fall back to the defaults.
func NewMatchCandidatesHandler(
	members domain.MemberRepository,
	capacity domain.CapacityRepository,
	skills services.SkillTable,
	performance PerformanceScorer,
	logger *slog.Logger,
) *MatchCandidatesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if skills == nil {
		skills = services.DefaultSkillTable()
	}
	if performance == nil {
		performance = FixedPerformance(DefaultPerformanceScore)
	}
	return &MatchCandidatesHandler{
		members:     members,
		capacity:    capacity,
		skills:      skills,
		performance: performance,
		limit:       DefaultCandidateLimit,
		logger:      logger,
	}
}

// RequiredSkills exposes the inference used by Handle.
func (h *MatchCandidatesHandler) RequiredSkills(description string) []string {
	return h.skills.InferSkills(description)
}

// Handle returns at most three candidates, best first. Ties keep member
// order.
func (h *MatchCandidatesHandler) Handle(ctx context.Context, q MatchCandidatesQuery) ([]Candidate, error) {
	if strings.TrimSpace(q.TaskDescription) == "" {
		return nil, &domain.ValidationError{Field: "task_description", Message: "is required"}
	}

	required := h.skills.InferSkills(q.TaskDescription)

	members, err := h.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	snapshots, err := h.capacity.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list capacity: %w", err)
	}
	percent := make(map[string]int, len(snapshots))
	for _, s := range snapshots {
		percent[s.UserID] = s.CapacityPercent
	}

	candidates := make([]Candidate, 0, len(members))
	for _, m := range members {
		// Members without a snapshot count as fully available.
		pct := percent[m.UserID]

		perf, err := h.performance.Score(ctx, m)
		if err != nil {
			h.logger.WarnContext(ctx, "performance score unavailable", "user_id", m.UserID, "error", err)
			perf = 0
		}

		b := ScoreBreakdown{
			Availability: services.AvailabilityScore(pct),
			Skills:       services.SkillMatchScore(m.Skills, required),
			Performance:  perf,
		}
		candidates = append(candidates, Candidate{
			UserID:          m.UserID,
			Name:            m.DisplayName(),
			Email:           m.Email,
			Score:           b.Availability + b.Skills + b.Performance,
			Breakdown:       b,
			Skills:          m.Skills,
			CapacityPercent: pct,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > h.limit {
		candidates = candidates[:h.limit]
	}

	h.logger.DebugContext(ctx, "matched candidates",
		"project_id", q.ProjectID,
		"required_skills", required,
		"candidates", len(candidates),
	)
	return candidates, nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/services"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// AggregatePrioritiesCommand rebuilds the priority cache.
type AggregatePrioritiesCommand struct {
	// UserIDs limits the run to these members; empty means everyone.
	UserIDs []string
}

// PriorityAggregationResult summarizes a priority run.
type PriorityAggregationResult struct {
	RunStats
	EntriesWritten int       `json:"entries_written"`
	CompletedAt    time.Time `json:"completed_at"`
}

// AggregatePrioritiesHandler scores every member's active tasks and keeps
// the top N per member.
type AggregatePrioritiesHandler struct {
	members domain.MemberRepository
	tasks   domain.TaskRepository
	cache   domain.PriorityRepository
	engine  *services.UrgencyEngine
	topN    int
	fanOut  memberFanOut
	now     func() time.Time
	logger  *slog.Logger
}

// NewAggregatePrioritiesHandler creates a new priority aggregation handler.
func NewAggregatePrioritiesHandler(
	members domain.MemberRepository,
	tasks domain.TaskRepository,
	cache domain.PriorityRepository,
	engine *services.UrgencyEngine,
	locker lock.Locker,
	topN int,
	concurrency int,
	logger *slog.Logger,
) *AggregatePrioritiesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = services.NewUrgencyEngine(services.DefaultUrgencyEngineConfig())
	}
	if topN <= 0 {
		topN = domain.DefaultTopN
	}
	return &AggregatePrioritiesHandler{
		members: members,
		tasks:   tasks,
		cache:   cache,
		engine:  engine,
		topN:    topN,
		fanOut:  memberFanOut{job: "priorities", concurrency: concurrency, locker: locker, logger: logger},
		now:     time.Now,
		logger:  logger,
	}
}

// Handle runs one aggregation. Only failing to list members aborts it.
func (h *AggregatePrioritiesHandler) Handle(ctx context.Context, cmd AggregatePrioritiesCommand) (*PriorityAggregationResult, error) {
	members, err := h.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	members = filterMembers(members, cmd.UserIDs)

	now := h.now().UTC()
	written := make([]int, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.UserID] = i
	}

	stats := h.fanOut.run(ctx, members, func(ctx context.Context, m domain.Member) error {
		n, err := h.aggregateMember(ctx, m.UserID, now)
		written[index[m.UserID]] = n
		return err
	})

	result := &PriorityAggregationResult{RunStats: stats, CompletedAt: now}
	for _, n := range written {
		result.EntriesWritten += n
	}

	h.logger.InfoContext(ctx, "priority aggregation complete",
		"users", stats.UsersProcessed,
		"failed", stats.UsersFailed,
		"skipped", stats.UsersSkipped,
		"entries", result.EntriesWritten,
	)
	return result, nil
}

func (h *AggregatePrioritiesHandler) aggregateMember(ctx context.Context, userID string, now time.Time) (int, error) {
	tasks, err := h.tasks.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	entries := RankTasks(h.engine, userID, tasks, h.topN, now)
	err = h.cache.ReplaceForUser(ctx, userID, entries)
	if errors.Is(err, domain.ErrCachePruneFailed) {
		// The fresh ranks are committed; stale ones above them stay until
		// the next run.
		h.logger.WarnContext(ctx, "priority prune failed", "user_id", userID, "error", err)
		return len(entries), nil
	}
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// RankTasks scores the active tasks and returns the topN as ranked
// entries. Ties keep the input order.
func RankTasks(engine *services.UrgencyEngine, userID string, tasks []domain.Task, topN int, now time.Time) []domain.PriorityEntry {
	entries := make([]domain.PriorityEntry, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsActive() {
			continue
		}
		entries = append(entries, domain.PriorityEntry{
			ItemID:    t.TaskID,
			UserID:    userID,
			Score:     engine.Score(t, domain.SourceProjects, now),
			Source:    domain.SourceProjects,
			Metadata:  domain.PriorityMetadata{Name: t.Name, DueDate: t.DueDate},
			Timestamp: now,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

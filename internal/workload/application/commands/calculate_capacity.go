package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/services"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// CapacityWriteBatchSize is the row count of each capacity upsert.
const CapacityWriteBatchSize = 20

// CalculateCapacityCommand rebuilds the capacity cache.
type CalculateCapacityCommand struct {
	// UserIDs limits the run to these members; empty means everyone.
	UserIDs []string
}

// CapacityResult summarizes a capacity run.
type CapacityResult struct {
	RunStats
	SnapshotsWritten int                       `json:"snapshots_written"`
	AlertsSent       int                       `json:"alerts_sent"`
	Snapshots        []domain.CapacitySnapshot `json:"snapshots,omitempty"`
	CompletedAt      time.Time                 `json:"completed_at"`
	// AlreadyRunning is set when another run held the capacity lock and
	// this one did nothing.
	AlreadyRunning bool `json:"already_running,omitempty"`
}

// CalculateCapacityHandler computes a capacity snapshot per member and
// replaces the cache in one transaction.
type CalculateCapacityHandler struct {
	members     domain.MemberRepository
	tasks       domain.TaskRepository
	cache       domain.CapacityRepository
	settings    domain.SettingsRepository
	overload    *DetectOverloadHandler
	defaultBase float64
	fanOut      memberFanOut
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalculateCapacityHandler creates a new capacity handler. A nil
// overload handler disables alerting.
func NewCalculateCapacityHandler(
	members domain.MemberRepository,
	tasks domain.TaskRepository,
	cache domain.CapacityRepository,
	settings domain.SettingsRepository,
	overload *DetectOverloadHandler,
	locker lock.Locker,
	defaultBase float64,
	concurrency int,
	logger *slog.Logger,
) *CalculateCapacityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalculateCapacityHandler{
		members:     members,
		tasks:       tasks,
		cache:       cache,
		settings:    settings,
		overload:    overload,
		defaultBase: defaultBase,
		fanOut:      memberFanOut{job: "capacity", concurrency: concurrency, locker: locker, logger: logger},
		now:         time.Now,
		logger:      logger,
	}
}

// Handle runs one capacity cycle. Failing to read settings, members or
// the previous statuses aborts the run, as does a failed cache write.
// The run holds "run:capacity" from the status read through alerting, so
// overlapping runs cannot both see the old status and both alert.
func (h *CalculateCapacityHandler) Handle(ctx context.Context, cmd CalculateCapacityCommand) (*CapacityResult, error) {
	release, ok, err := h.fanOut.acquireRun(ctx, runLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire capacity run lock: %w", err)
	}
	if !ok {
		h.logger.InfoContext(ctx, "capacity run already in progress, skipping")
		return &CapacityResult{AlreadyRunning: true, CompletedAt: h.now().UTC()}, nil
	}
	defer release()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	base := settings.CapacityBase(h.defaultBase)

	members, err := h.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	members = filterMembers(members, cmd.UserIDs)

	previous, err := h.cache.StatusByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous capacity: %w", err)
	}

	now := h.now().UTC()
	slots := make([]*domain.CapacitySnapshot, len(members))
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.UserID] = i
	}

	stats := h.fanOut.run(ctx, members, func(ctx context.Context, m domain.Member) error {
		tasks, err := h.tasks.ListActiveByUser(ctx, m.UserID)
		if err != nil {
			return fmt.Errorf("failed to load tasks: %w", err)
		}
		snap := services.ComputeCapacity(m.UserID, tasks, base, now)
		slots[index[m.UserID]] = &snap
		return nil
	})

	result := &CapacityResult{RunStats: stats, CompletedAt: now}
	for _, s := range slots {
		if s != nil {
			result.Snapshots = append(result.Snapshots, *s)
		}
	}

	if err := h.cache.ReplaceSnapshots(ctx, result.Snapshots, CapacityWriteBatchSize); err != nil {
		return result, fmt.Errorf("failed to replace capacity cache: %w", err)
	}
	result.SnapshotsWritten = len(result.Snapshots)

	h.detectTransitions(ctx, members, previous, result)

	h.logger.InfoContext(ctx, "capacity calculation complete",
		"users", stats.UsersProcessed,
		"failed", stats.UsersFailed,
		"skipped", stats.UsersSkipped,
		"snapshots", result.SnapshotsWritten,
		"alerts", result.AlertsSent,
		"base", base,
	)
	return result, nil
}

func (h *CalculateCapacityHandler) detectTransitions(ctx context.Context, members []domain.Member, previous map[string]domain.CapacityStatus, result *CapacityResult) {
	if h.overload == nil {
		return
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.DisplayName()
	}

	for _, snap := range result.Snapshots {
		old := previous[snap.UserID]
		if old == snap.Status {
			continue
		}
		res, err := h.overload.Handle(ctx, OverloadEvent{
			UserID:          snap.UserID,
			UserName:        names[snap.UserID],
			OldStatus:       old,
			NewStatus:       snap.Status,
			CapacityPercent: snap.CapacityPercent,
		})
		if err != nil {
			h.logger.ErrorContext(ctx, "overload detection failed", "user_id", snap.UserID, "error", err)
			continue
		}
		if res.Notified {
			result.AlertsSent++
		}
	}
}

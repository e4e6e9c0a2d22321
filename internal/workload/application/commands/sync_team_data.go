package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/projects"
)

// SyncStateKey is the sync_state key of the projects watermark.
const SyncStateKey = "projects"

// DefaultSyncBatchSize is how many rows each upsert statement carries.
const DefaultSyncBatchSize = 50

// ProjectsAPI is the slice of the upstream client ingestion needs.
type ProjectsAPI interface {
	FetchPortals(ctx context.Context) ([]projects.Portal, error)
	FetchUsers(ctx context.Context, portalID string) ([]projects.RemoteUser, error)
	FetchProjects(ctx context.Context, portalID string) ([]projects.Project, error)
	FetchTasks(ctx context.Context, portalID, projectID string, q projects.TaskQuery) ([]projects.RemoteTask, error)
}

// SyncTeamDataCommand starts an ingestion run.
type SyncTeamDataCommand struct {
	// Watermark overrides the stored watermark.
	Watermark *time.Time
	// Incremental fetches only tasks modified after the watermark.
	Incremental bool
}

// SyncReport summarizes an ingestion run.
type SyncReport struct {
	PortalID       string     `json:"portal_id,omitempty"`
	UsersSynced    int        `json:"users_synced"`
	TasksSynced    int        `json:"tasks_synced"`
	TasksSkipped   int        `json:"tasks_skipped"`
	ProjectsSynced int        `json:"projects_synced"`
	Errors         []string   `json:"errors,omitempty"`
	Since          *time.Time `json:"since,omitempty"`
	Watermark      time.Time  `json:"watermark"`

	failures domain.PartialBatchFailure
}

func (r *SyncReport) record(id string, err error) {
	r.failures.Add(id, err)
	r.Errors = append(r.Errors, id+": "+err.Error())
}

// Partial returns the batch and project failures that were skipped, or nil.
func (r *SyncReport) Partial() error {
	return r.failures.ErrOrNil()
}

// SyncTeamDataHandler pulls users and tasks from the projects API into the
// local replica.
type SyncTeamDataHandler struct {
	api       ProjectsAPI
	members   domain.MemberRepository
	tasks     domain.TaskRepository
	state     domain.SyncStateRepository
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewSyncTeamDataHandler creates a new sync handler.
func NewSyncTeamDataHandler(
	api ProjectsAPI,
	members domain.MemberRepository,
	tasks domain.TaskRepository,
	state domain.SyncStateRepository,
	batchSize int,
	logger *slog.Logger,
) *SyncTeamDataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultSyncBatchSize
	}
	return &SyncTeamDataHandler{
		api:       api,
		members:   members,
		tasks:     tasks,
		state:     state,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Handle runs one ingestion cycle. Terminal failures wrap
// domain.ErrSyncFailed and still return the partial report.
func (h *SyncTeamDataHandler) Handle(ctx context.Context, cmd SyncTeamDataCommand) (*SyncReport, error) {
	startedAt := h.now().UTC()
	report := &SyncReport{}

	since := h.resolveWatermark(ctx, cmd)
	report.Since = since

	portals, err := h.api.FetchPortals(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: failed to list portals: %w", domain.ErrSyncFailed, err)
	}
	if len(portals) == 0 {
		return report, fmt.Errorf("%w: no portals available", domain.ErrSyncFailed)
	}
	// Only the default portal is synced.
	portalID := portals[0].ID.String()
	report.PortalID = portalID

	users, err := h.api.FetchUsers(ctx, portalID)
	if err != nil {
		return report, fmt.Errorf("%w: failed to list users: %w", domain.ErrSyncFailed, err)
	}
	h.syncMembers(ctx, normalizeMembers(users, startedAt), report)

	projectList, err := h.api.FetchProjects(ctx, portalID)
	if err != nil {
		return report, fmt.Errorf("%w: failed to list projects: %w", domain.ErrSyncFailed, err)
	}

	for _, p := range projectList {
		projectID := p.ID.String()
		remote, err := h.api.FetchTasks(ctx, portalID, projectID, projects.TaskQuery{ModifiedSince: since})
		if err != nil {
			if projects.IsAuthFailure(err) || ctx.Err() != nil {
				return report, fmt.Errorf("%w: failed to fetch tasks for project %s: %w", domain.ErrSyncFailed, projectID, err)
			}
			h.logger.WarnContext(ctx, "skipping project", "project_id", projectID, "error", err)
			report.record("project "+projectID, err)
			continue
		}

		tasks, skipped := normalizeTasks(remote, projectID, since, startedAt)
		report.TasksSkipped += skipped
		h.syncTasks(ctx, projectID, tasks, report)
		report.ProjectsSynced++
	}

	h.advanceWatermark(ctx, startedAt, report)

	h.logger.InfoContext(ctx, "sync complete",
		"portal_id", portalID,
		"users", report.UsersSynced,
		"tasks", report.TasksSynced,
		"tasks_skipped", report.TasksSkipped,
		"projects", report.ProjectsSynced,
		"errors", len(report.Errors),
	)
	return report, nil
}

// advanceWatermark moves the watermark to startedAt. A run that skipped a
// project or a batch keeps the previous watermark so the next incremental
// run fetches the skipped tasks again.
func (h *SyncTeamDataHandler) advanceWatermark(ctx context.Context, startedAt time.Time, report *SyncReport) {
	if err := report.Partial(); err != nil {
		if report.Since != nil {
			report.Watermark = *report.Since
		}
		h.logger.WarnContext(ctx, "sync watermark held back", "errors", len(report.Errors))
		return
	}

	report.Watermark = startedAt
	if err := h.state.SaveWatermark(ctx, SyncStateKey, startedAt); err != nil {
		h.logger.ErrorContext(ctx, "failed to save sync watermark", "error", err)
		report.record("watermark", err)
	}
}

func (h *SyncTeamDataHandler) resolveWatermark(ctx context.Context, cmd SyncTeamDataCommand) *time.Time {
	if cmd.Watermark != nil {
		return cmd.Watermark
	}
	if !cmd.Incremental {
		return nil
	}
	wm, err := h.state.Watermark(ctx, SyncStateKey)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read sync watermark, running full sync", "error", err)
		return nil
	}
	return wm
}

func (h *SyncTeamDataHandler) syncMembers(ctx context.Context, members []domain.Member, report *SyncReport) {
	for start := 0; start < len(members); start += h.batchSize {
		batch := members[start:min(start+h.batchSize, len(members))]
		if err := h.members.UpsertBatch(ctx, batch); err != nil {
			h.logger.ErrorContext(ctx, "member batch failed", "offset", start, "size", len(batch), "error", err)
			report.record(fmt.Sprintf("members[%d:%d]", start, start+len(batch)), err)
			continue
		}
		report.UsersSynced += len(batch)
	}
}

func (h *SyncTeamDataHandler) syncTasks(ctx context.Context, projectID string, tasks []domain.Task, report *SyncReport) {
	for start := 0; start < len(tasks); start += h.batchSize {
		batch := tasks[start:min(start+h.batchSize, len(tasks))]
		if err := h.tasks.UpsertBatch(ctx, batch); err != nil {
			h.logger.ErrorContext(ctx, "task batch failed",
				"project_id", projectID, "offset", start, "size", len(batch), "error", err)
			report.record(fmt.Sprintf("project %s tasks[%d:%d]", projectID, start, start+len(batch)), err)
			continue
		}
		report.TasksSynced += len(batch)
	}
}

// normalizeMembers maps upstream users to members, dropping users without
// an ID and keeping the last occurrence of duplicates.
func normalizeMembers(users []projects.RemoteUser, syncedAt time.Time) []domain.Member {
	index := make(map[string]int, len(users))
	out := make([]domain.Member, 0, len(users))
	for _, u := range users {
		id := u.ID.String()
		if id == "" {
			continue
		}
		m := domain.Member{
			UserID:     id,
			Name:       u.Name,
			Email:      u.Email,
			Role:       u.Role,
			LastSynced: syncedAt,
		}
		if i, ok := index[id]; ok {
			out[i] = m
			continue
		}
		index[id] = len(out)
		out = append(out, m)
	}
	return out
}

// normalizeTasks maps upstream tasks of one project. Tasks not modified
// after since are skipped and counted.
func normalizeTasks(remote []projects.RemoteTask, projectID string, since *time.Time, syncedAt time.Time) ([]domain.Task, int) {
	index := make(map[string]int, len(remote))
	out := make([]domain.Task, 0, len(remote))
	skipped := 0
	for _, rt := range remote {
		id := rt.ID.String()
		if id == "" {
			continue
		}

		modified, ok := rt.ModifiedAt()
		if ok && since != nil && !modified.After(*since) {
			skipped++
			continue
		}
		if !ok {
			modified = syncedAt
		}

		t := domain.Task{
			TaskID:      id,
			UserID:      rt.OwnerID(),
			Name:        rt.Name,
			Status:      rt.Status.Name,
			Priority:    domain.ParsePriority(rt.Priority),
			ProjectID:   projectID,
			LastUpdated: modified,
		}
		if due, ok := rt.DueDate(); ok {
			t.DueDate = &due
		}

		if i, ok := index[id]; ok {
			out[i] = t
			continue
		}
		index[id] = len(out)
		out = append(out, t)
	}
	return out, skipped
}

// IsTerminalSyncError reports whether err aborted the whole run.
func IsTerminalSyncError(err error) bool {
	return errors.Is(err, domain.ErrSyncFailed)
}

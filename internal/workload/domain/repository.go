package domain

import (
	"context"
	"time"
)

// MemberRepository persists team members.
type MemberRepository interface {
	// UpsertBatch writes members in one transaction. Empty upstream skills
	// never overwrite stored ones.
	UpsertBatch(ctx context.Context, members []Member) error
	List(ctx context.Context) ([]Member, error)
	FindByID(ctx context.Context, userID string) (*Member, error)
	SetSkills(ctx context.Context, userID string, skills []string) error
}

// TaskRepository persists the task replica.
type TaskRepository interface {
	UpsertBatch(ctx context.Context, tasks []Task) error
	// ListActiveByUser returns the member's non-closed tasks ordered by
	// task ID.
	ListActiveByUser(ctx context.Context, userID string) ([]Task, error)
	Count(ctx context.Context) (int, error)
}

// CapacityRepository persists the capacity cache.
type CapacityRepository interface {
	// ReplaceSnapshots upserts all snapshots in one transaction, writing in
	// batches. Members without a snapshot in the call keep their row.
	ReplaceSnapshots(ctx context.Context, snapshots []CapacitySnapshot, batchSize int) error
	List(ctx context.Context) ([]CapacitySnapshot, error)
	FindByUser(ctx context.Context, userID string) (*CapacitySnapshot, error)
	// StatusByUser maps user IDs to their cached status.
	StatusByUser(ctx context.Context) (map[string]CapacityStatus, error)
}

// PriorityRepository persists the ranked priority cache.
type PriorityRepository interface {
	// ReplaceForUser makes entries the member's complete list: ranks
	// 1..len(entries) are upserted in one transaction and higher ranks are
	// pruned afterwards.
	ReplaceForUser(ctx context.Context, userID string, entries []PriorityEntry) error
	ListByUser(ctx context.Context, userID string) ([]PriorityEntry, error)
}

// SettingsRepository reads and writes the settings singleton.
type SettingsRepository interface {
	// Get returns DefaultSettings when no row exists.
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// SyncStateRepository stores ingestion watermarks.
type SyncStateRepository interface {
	Watermark(ctx context.Context, key string) (*time.Time, error)
	SaveWatermark(ctx context.Context, key string, watermark time.Time) error
}

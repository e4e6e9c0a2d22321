package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// SyncStateRepository implements domain.SyncStateRepository.
type SyncStateRepository struct {
	conn database.Connection
	d    dialect
}

// NewSyncStateRepository creates a sync state repository on conn.
func NewSyncStateRepository(conn database.Connection) *SyncStateRepository {
	return &SyncStateRepository{conn: conn, d: dialectFor(conn)}
}

// Watermark returns nil when key has never been synced.
func (r *SyncStateRepository) Watermark(ctx context.Context, key string) (*time.Time, error) {
	var w timeValue
	if err := r.conn.QueryRow(ctx, `SELECT watermark FROM sync_state WHERE key = ?`, key).Scan(&w); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return w.Ptr(), nil
}

// SaveWatermark records the watermark for key.
func (r *SyncStateRepository) SaveWatermark(ctx context.Context, key string, watermark time.Time) error {
	query := `
		INSERT INTO sync_state (key, watermark, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			watermark = excluded.watermark,
			updated_at = excluded.updated_at
	`
	if _, err := r.conn.Exec(ctx, query, key, r.d.timeArg(watermark), r.d.timeArg(time.Now())); err != nil {
		return &domain.StorageWriteError{Table: "sync_state", Err: err}
	}
	return nil
}

var (
	_ domain.MemberRepository    = (*MemberRepository)(nil)
	_ domain.TaskRepository      = (*TaskRepository)(nil)
	_ domain.CapacityRepository  = (*CapacityRepository)(nil)
	_ domain.PriorityRepository  = (*PriorityRepository)(nil)
	_ domain.SettingsRepository  = (*SettingsRepository)(nil)
	_ domain.SyncStateRepository = (*SyncStateRepository)(nil)
)

package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// SettingsRepository implements domain.SettingsRepository.
type SettingsRepository struct {
	conn database.Connection
	d    dialect
}

// NewSettingsRepository creates a settings repository on conn.
func NewSettingsRepository(conn database.Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn, d: dialectFor(conn)}
}

// Get returns domain.DefaultSettings when the row is missing.
func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.conn.QueryRow(ctx, `SELECT max_capacity_base, channel_id FROM settings WHERE id = 1`).
		Scan(&s.MaxCapacityBase, &s.ChannelID)
	if err != nil {
		if database.IsNoRows(err) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}
	return s, nil
}

// Save writes the singleton row.
func (r *SettingsRepository) Save(ctx context.Context, s domain.Settings) error {
	query := `
		INSERT INTO settings (id, max_capacity_base, channel_id, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			max_capacity_base = excluded.max_capacity_base,
			channel_id = excluded.channel_id,
			updated_at = excluded.updated_at
	`
	if _, err := r.conn.Exec(ctx, query, s.MaxCapacityBase, s.ChannelID, r.d.timeArg(time.Now())); err != nil {
		return &domain.StorageWriteError{Table: "settings", Err: err}
	}
	return nil
}

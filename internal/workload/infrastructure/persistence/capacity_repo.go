package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// CapacityRepository implements domain.CapacityRepository. The cache
// holds one row per member keyed by user_id, so a replace is an upsert
// and readers never see two snapshots for the same member.
type CapacityRepository struct {
	conn database.Connection
	d    dialect
}

// NewCapacityRepository creates a capacity repository on conn.
func NewCapacityRepository(conn database.Connection) *CapacityRepository {
	return &CapacityRepository{conn: conn, d: dialectFor(conn)}
}

const capacityColumns = `user_id, weighted_load, capacity_percent, active_task_count, status, last_updated`

// ReplaceSnapshots upserts every snapshot inside a single transaction,
// batchSize rows per statement. Any failure rolls the whole run back.
func (r *CapacityRepository) ReplaceSnapshots(ctx context.Context, snapshots []domain.CapacitySnapshot, batchSize int) error {
	if len(snapshots) == 0 {
		return nil
	}

	err := database.WithTransaction(ctx, r.conn, func(tx database.Executor) error {
		for _, span := range chunk(len(snapshots), batchSize) {
			batch := snapshots[span[0]:span[1]]
			query := `
				INSERT INTO capacity_cache (` + capacityColumns + `)
				VALUES ` + valueGroups(len(batch), 6) + `
				ON CONFLICT (user_id) DO UPDATE SET
					weighted_load = excluded.weighted_load,
					capacity_percent = excluded.capacity_percent,
					active_task_count = excluded.active_task_count,
					status = excluded.status,
					last_updated = excluded.last_updated
			`
			args := make([]any, 0, len(batch)*6)
			for _, s := range batch {
				args = append(args, s.UserID, s.WeightedLoad, s.CapacityPercent, s.ActiveTaskCount, string(s.Status), r.d.timeArg(s.LastUpdated))
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StorageWriteError{Table: "capacity_cache", Err: err}
	}
	return nil
}

// List returns every cached snapshot ordered by user ID.
func (r *CapacityRepository) List(ctx context.Context) ([]domain.CapacitySnapshot, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+capacityColumns+` FROM capacity_cache ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list capacity: %w", err)
	}
	defer rows.Close()

	var out []domain.CapacitySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindByUser returns nil when the member has no snapshot yet.
func (r *CapacityRepository) FindByUser(ctx context.Context, userID string) (*domain.CapacitySnapshot, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+capacityColumns+` FROM capacity_cache WHERE user_id = ?`, userID)
	s, err := scanSnapshot(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StatusByUser maps user IDs to their cached status.
func (r *CapacityRepository) StatusByUser(ctx context.Context) (map[string]domain.CapacityStatus, error) {
	rows, err := r.conn.Query(ctx, `SELECT user_id, status FROM capacity_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to read capacity statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.CapacityStatus)
	for rows.Next() {
		var userID, status string
		if err := rows.Scan(&userID, &status); err != nil {
			return nil, err
		}
		out[userID] = domain.CapacityStatus(status)
	}
	return out, rows.Err()
}

func scanSnapshot(row database.Row) (domain.CapacitySnapshot, error) {
	var (
		s           domain.CapacitySnapshot
		status      string
		lastUpdated timeValue
	)
	if err := row.Scan(&s.UserID, &s.WeightedLoad, &s.CapacityPercent, &s.ActiveTaskCount, &status, &lastUpdated); err != nil {
		return domain.CapacitySnapshot{}, err
	}
	s.Status = domain.CapacityStatus(status)
	s.LastUpdated = lastUpdated.Time
	return s, nil
}

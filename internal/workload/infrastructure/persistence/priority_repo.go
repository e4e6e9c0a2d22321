package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// PriorityRepository implements domain.PriorityRepository. Rows are keyed
// by (user_id, rank), which bounds every member's list by the highest
// rank ever written rather than by how many runs happened.
type PriorityRepository struct {
	conn database.Connection
	d    dialect
}

// NewPriorityRepository creates a priority repository on conn.
func NewPriorityRepository(conn database.Connection) *PriorityRepository {
	return &PriorityRepository{conn: conn, d: dialectFor(conn)}
}

const priorityColumns = `user_id, rank, item_id, score, source, metadata, scored_at`

// ReplaceForUser upserts entries as ranks 1..n and prunes ranks above n in
// one transaction, so readers never see fresh ranks next to stale ones. The
// prune runs under a savepoint: if it fails the fresh ranks still commit
// and the failure is reported as domain.ErrCachePruneFailed.
func (r *PriorityRepository) ReplaceForUser(ctx context.Context, userID string, entries []domain.PriorityEntry) error {
	args := make([]any, 0, len(entries)*7)
	for i, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", e.ItemID, err)
		}
		args = append(args, userID, i+1, e.ItemID, e.Score, string(e.Source), string(meta), r.d.timeArg(e.Timestamp))
	}

	var pruneErr error
	err := database.WithTransaction(ctx, r.conn, func(tx database.Executor) error {
		if len(entries) > 0 {
			query := `
				INSERT INTO priority_scores (` + priorityColumns + `)
				VALUES ` + valueGroups(len(entries), 7) + `
				ON CONFLICT (user_id, rank) DO UPDATE SET
					item_id = excluded.item_id,
					score = excluded.score,
					source = excluded.source,
					metadata = excluded.metadata,
					scored_at = excluded.scored_at
			`
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		pruneErr = prune(ctx, tx, userID, len(entries))
		return nil
	})
	if err != nil {
		return &domain.StorageWriteError{Table: "priority_scores", Err: err}
	}
	if pruneErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrCachePruneFailed, pruneErr)
	}
	return nil
}

// prune deletes the member's ranks above keep. A failed delete is rolled
// back to the savepoint so the enclosing transaction can still commit.
func prune(ctx context.Context, tx database.Executor, userID string, keep int) error {
	if _, err := tx.Exec(ctx, `SAVEPOINT priority_prune`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM priority_scores WHERE user_id = ? AND rank > ?`, userID, keep); err != nil {
		if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT priority_prune`); rbErr != nil {
			return fmt.Errorf("%w (savepoint rollback failed: %v)", err, rbErr)
		}
		return err
	}
	_, err := tx.Exec(ctx, `RELEASE SAVEPOINT priority_prune`)
	return err
}

// ListByUser returns the member's entries ordered by rank.
func (r *PriorityRepository) ListByUser(ctx context.Context, userID string) ([]domain.PriorityEntry, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+priorityColumns+` FROM priority_scores WHERE user_id = ? ORDER BY rank`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list priorities for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.PriorityEntry
	for rows.Next() {
		var (
			e      domain.PriorityEntry
			source string
			meta   string
			ts     timeValue
		)
		if err := rows.Scan(&e.UserID, &e.Rank, &e.ItemID, &e.Score, &source, &meta, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", e.ItemID, err)
		}
		e.Source = domain.Source(source)
		e.Timestamp = ts.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// TaskRepository implements domain.TaskRepository.
type TaskRepository struct {
	conn database.Connection
	d    dialect
}

// NewTaskRepository creates a task repository on conn.
func NewTaskRepository(conn database.Connection) *TaskRepository {
	return &TaskRepository{conn: conn, d: dialectFor(conn)}
}

const taskColumns = `task_id, user_id, name, status, priority, due_date, project_id, last_updated`

// UpsertBatch writes tasks in one transaction.
func (r *TaskRepository) UpsertBatch(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ` + valueGroups(len(tasks), 8) + `
		ON CONFLICT (task_id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			project_id = excluded.project_id,
			last_updated = excluded.last_updated
	`

	args := make([]any, 0, len(tasks)*8)
	for _, t := range tasks {
		args = append(args,
			t.TaskID, t.UserID, t.Name, t.Status, t.Priority.String(),
			r.d.nullableTimeArg(t.DueDate), t.ProjectID, r.d.timeArg(t.LastUpdated),
		)
	}

	err := database.WithTransaction(ctx, r.conn, func(tx database.Executor) error {
		_, err := tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return &domain.StorageWriteError{Table: "tasks", Err: err}
	}
	return nil
}

// ListActiveByUser returns the member's non-closed tasks ordered by task ID.
func (r *TaskRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = ? AND LOWER(TRIM(status)) <> 'closed'
		ORDER BY task_id
	`
	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for %s: %w", userID, err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var (
			t           domain.Task
			priority    string
			due         timeValue
			lastUpdated timeValue
		)
		if err := rows.Scan(&t.TaskID, &t.UserID, &t.Name, &t.Status, &priority, &due, &t.ProjectID, &lastUpdated); err != nil {
			return nil, err
		}
		t.Priority = domain.ParsePriority(priority)
		t.DueDate = due.Ptr()
		t.LastUpdated = lastUpdated.Time
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Count returns the number of replicated tasks.
func (r *TaskRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

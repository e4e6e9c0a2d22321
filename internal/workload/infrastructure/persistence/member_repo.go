package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// MemberRepository implements domain.MemberRepository.
type MemberRepository struct {
	conn database.Connection
	d    dialect
}

// NewMemberRepository creates a member repository on conn.
func NewMemberRepository(conn database.Connection) *MemberRepository {
	return &MemberRepository{conn: conn, d: dialectFor(conn)}
}

const memberColumns = `user_id, name, email, role, skills, last_synced`

// UpsertBatch writes members in one transaction. Skills are seeded on
// insert and otherwise only changed through SetSkills.
func (r *MemberRepository) UpsertBatch(ctx context.Context, members []domain.Member) error {
	if len(members) == 0 {
		return nil
	}

	query := `
		INSERT INTO team_members (` + memberColumns + `)
		VALUES ` + valueGroups(len(members), 6) + `
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			last_synced = excluded.last_synced
	`

	args := make([]any, 0, len(members)*6)
	for _, m := range members {
		skills, err := r.d.skillsArg(domain.NormalizeSkills(m.Skills))
		if err != nil {
			return err
		}
		args = append(args, m.UserID, m.Name, m.Email, m.Role, skills, r.d.timeArg(m.LastSynced))
	}

	err := database.WithTransaction(ctx, r.conn, func(tx database.Executor) error {
		_, err := tx.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return &domain.StorageWriteError{Table: "team_members", Err: err}
	}
	return nil
}

// List returns all members ordered by user ID.
func (r *MemberRepository) List(ctx context.Context) ([]domain.Member, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+memberColumns+` FROM team_members ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// FindByID returns domain.ErrMemberNotFound when userID is unknown.
func (r *MemberRepository) FindByID(ctx context.Context, userID string) (*domain.Member, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+memberColumns+` FROM team_members WHERE user_id = ?`, userID)
	m, err := r.scan(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

// SetSkills replaces the member's skill set.
func (r *MemberRepository) SetSkills(ctx context.Context, userID string, skills []string) error {
	arg, err := r.d.skillsArg(domain.NormalizeSkills(skills))
	if err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, `UPDATE team_members SET skills = ? WHERE user_id = ?`, arg, userID)
	if err != nil {
		return &domain.StorageWriteError{Table: "team_members", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) scan(row database.Row) (domain.Member, error) {
	var (
		m          domain.Member
		lastSynced timeValue
	)
	if err := row.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, r.d.skillsDest(&m.Skills), &lastSynced); err != nil {
		return domain.Member{}, err
	}
	m.LastSynced = lastSynced.Time
	return m, nil
}

// valueGroups renders rows groups of cols placeholders for a multi-row
// INSERT.
func valueGroups(rows, cols int) string {
	group := "(" + database.Placeholders(cols) + ")"
	groups := make([]string, rows)
	for i := range groups {
		groups[i] = group
	}
	return strings.Join(groups, ", ")
}

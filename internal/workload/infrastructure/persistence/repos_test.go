package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

func setupTestDB(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "teamflow.db")})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(ctx, conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMemberRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemberRepository(setupTestDB(t))

	err := repo.UpsertBatch(ctx, []domain.Member{
		{UserID: "u2", Name: "Bob", Email: "bob@example.com", Role: "dev", LastSynced: now},
		{UserID: "u1", Name: "Alice", Email: "alice@example.com", Role: "lead", Skills: []string{"React", "node"}, LastSynced: now},
	})
	require.NoError(t, err)

	members, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].UserID)
	assert.Equal(t, []string{"node", "react"}, members[0].Skills)
	assert.Equal(t, []string{}, members[1].Skills)
	assert.True(t, now.Equal(members[0].LastSynced))

	t.Run("upsert keeps stored skills", func(t *testing.T) {
		later := now.Add(time.Hour)
		require.NoError(t, repo.UpsertBatch(ctx, []domain.Member{{UserID: "u1", Name: "Alice B", LastSynced: later}}))

		m, err := repo.FindByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Alice B", m.Name)
		assert.Equal(t, []string{"node", "react"}, m.Skills)
		assert.True(t, later.Equal(m.LastSynced))
	})

	t.Run("set skills", func(t *testing.T) {
		require.NoError(t, repo.SetSkills(ctx, "u2", []string{"Database", "database"}))
		m, err := repo.FindByID(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"database"}, m.Skills)

		assert.ErrorIs(t, repo.SetSkills(ctx, "nobody", []string{"x"}), domain.ErrMemberNotFound)
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	})
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(setupTestDB(t))

	due := now.Add(48 * time.Hour)
	err := repo.UpsertBatch(ctx, []domain.Task{
		{TaskID: "t2", UserID: "u1", Name: "Ship", Status: "Open", Priority: domain.PriorityHigh, DueDate: &due, ProjectID: "p1", LastUpdated: now},
		{TaskID: "t1", UserID: "u1", Name: "Plan", Status: "In Progress", ProjectID: "p1", LastUpdated: now},
		{TaskID: "t3", UserID: "u1", Name: "Done", Status: "closed", ProjectID: "p1", LastUpdated: now},
		{TaskID: "t4", UserID: "u2", Name: "Other", Status: "Open", ProjectID: "p2", LastUpdated: now},
	})
	require.NoError(t, err)

	tasks, err := repo.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].TaskID)
	assert.Nil(t, tasks[0].DueDate)
	assert.Equal(t, domain.PriorityNone, tasks[0].Priority)
	assert.Equal(t, "t2", tasks[1].TaskID)
	require.NotNil(t, tasks[1].DueDate)
	assert.True(t, due.Equal(*tasks[1].DueDate))
	assert.Equal(t, domain.PriorityHigh, tasks[1].Priority)

	// Closing a task upstream removes it from the active set.
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Task{{TaskID: "t2", UserID: "u1", Name: "Ship", Status: "Closed", LastUpdated: now}}))
	tasks, err = repo.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCapacityRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCapacityRepository(setupTestDB(t))

	snaps := make([]domain.CapacitySnapshot, 0, 45)
	for i := 0; i < 45; i++ {
		snaps = append(snaps, domain.CapacitySnapshot{
			UserID:          "u" + string(rune('A'+i)),
			WeightedLoad:    float64(i),
			CapacityPercent: i,
			ActiveTaskCount: i,
			Status:          domain.StatusBusy,
			LastUpdated:     now,
		})
	}
	require.NoError(t, repo.ReplaceSnapshots(ctx, snaps, 20))

	t.Run("idempotent replace keeps one row per user", func(t *testing.T) {
		require.NoError(t, repo.ReplaceSnapshots(ctx, snaps, 20))
		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 45)
	})

	t.Run("replace supersedes", func(t *testing.T) {
		updated := snaps[0]
		updated.CapacityPercent = 95
		updated.Status = domain.StatusCritical
		require.NoError(t, repo.ReplaceSnapshots(ctx, []domain.CapacitySnapshot{updated}, 20))

		got, err := repo.FindByUser(ctx, updated.UserID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 95, got.CapacityPercent)
		assert.Equal(t, domain.StatusCritical, got.Status)

		statuses, err := repo.StatusByUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCritical, statuses[updated.UserID])
		assert.Equal(t, domain.StatusBusy, statuses[snaps[1].UserID])
	})

	t.Run("missing user", func(t *testing.T) {
		got, err := repo.FindByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPriorityRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPriorityRepository(setupTestDB(t))

	entries := func(n int) []domain.PriorityEntry {
		out := make([]domain.PriorityEntry, n)
		for i := range out {
			out[i] = domain.PriorityEntry{
				ItemID:    "t" + string(rune('a'+i)),
				UserID:    "u1",
				Score:     90 - i,
				Source:    domain.SourceProjects,
				Metadata:  domain.PriorityMetadata{Name: "task"},
				Timestamp: now,
			}
		}
		return out
	}

	require.NoError(t, repo.ReplaceForUser(ctx, "u1", entries(5)))
	got, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 90, got[0].Score)
	assert.Equal(t, "task", got[0].Metadata.Name)
	assert.Equal(t, domain.SourceProjects, got[0].Source)

	// A shorter list prunes stale ranks.
	require.NoError(t, repo.ReplaceForUser(ctx, "u1", entries(2)))
	got, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// No active tasks empties the list.
	require.NoError(t, repo.ReplaceForUser(ctx, "u1", nil))
	got, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// recordingConn records which executor ran each statement and can fail
// statements inside transactions that start with failPrefix.
type recordingConn struct {
	database.Connection
	failPrefix string
	outside    []string
	inside     []string
}

func (c *recordingConn) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	c.outside = append(c.outside, strings.TrimSpace(query))
	return c.Connection.Exec(ctx, query, args...)
}

func (c *recordingConn) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.Connection.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &recordingTx{Transaction: tx, conn: c}, nil
}

type recordingTx struct {
	database.Transaction
	conn *recordingConn
}

func (t *recordingTx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	q := strings.TrimSpace(query)
	t.conn.inside = append(t.conn.inside, q)
	if t.conn.failPrefix != "" && strings.HasPrefix(q, t.conn.failPrefix) {
		return nil, errors.New("lock timeout")
	}
	return t.Transaction.Exec(ctx, query, args...)
}

func priorityEntries(n int, score int) []domain.PriorityEntry {
	out := make([]domain.PriorityEntry, n)
	for i := range out {
		out[i] = domain.PriorityEntry{
			ItemID:    fmt.Sprintf("t%d", i+1),
			UserID:    "u1",
			Score:     score - i,
			Source:    domain.SourceProjects,
			Timestamp: now,
		}
	}
	return out
}

func TestPriorityRepository_PruneSharesTransaction(t *testing.T) {
	ctx := context.Background()
	conn := &recordingConn{Connection: setupTestDB(t)}
	repo := NewPriorityRepository(conn)

	require.NoError(t, repo.ReplaceForUser(ctx, "u1", priorityEntries(5, 90)))
	require.NoError(t, repo.ReplaceForUser(ctx, "u1", priorityEntries(2, 50)))

	assert.Empty(t, conn.outside, "every write goes through the transaction")
	var deletes int
	for _, q := range conn.inside {
		if strings.HasPrefix(q, "DELETE FROM priority_scores") {
			deletes++
		}
	}
	assert.Equal(t, 2, deletes)

	got, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 50, got[0].Score)
}

func TestPriorityRepository_PruneFailureKeepsFreshRanks(t *testing.T) {
	ctx := context.Background()
	conn := &recordingConn{Connection: setupTestDB(t)}
	repo := NewPriorityRepository(conn)

	require.NoError(t, repo.ReplaceForUser(ctx, "u1", priorityEntries(5, 90)))

	conn.failPrefix = "DELETE"
	err := repo.ReplaceForUser(ctx, "u1", priorityEntries(2, 50))
	require.ErrorIs(t, err, domain.ErrCachePruneFailed)

	var writeErr *domain.StorageWriteError
	assert.False(t, errors.As(err, &writeErr))

	got, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 5, "stale ranks survive a failed prune")
	assert.Equal(t, 50, got[0].Score)
	assert.Equal(t, 49, got[1].Score)
	assert.Equal(t, 88, got[2].Score)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(setupTestDB(t))

	s, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)

	require.NoError(t, repo.Save(ctx, domain.Settings{MaxCapacityBase: 20, ChannelID: "C123"}))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.MaxCapacityBase)
	assert.Equal(t, "C123", s.ChannelID)
}

func TestSyncStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncStateRepository(setupTestDB(t))

	w, err := repo.Watermark(ctx, "projects")
	require.NoError(t, err)
	assert.Nil(t, w)

	require.NoError(t, repo.SaveWatermark(ctx, "projects", now))
	require.NoError(t, repo.SaveWatermark(ctx, "projects", now.Add(time.Hour)))

	w, err = repo.Watermark(ctx, "projects")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, now.Add(time.Hour).Equal(*w))
}

func TestStorageWriteErrorWrapsDriverError(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	repo := NewCapacityRepository(conn)

	_, err := conn.Exec(ctx, `DROP TABLE capacity_cache`)
	require.NoError(t, err)

	err = repo.ReplaceSnapshots(ctx, []domain.CapacitySnapshot{{UserID: "u1", Status: domain.StatusBusy, LastUpdated: now}}, 20)
	var swe *domain.StorageWriteError
	require.True(t, errors.As(err, &swe))
	assert.Equal(t, "capacity_cache", swe.Table)
}

func TestTimeValue_Scan(t *testing.T) {
	var v timeValue
	require.NoError(t, v.Scan("2026-03-10T12:00:00Z"))
	assert.True(t, v.Valid)
	require.NoError(t, v.Scan([]byte("2026-03-10 12:00:00")))
	assert.True(t, now.Equal(v.Time))
	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v.Ptr())
	assert.Error(t, v.Scan("yesterday"))
	assert.Error(t, v.Scan(42))
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 20}, {20, 40}, {40, 45}}, chunk(45, 20))
	assert.Nil(t, chunk(0, 20))
	assert.Equal(t, [][2]int{{0, 3}}, chunk(3, 0))
}

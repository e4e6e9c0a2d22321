package commands

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/notify"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/persistence"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/projects"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type testStore struct {
	members    *persistence.MemberRepository
	tasks      *persistence.TaskRepository
	capacity   *persistence.CapacityRepository
	priorities *persistence.PriorityRepository
	settings   *persistence.SettingsRepository
	state      *persistence.SyncStateRepository
}

func setupStore(t *testing.T) testStore {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "teamflow.db")})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(ctx, conn))
	t.Cleanup(func() { conn.Close() })

	return testStore{
		members:    persistence.NewMemberRepository(conn),
		tasks:      persistence.NewTaskRepository(conn),
		capacity:   persistence.NewCapacityRepository(conn),
		priorities: persistence.NewPriorityRepository(conn),
		settings:   persistence.NewSettingsRepository(conn),
		state:      persistence.NewSyncStateRepository(conn),
	}
}

func (s testStore) seedMembers(t *testing.T, members ...domain.Member) {
	t.Helper()
	for i := range members {
		members[i].LastSynced = testNow
	}
	require.NoError(t, s.members.UpsertBatch(context.Background(), members))
}

func (s testStore) seedTasks(t *testing.T, tasks ...domain.Task) {
	t.Helper()
	for i := range tasks {
		if tasks[i].LastUpdated.IsZero() {
			tasks[i].LastUpdated = testNow
		}
		if tasks[i].Status == "" {
			tasks[i].Status = "Open"
		}
		if tasks[i].Name == "" {
			tasks[i].Name = "task " + tasks[i].TaskID
		}
	}
	require.NoError(t, s.tasks.UpsertBatch(context.Background(), tasks))
}

func dueIn(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

// fakeAPI is an in-memory projects API.
type fakeAPI struct {
	mu         sync.Mutex
	portals    []projects.Portal
	portalsErr error
	users      []projects.RemoteUser
	usersErr   error
	projects   []projects.Project
	tasks      map[string][]projects.RemoteTask
	taskErrs   map[string]error
	queries    []projects.TaskQuery
}

func (f *fakeAPI) FetchPortals(context.Context) ([]projects.Portal, error) {
	return f.portals, f.portalsErr
}

func (f *fakeAPI) FetchUsers(context.Context, string) ([]projects.RemoteUser, error) {
	return f.users, f.usersErr
}

func (f *fakeAPI) FetchProjects(context.Context, string) ([]projects.Project, error) {
	return f.projects, nil
}

func (f *fakeAPI) FetchTasks(_ context.Context, _, projectID string, q projects.TaskQuery) ([]projects.RemoteTask, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if err := f.taskErrs[projectID]; err != nil {
		return nil, err
	}
	return f.tasks[projectID], nil
}

func remoteTask(id, owner, status, priority string) projects.RemoteTask {
	rt := projects.RemoteTask{
		ID:       projects.ID(id),
		Name:     "task " + id,
		Status:   projects.TaskStatus{Name: status},
		Priority: priority,
	}
	if owner != "" {
		rt.Details.Owners = []projects.Owner{{ID: projects.ID(owner)}}
	}
	return rt
}

// failingTasks fails writes containing a given task ID and reads for a
// given user.
type failingTasks struct {
	*persistence.TaskRepository
	failTaskID string
	failUserID string
}

func (f failingTasks) UpsertBatch(ctx context.Context, tasks []domain.Task) error {
	for _, t := range tasks {
		if t.TaskID == f.failTaskID {
			return errors.New("disk full")
		}
	}
	return f.TaskRepository.UpsertBatch(ctx, tasks)
}

func (f failingTasks) ListActiveByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	if userID == f.failUserID {
		return nil, errors.New("read timeout")
	}
	return f.TaskRepository.ListActiveByUser(ctx, userID)
}

// mockNotifier is a mock implementation of notify.Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n notify.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

package jobs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/commands"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/notify"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/persistence"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/projects"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

type stubAPI struct {
	users []projects.RemoteUser
	tasks []projects.RemoteTask
}

func (s stubAPI) FetchPortals(context.Context) ([]projects.Portal, error) {
	return []projects.Portal{{ID: "portal-1", Name: "Acme"}}, nil
}

func (s stubAPI) FetchUsers(context.Context, string) ([]projects.RemoteUser, error) {
	return s.users, nil
}

func (s stubAPI) FetchProjects(context.Context, string) ([]projects.Project, error) {
	return []projects.Project{{ID: "proj-1", Name: "Website"}}, nil
}

func (s stubAPI) FetchTasks(context.Context, string, string, projects.TaskQuery) ([]projects.RemoteTask, error) {
	return s.tasks, nil
}

type pipelineFixture struct {
	pipeline  *Pipeline
	settings  *persistence.SettingsRepository
	capacity  *persistence.CapacityRepository
	published *eventbus.MemoryPublisher
	metrics   *observability.InMemoryMetrics
}

func newPipelineFixture(t *testing.T) pipelineFixture {
	t.Helper()
	ctx := context.Background()
	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: filepath.Join(t.TempDir(), "teamflow.db")})
	require.NoError(t, err)
	require.NoError(t, migrations.Run(ctx, conn))
	t.Cleanup(func() { conn.Close() })

	members := persistence.NewMemberRepository(conn)
	tasks := persistence.NewTaskRepository(conn)
	capacity := persistence.NewCapacityRepository(conn)
	priorities := persistence.NewPriorityRepository(conn)
	settings := persistence.NewSettingsRepository(conn)
	state := persistence.NewSyncStateRepository(conn)

	api := stubAPI{
		users: []projects.RemoteUser{{ID: "u1", Name: "Alice", Email: "alice@example.com"}},
		tasks: []projects.RemoteTask{{
			ID:       "t1",
			Name:     "Fix login",
			Status:   projects.TaskStatus{Name: "Open"},
			Priority: "Low",
			Details:  projects.TaskDetails{Owners: []projects.Owner{{ID: "u1"}}},
		}},
	}

	publisher := eventbus.NewMemoryPublisher()
	locker := lock.NewMemoryLocker()
	overload := commands.NewDetectOverloadHandler(settings, notify.NewBrokerNotifier(publisher), nil)
	metrics := observability.NewInMemoryMetrics()

	return pipelineFixture{
		pipeline: &Pipeline{
			Sync:       commands.NewSyncTeamDataHandler(api, members, tasks, state, 0, nil),
			Capacity:   commands.NewCalculateCapacityHandler(members, tasks, capacity, settings, overload, locker, 12, 2, nil),
			Priorities: commands.NewAggregatePrioritiesHandler(members, tasks, priorities, nil, locker, 5, 2, nil),
			Overload:   overload,
			Match:      queries.NewMatchCandidatesHandler(members, capacity, nil, nil, nil),
			Metrics:    metrics,
		},
		settings:  settings,
		capacity:  capacity,
		published: publisher,
		metrics:   metrics,
	}
}

func TestPipeline_SyncThenAggregate(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	invoker := NewInvoker(nil, f.metrics)

	out := invoker.Invoke(ctx, f.pipeline.SyncJob(), nil)
	require.True(t, out.Success, out.Error)
	report, ok := out.Result.(*commands.SyncReport)
	require.True(t, ok)
	assert.Equal(t, 1, report.UsersSynced)
	assert.Equal(t, 1, report.TasksSynced)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricUsersSynced))
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricTasksSynced))

	out = invoker.Invoke(ctx, f.pipeline.CapacityJob(), nil)
	require.True(t, out.Success, out.Error)
	capResult, ok := out.Result.(*commands.CapacityResult)
	require.True(t, ok)
	assert.Equal(t, 1, capResult.SnapshotsWritten)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricSnapshotsWritten))

	snap, err := f.capacity.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.StatusAvailable, snap.Status)

	out = invoker.Invoke(ctx, f.pipeline.PrioritiesJob(), json.RawMessage(`{"user_ids":["u1"]}`))
	require.True(t, out.Success, out.Error)
	prioResult, ok := out.Result.(*commands.PriorityAggregationResult)
	require.True(t, ok)
	assert.Equal(t, 1, prioResult.EntriesWritten)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricPriorityEntries))
}

func TestPipeline_OverloadJobPublishes(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	require.NoError(t, f.settings.Save(ctx, domain.Settings{MaxCapacityBase: 12, ChannelID: "C-mgmt"}))

	payload := json.RawMessage(`{"user_id":"u1","user_name":"Alice","old_status":"Busy","new_status":"Overloaded","capacity_percent":85}`)
	out := Invoke(ctx, f.pipeline.OverloadJob(), payload)
	require.True(t, out.Success, out.Error)

	result, ok := out.Result.(*commands.OverloadResult)
	require.True(t, ok)
	assert.True(t, result.Notified)

	msgs := f.published.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.RoutingKeyOverload, msgs[0].RoutingKey)
	assert.Contains(t, string(msgs[0].Payload), "Capacity Alert: Alice is now Overloaded (85%).")
}

func TestPipeline_MatchJobRejectsBlankDescription(t *testing.T) {
	f := newPipelineFixture(t)

	out := Invoke(context.Background(), f.pipeline.MatchJob(), json.RawMessage(`{"task_description":"  "}`))

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "task_description")
	assert.Nil(t, out.Result)
}

func TestPipeline_InvalidPayload(t *testing.T) {
	f := newPipelineFixture(t)

	out := Invoke(context.Background(), f.pipeline.CapacityJob(), json.RawMessage(`[1,2`))

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "invalid payload")
}

func TestPipeline_Lookup(t *testing.T) {
	p := &Pipeline{}
	for _, name := range []string{JobSync, JobCapacity, JobPriorities, JobOverload, JobMatch} {
		job, err := p.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, job.Name())
	}
	_, err := p.Lookup("reindex")
	require.Error(t, err)
}

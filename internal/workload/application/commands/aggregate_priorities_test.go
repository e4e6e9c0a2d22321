package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/services"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

func newPriorityHandler(s testStore, tasks domain.TaskRepository, locker lock.Locker) *AggregatePrioritiesHandler {
	if tasks == nil {
		tasks = s.tasks
	}
	h := NewAggregatePrioritiesHandler(s.members, tasks, s.priorities, nil, locker, 0, 0, nil)
	h.now = fixedNow
	return h
}

// seedSevenTasks gives u1 seven active tasks with these urgency scores:
// t1=75 t2=45 t3=15 t4=10 t5=80 t6=25 t7=25.
func seedSevenTasks(t *testing.T, s testStore) {
	s.seedTasks(t,
		domain.Task{TaskID: "t1", UserID: "u1", Priority: domain.PriorityHigh, DueDate: dueIn(12 * time.Hour)},
		domain.Task{TaskID: "t2", UserID: "u1", Priority: domain.PriorityMedium, DueDate: dueIn(48 * time.Hour)},
		domain.Task{TaskID: "t3", UserID: "u1", Priority: domain.PriorityLow},
		domain.Task{TaskID: "t4", UserID: "u1"},
		domain.Task{TaskID: "t5", UserID: "u1", Priority: domain.PriorityHigh, DueDate: dueIn(-2 * time.Hour)},
		domain.Task{TaskID: "t6", UserID: "u1", Priority: domain.PriorityMedium},
		domain.Task{TaskID: "t7", UserID: "u1", Priority: domain.PriorityLow, DueDate: dueIn(100 * time.Hour)},
	)
}

func TestAggregatePriorities_KeepsTopFive(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	s.seedMembers(t, domain.Member{UserID: "u1", Name: "Alice"}, domain.Member{UserID: "u2", Name: "Bob"})
	seedSevenTasks(t, s)

	result, err := newPriorityHandler(s, nil, nil).Handle(ctx, AggregatePrioritiesCommand{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersProcessed)
	assert.Zero(t, result.UsersFailed)
	assert.Equal(t, 5, result.EntriesWritten)

	entries, err := s.priorities.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var ids []string
	var scores []int
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Equal(t, domain.SourceProjects, e.Source)
		ids = append(ids, e.ItemID)
		scores = append(scores, e.Score)
	}
	assert.Equal(t, []string{"t5", "t1", "t2", "t6", "t7"}, ids, "ties keep fetch order")
	assert.Equal(t, []int{80, 75, 45, 25, 25}, scores)
	assert.Equal(t, "task t5", entries[0].Metadata.Name)

	empty, err := s.priorities.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAggregatePriorities_ReplacesStaleRanks(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	s.seedMembers(t, domain.Member{UserID: "u1"})
	seedSevenTasks(t, s)
	h := newPriorityHandler(s, nil, nil)

	_, err := h.Handle(ctx, AggregatePrioritiesCommand{})
	require.NoError(t, err)

	// Close everything but two tasks.
	var closing []domain.Task
	for _, id := range []string{"t1", "t2", "t5", "t6", "t7"} {
		closing = append(closing, domain.Task{TaskID: id, UserID: "u1", Status: "closed"})
	}
	s.seedTasks(t, closing...)

	result, err := h.Handle(ctx, AggregatePrioritiesCommand{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntriesWritten)

	entries, err := s.priorities.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t3", entries[0].ItemID)
	assert.Equal(t, "t4", entries[1].ItemID)
}

func TestAggregatePriorities_IsolatesMemberFailures(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	s.seedMembers(t, domain.Member{UserID: "u1"}, domain.Member{UserID: "u2"})
	s.seedTasks(t, domain.Task{TaskID: "a", UserID: "u1"}, domain.Task{TaskID: "b", UserID: "u2"})

	h := newPriorityHandler(s, failingTasks{TaskRepository: s.tasks, failUserID: "u2"}, nil)
	result, err := h.Handle(ctx, AggregatePrioritiesCommand{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 1, result.UsersFailed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "u2", result.Failures[0].UserID)
	assert.Contains(t, result.Failures[0].Error, "read timeout")

	var partial *domain.PartialBatchFailure
	assert.ErrorAs(t, result.Err(), &partial)

	entries, err := s.priorities.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAggregatePriorities_SkipsLockedMembers(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	s.seedMembers(t, domain.Member{UserID: "u1"}, domain.Member{UserID: "u2"})
	s.seedTasks(t, domain.Task{TaskID: "a", UserID: "u1"}, domain.Task{TaskID: "b", UserID: "u2"})

	locker := lock.NewMemoryLocker()
	_, ok, err := locker.TryAcquire(ctx, "priorities:u1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := newPriorityHandler(s, nil, locker).Handle(ctx, AggregatePrioritiesCommand{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 1, result.UsersSkipped)
	assert.Equal(t, []string{"u1"}, result.Skipped)

	entries, err := s.priorities.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Locks taken by the run itself are released.
	_, ok, err = locker.TryAcquire(ctx, "priorities:u2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAggregatePriorities_FilterByUser(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	s.seedMembers(t, domain.Member{UserID: "u1"}, domain.Member{UserID: "u2"})
	s.seedTasks(t, domain.Task{TaskID: "a", UserID: "u1"}, domain.Task{TaskID: "b", UserID: "u2"})

	result, err := newPriorityHandler(s, nil, nil).Handle(ctx, AggregatePrioritiesCommand{UserIDs: []string{"u2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UsersProcessed)

	entries, err := s.priorities.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingMembers struct {
	domain.MemberRepository
}

func (failingMembers) List(context.Context) ([]domain.Member, error) {
	return nil, errors.New("connection refused")
}

func TestAggregatePriorities_MemberListFailureAborts(t *testing.T) {
	s := setupStore(t)
	h := NewAggregatePrioritiesHandler(failingMembers{}, s.tasks, s.priorities, nil, nil, 5, 5, nil)

	_, err := h.Handle(context.Background(), AggregatePrioritiesCommand{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRankTasks(t *testing.T) {
	engine := services.NewUrgencyEngine(services.DefaultUrgencyEngineConfig())
	tasks := []domain.Task{
		{TaskID: "a", Status: "Open", LastUpdated: testNow},
		{TaskID: "b", Status: "Closed", Priority: domain.PriorityHigh, LastUpdated: testNow},
		{TaskID: "c", Status: "Open", LastUpdated: testNow},
		{TaskID: "d", Status: "Open", Priority: domain.PriorityLow, LastUpdated: testNow},
	}

	entries := RankTasks(engine, "u1", tasks, 2, testNow)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].ItemID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "a", entries[1].ItemID, "equal scores keep input order")
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "u1", entries[1].UserID)

	assert.Empty(t, RankTasks(engine, "u1", nil, 5, testNow))
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingJob(name string, calls *atomic.Int64, err error) Job {
	return NewJob(name, func(context.Context, json.RawMessage) (any, error) {
		calls.Add(1)
		return nil, err
	})
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	var calls atomic.Int64
	s := NewScheduler(nil, nil, Schedule{Job: countingJob("tick", &calls, nil), Interval: 10 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())

	stats := s.GetStats()["tick"]
	assert.GreaterOrEqual(t, stats.Runs, int64(2))
	assert.Zero(t, stats.Failures)
	assert.NotNil(t, stats.LastSuccessAt)
	assert.False(t, stats.Running)
}

func TestScheduler_RunOnStart(t *testing.T) {
	var calls atomic.Int64
	s := NewScheduler(nil, nil, Schedule{Job: countingJob("boot", &calls, nil), Interval: time.Hour, RunOnStart: true})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_RecordsFailures(t *testing.T) {
	var calls atomic.Int64
	s := NewScheduler(nil, nil, Schedule{Job: countingJob("fails", &calls, errors.New("nope")), Interval: time.Hour})

	out, err := s.RunNow(context.Background(), "fails")
	require.NoError(t, err)
	assert.False(t, out.Success)

	stats := s.GetStats()["fails"]
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, "nope", stats.LastError)
	assert.Nil(t, stats.LastSuccessAt)
}

func TestScheduler_DoesNotOverlapSameJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	job := NewJob("slow", func(context.Context, json.RawMessage) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	})
	s := NewScheduler(nil, nil, Schedule{Job: job, Interval: time.Hour})

	done := make(chan Outcome)
	go func() {
		out, _ := s.RunNow(context.Background(), "slow")
		done <- out
	}()
	<-started

	_, err := s.RunNow(context.Background(), "slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	assert.True(t, s.GetStats()["slow"].Running)

	close(release)
	out := <-done
	assert.True(t, out.Success)
}

func TestScheduler_UnknownJob(t *testing.T) {
	s := NewScheduler(nil, nil)
	_, err := s.RunNow(context.Background(), "missing")
	require.Error(t, err)
}

func TestScheduler_IgnoresDisabledSchedules(t *testing.T) {
	var calls atomic.Int64
	s := NewScheduler(nil, nil, Schedule{Job: countingJob("off", &calls, nil), Interval: 0})
	assert.Empty(t, s.GetStats())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(nil, nil, Schedule{Job: countingJob("ctx", &calls, nil), Interval: 5 * time.Millisecond})
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Stop()
	assert.False(t, s.IsRunning())
}

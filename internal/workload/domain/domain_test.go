package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected Priority
	}{
		{"High", PriorityHigh},
		{"high", PriorityHigh},
		{" MEDIUM ", PriorityMedium},
		{"low", PriorityLow},
		{"None", PriorityNone},
		{"", PriorityNone},
		{"urgent", PriorityNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePriority(tt.input))
		})
	}
	assert.False(t, PriorityNone.IsSet())
	assert.True(t, PriorityLow.IsSet())
}

func TestTask_IsActive(t *testing.T) {
	assert.True(t, Task{Status: "Open"}.IsActive())
	assert.True(t, Task{Status: ""}.IsActive())
	assert.False(t, Task{Status: "Closed"}.IsActive())
	assert.False(t, Task{Status: "closed"}.IsActive())
}

func TestTask_HoursUntilDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-6 * time.Hour)
	task := Task{DueDate: &due}

	require.True(t, task.HasDueDate())
	assert.Equal(t, -6.0, task.HoursUntilDue(now))
	assert.False(t, Task{}.HasDueDate())
}

func TestNormalizeSkills(t *testing.T) {
	assert.Equal(t, []string{"design", "react"}, NormalizeSkills([]string{"React", " design", "react", ""}))
	assert.Empty(t, NormalizeSkills(nil))

	m := Member{UserID: "u1", Skills: []string{"react"}}
	assert.True(t, m.HasSkill("React"))
	assert.Equal(t, "u1", m.DisplayName())
}

func TestCapacityStatus(t *testing.T) {
	assert.True(t, StatusOverloaded.IsAlerting())
	assert.True(t, StatusCritical.IsAlerting())
	assert.False(t, StatusBusy.IsAlerting())
	assert.False(t, CapacityStatus("Idle").IsValid())
}

func TestSettings_CapacityBase(t *testing.T) {
	assert.Equal(t, 20.0, Settings{MaxCapacityBase: 20}.CapacityBase(12))
	assert.Equal(t, 15.0, Settings{}.CapacityBase(15))
	assert.Equal(t, DefaultMaxCapacityBase, Settings{MaxCapacityBase: -1}.CapacityBase(0))
	assert.False(t, DefaultSettings().HasChannel())
}

func TestPartialBatchFailure(t *testing.T) {
	var agg PartialBatchFailure
	assert.NoError(t, agg.ErrOrNil())

	storage := &StorageWriteError{Table: "tasks", Err: errors.New("disk full")}
	agg.Add("batch-1", storage)

	err := agg.ErrOrNil()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-1")

	var swe *StorageWriteError
	assert.True(t, errors.As(err, &swe))
	assert.Equal(t, "tasks", swe.Table)
}

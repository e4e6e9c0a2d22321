package domain

import (
	"strings"
	"time"
)

// StatusClosed is the only upstream status treated as inactive.
const StatusClosed = "Closed"

// Task is the local replica of an upstream task.
type Task struct {
	TaskID      string
	UserID      string
	Name        string
	Status      string
	Priority    Priority
	DueDate     *time.Time
	ProjectID   string
	LastUpdated time.Time
}

// IsActive reports whether the task still counts toward workload.
func (t Task) IsActive() bool {
	return !strings.EqualFold(strings.TrimSpace(t.Status), StatusClosed)
}

// HasDueDate reports whether the task carries a due date.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// HoursUntilDue returns the signed number of hours between now and the
// due date. Callers must check HasDueDate first.
func (t Task) HoursUntilDue(now time.Time) float64 {
	return t.DueDate.Sub(now).Hours()
}

package services

import (
	"math"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// PriorityWeight is the load a task adds before the due multiplier.
func PriorityWeight(p domain.Priority) float64 {
	switch p {
	case domain.PriorityHigh:
		return 3
	case domain.PriorityMedium:
		return 2
	default:
		return 1
	}
}

// DueMultiplier scales load by deadline proximity. Overdue tasks count
// as due within a day.
func DueMultiplier(task domain.Task, now time.Time) float64 {
	if !task.HasDueDate() {
		return 1.0
	}
	h := task.HoursUntilDue(now)
	days := h / 24
	switch {
	case h < 24:
		return 2.0
	case days <= 3:
		return 1.5
	case days <= 7:
		return 1.2
	default:
		return 1.0
	}
}

// CapacityContribution is the weighted load of a single task.
func CapacityContribution(task domain.Task, now time.Time) float64 {
	return PriorityWeight(task.Priority) * DueMultiplier(task, now)
}

// CapacityPercent converts load into a 0..100 percentage of base.
func CapacityPercent(load, base float64) int {
	if base <= 0 {
		base = domain.DefaultMaxCapacityBase
	}
	pct := math.Round(load / base * 100)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// StatusForPercent buckets a percentage. Thresholds are checked from the
// most severe down, so boundaries resolve upward.
func StatusForPercent(pct int) domain.CapacityStatus {
	switch {
	case pct >= 90:
		return domain.StatusCritical
	case pct >= 80:
		return domain.StatusOverloaded
	case pct <= 40:
		return domain.StatusAvailable
	default:
		return domain.StatusBusy
	}
}

// ComputeCapacity builds a snapshot for userID from tasks. Closed tasks
// are ignored even if the caller passes them.
func ComputeCapacity(userID string, tasks []domain.Task, base float64, now time.Time) domain.CapacitySnapshot {
	var (
		load   float64
		active int
	)
	for _, t := range tasks {
		if !t.IsActive() {
			continue
		}
		load += CapacityContribution(t, now)
		active++
	}

	pct := CapacityPercent(load, base)
	return domain.CapacitySnapshot{
		UserID:          userID,
		WeightedLoad:    load,
		CapacityPercent: pct,
		ActiveTaskCount: active,
		Status:          StatusForPercent(pct),
		LastUpdated:     now,
	}
}

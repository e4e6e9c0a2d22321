package domain

import "time"

// CapacityStatus buckets a capacity percentage.
type CapacityStatus string

const (
	StatusAvailable  CapacityStatus = "Available"
	StatusBusy       CapacityStatus = "Busy"
	StatusOverloaded CapacityStatus = "Overloaded"
	StatusCritical   CapacityStatus = "Critical"
)

// IsAlerting reports whether the status should trigger an overload alert.
func (s CapacityStatus) IsAlerting() bool {
	return s == StatusOverloaded || s == StatusCritical
}

// IsValid returns true for the four known statuses.
func (s CapacityStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOverloaded, StatusCritical:
		return true
	default:
		return false
	}
}

// CapacitySnapshot is the cached capacity row of one member.
type CapacitySnapshot struct {
	UserID          string
	WeightedLoad    float64
	CapacityPercent int
	ActiveTaskCount int
	Status          CapacityStatus
	LastUpdated     time.Time
}

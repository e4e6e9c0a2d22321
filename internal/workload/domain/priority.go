package domain

import "strings"

// Priority is the normalized task priority. The zero value means unset.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority normalizes an upstream priority label. Matching is
// case-insensitive; "none" and anything unrecognized map to PriorityNone.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	case "low":
		return PriorityLow
	default:
		return PriorityNone
	}
}

// String returns the stored representation.
func (p Priority) String() string {
	return string(p)
}

// IsSet reports whether a priority was given.
func (p Priority) IsSet() bool {
	return p != PriorityNone
}

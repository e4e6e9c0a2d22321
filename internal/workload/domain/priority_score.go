package domain

import "time"

// Source identifies where a scored item came from.
type Source string

// SourceProjects is the projects API.
const SourceProjects Source = "Projects"

// DefaultTopN is how many priority entries are kept per member.
const DefaultTopN = 5

// PriorityMetadata is carried alongside a ranked entry for display.
type PriorityMetadata struct {
	Name    string     `json:"name"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// PriorityEntry is one ranked row of a member's priority list.
type PriorityEntry struct {
	ItemID    string
	UserID    string
	Rank      int
	Score     int
	Source    Source
	Metadata  PriorityMetadata
	Timestamp time.Time
}

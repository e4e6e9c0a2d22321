package queries

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// PriorityDTO is one ranked entry of a member's priority list.
type PriorityDTO struct {
	Rank     int        `json:"rank"`
	ItemID   string     `json:"item_id"`
	Name     string     `json:"name"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Score    int        `json:"score"`
	Source   string     `json:"source"`
	ScoredAt time.Time  `json:"scored_at"`
}

// ListPrioritiesQuery selects a member's priority list.
type ListPrioritiesQuery struct {
	UserID string
}

// ListPrioritiesHandler reads the priority cache.
type ListPrioritiesHandler struct {
	priorities domain.PriorityRepository
}

// NewListPrioritiesHandler creates a new ListPrioritiesHandler.
func NewListPrioritiesHandler(priorities domain.PriorityRepository) *ListPrioritiesHandler {
	return &ListPrioritiesHandler{priorities: priorities}
}

// Handle executes the ListPrioritiesQuery.
func (h *ListPrioritiesHandler) Handle(ctx context.Context, q ListPrioritiesQuery) ([]PriorityDTO, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, &domain.ValidationError{Field: "user_id", Message: "is required"}
	}

	entries, err := h.priorities.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PriorityDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, PriorityDTO{
			Rank:     e.Rank,
			ItemID:   e.ItemID,
			Name:     e.Metadata.Name,
			DueDate:  e.Metadata.DueDate,
			Score:    e.Score,
			Source:   string(e.Source),
			ScoredAt: e.Timestamp,
		})
	}
	return dtos, nil
}

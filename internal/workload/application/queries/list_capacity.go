package queries

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// CapacityDTO is a cached capacity row joined with the member name.
type CapacityDTO struct {
	UserID          string                `json:"user_id"`
	Name            string                `json:"name"`
	WeightedLoad    float64               `json:"weighted_load"`
	CapacityPercent int                   `json:"capacity_percent"`
	ActiveTaskCount int                   `json:"active_task_count"`
	Status          domain.CapacityStatus `json:"status"`
	LastUpdated     time.Time             `json:"last_updated"`
}

// ListCapacityQuery filters the capacity listing.
type ListCapacityQuery struct {
	Status domain.CapacityStatus // empty means all
	SortBy string                // "load" sorts by percent descending; default is user ID
}

// ListCapacityHandler reads the capacity cache.
type ListCapacityHandler struct {
	capacity domain.CapacityRepository
	members  domain.MemberRepository
}

// NewListCapacityHandler creates a new ListCapacityHandler.
func NewListCapacityHandler(capacity domain.CapacityRepository, members domain.MemberRepository) *ListCapacityHandler {
	return &ListCapacityHandler{capacity: capacity, members: members}
}

// Handle executes the ListCapacityQuery.
func (h *ListCapacityHandler) Handle(ctx context.Context, q ListCapacityQuery) ([]CapacityDTO, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", q.Status)}
	}

	snapshots, err := h.capacity.List(ctx)
	if err != nil {
		return nil, err
	}
	names, err := memberNames(ctx, h.members)
	if err != nil {
		return nil, err
	}

	dtos := make([]CapacityDTO, 0, len(snapshots))
	for _, s := range snapshots {
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		name := names[s.UserID]
		if name == "" {
			name = s.UserID
		}
		dtos = append(dtos, CapacityDTO{
			UserID:          s.UserID,
			Name:            name,
			WeightedLoad:    s.WeightedLoad,
			CapacityPercent: s.CapacityPercent,
			ActiveTaskCount: s.ActiveTaskCount,
			Status:          s.Status,
			LastUpdated:     s.LastUpdated,
		})
	}

	if q.SortBy == "load" {
		sort.SliceStable(dtos, func(i, j int) bool {
			return dtos[i].CapacityPercent > dtos[j].CapacityPercent
		})
	}
	return dtos, nil
}

func memberNames(ctx context.Context, repo domain.MemberRepository) (map[string]string, error) {
	members, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.DisplayName()
	}
	return names, nil
}

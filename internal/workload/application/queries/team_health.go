package queries

import (
	"context"
	"math"
)

// TeamHealth summarizes the capacity cache for the team widget.
type TeamHealth struct {
	Members        int            `json:"members"`
	AveragePercent int            `json:"average_percent"`
	ByStatus       map[string]int `json:"by_status"`
	Overloaded     []CapacityDTO  `json:"overloaded"`
	MostLoaded     *CapacityDTO   `json:"most_loaded,omitempty"`
}

// GetTeamHealthHandler aggregates cached capacity.
type GetTeamHealthHandler struct {
	list *ListCapacityHandler
}

// NewGetTeamHealthHandler creates a new GetTeamHealthHandler.
func NewGetTeamHealthHandler(list *ListCapacityHandler) *GetTeamHealthHandler {
	return &GetTeamHealthHandler{list: list}
}

// Handle computes the summary. Overloaded lists Overloaded and Critical
// members, most loaded first.
func (h *GetTeamHealthHandler) Handle(ctx context.Context) (*TeamHealth, error) {
	rows, err := h.list.Handle(ctx, ListCapacityQuery{SortBy: "load"})
	if err != nil {
		return nil, err
	}

	health := &TeamHealth{
		Members:    len(rows),
		ByStatus:   make(map[string]int),
		Overloaded: []CapacityDTO{},
	}
	total := 0
	for _, r := range rows {
		total += r.CapacityPercent
		health.ByStatus[string(r.Status)]++
		if r.Status.IsAlerting() {
			health.Overloaded = append(health.Overloaded, r)
		}
	}
	if len(rows) > 0 {
		health.AveragePercent = int(math.Round(float64(total) / float64(len(rows))))
		top := rows[0]
		health.MostLoaded = &top
	}
	return health, nil
}

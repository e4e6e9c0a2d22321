package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

type capacityListInput struct {
	Status string `json:"status,omitempty"`
	SortBy string `json:"sort_by,omitempty"`
}

type prioritiesListInput struct {
	UserID string `json:"user_id" jsonschema:"required"`
}

type matchInput struct {
	TaskDescription string `json:"task_description" jsonschema:"required"`
	ProjectID       string `json:"project_id,omitempty"`
}

type matchOutput struct {
	RequiredSkills []string            `json:"required_skills"`
	Candidates     []queries.Candidate `json:"candidates"`
}

func registerWorkloadTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("capacity.list").
		Description("List cached member capacity, optionally filtered by status (Available, Busy, Overloaded, Critical). sort_by=load puts the most loaded first.").
		Handler(capacityList(app))

	srv.Tool("priorities.list").
		Description("List a member's ranked top tasks by urgency score").
		Handler(prioritiesList(app))

	srv.Tool("staffing.match").
		Description("Suggest the three best members for a task description, scored by availability, skill fit and performance").
		Handler(staffingMatch(app))

	srv.Tool("team.health").
		Description("Summarize team capacity: average load, members per status and who is overloaded").
		Handler(teamHealth(app))

	return nil
}

func capacityList(app *cli.App) func(ctx context.Context, input capacityListInput) ([]queries.CapacityDTO, error) {
	return func(ctx context.Context, input capacityListInput) ([]queries.CapacityDTO, error) {
		if app == nil || app.ListCapacityHandler == nil {
			return nil, notConfigured("capacity listing")
		}
		return app.ListCapacityHandler.Handle(ctx, queries.ListCapacityQuery{
			Status: domain.CapacityStatus(input.Status),
			SortBy: input.SortBy,
		})
	}
}

func prioritiesList(app *cli.App) func(ctx context.Context, input prioritiesListInput) ([]queries.PriorityDTO, error) {
	return func(ctx context.Context, input prioritiesListInput) ([]queries.PriorityDTO, error) {
		if app == nil || app.ListPrioritiesHandler == nil {
			return nil, notConfigured("priority listing")
		}
		return app.ListPrioritiesHandler.Handle(ctx, queries.ListPrioritiesQuery{UserID: input.UserID})
	}
}

func staffingMatch(app *cli.App) func(ctx context.Context, input matchInput) (*matchOutput, error) {
	return func(ctx context.Context, input matchInput) (*matchOutput, error) {
		if app == nil || app.MatchCandidates == nil {
			return nil, notConfigured("staffing match")
		}
		candidates, err := app.MatchCandidates.Handle(ctx, queries.MatchCandidatesQuery{
			TaskDescription: input.TaskDescription,
			ProjectID:       input.ProjectID,
		})
		if err != nil {
			return nil, err
		}
		required := app.MatchCandidates.RequiredSkills(input.TaskDescription)
		if required == nil {
			required = []string{}
		}
		return &matchOutput{RequiredSkills: required, Candidates: candidates}, nil
	}
}

func teamHealth(app *cli.App) func(ctx context.Context, input struct{}) (*queries.TeamHealth, error) {
	return func(ctx context.Context, input struct{}) (*queries.TeamHealth, error) {
		if app == nil || app.GetTeamHealthHandler == nil {
			return nil, notConfigured("team health")
		}
		return app.GetTeamHealthHandler.Handle(ctx)
	}
}

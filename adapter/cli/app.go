package cli

import (
	"context"

	appcontainer "github.com/felixgeelhaar/teamflow/internal/app"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

// App holds the CLI application dependencies. The MCP server shares it.
type App struct {
	// Jobs
	Jobs    map[string]jobs.Job
	Invoker *jobs.Invoker

	// Query handlers
	ListCapacityHandler   *queries.ListCapacityHandler
	ListPrioritiesHandler *queries.ListPrioritiesHandler
	GetTeamHealthHandler  *queries.GetTeamHealthHandler
	MatchCandidates       *queries.MatchCandidatesHandler

	// Repositories
	Members  domain.MemberRepository
	Settings domain.SettingsRepository

	Health  *observability.HealthRegistry
	Migrate func(ctx context.Context) error
}

// NewApp creates the CLI application backed by the container.
func NewApp(c *appcontainer.Container) *App {
	return &App{
		Jobs:                  c.Pipeline.Jobs(),
		Invoker:               c.Invoker,
		ListCapacityHandler:   c.ListCapacityHandler,
		ListPrioritiesHandler: c.ListPrioritiesHandler,
		GetTeamHealthHandler:  c.GetTeamHealthHandler,
		MatchCandidates:       c.MatchCandidatesHandler,
		Members:               c.Repos.Members,
		Settings:              c.Repos.Settings,
		Health:                c.Health,
		Migrate: func(ctx context.Context) error {
			return migrations.Run(ctx, c.DBConn)
		},
	}
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

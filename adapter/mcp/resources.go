package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
)

// RegisterResources registers MCP resources that expose TeamFlow data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("teamflow://capacity").
		Name("Team Capacity").
		Description("Cached capacity for every member, most loaded first").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.ListCapacityHandler == nil {
				return nil, notConfigured("capacity listing")
			}
			rows, err := app.ListCapacityHandler.Handle(ctx, queries.ListCapacityQuery{SortBy: "load"})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, rows)
		})

	srv.Resource("teamflow://team/health").
		Name("Team Health").
		Description("Average load, members per status and overloaded members").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.GetTeamHealthHandler == nil {
				return nil, notConfigured("team health")
			}
			health, err := app.GetTeamHealthHandler.Handle(ctx)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, health)
		})

	srv.Resource("teamflow://members").
		Name("Team Members").
		Description("Synced members with their skills").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Members == nil {
				return nil, notConfigured("member listing")
			}
			members, err := app.Members.List(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(members))
			for _, m := range members {
				out = append(out, map[string]any{
					"user_id": m.UserID,
					"name":    m.DisplayName(),
					"role":    m.Role,
					"skills":  m.Skills,
				})
			}
			return jsonResource(uri, out)
		})

	return nil
}

package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
)

type jobRunInput struct {
	Name    string         `json:"name" jsonschema:"required"`
	Payload map[string]any `json:"payload,omitempty"`
}

func registerJobTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("job.run").
		Description("Run a pipeline job now: sync, capacity, priorities, overload or match. Returns the job outcome.").
		Handler(runJob(app))

	return nil
}

// runJob returns failed outcomes as results, not tool errors, so callers
// see the correlation ID and partial results.
func runJob(app *cli.App) func(ctx context.Context, input jobRunInput) (*jobs.Outcome, error) {
	return func(ctx context.Context, input jobRunInput) (*jobs.Outcome, error) {
		if app == nil || app.Invoker == nil {
			return nil, notConfigured("job execution")
		}
		if input.Name == "" {
			return nil, errors.New("name is required")
		}
		job, ok := app.Jobs[input.Name]
		if !ok {
			return nil, fmt.Errorf("unknown job %q", input.Name)
		}
		payload, err := encodePayload(input.Payload)
		if err != nil {
			return nil, err
		}
		out := app.Invoker.Invoke(ctx, job, payload)
		return &out, nil
	}
}

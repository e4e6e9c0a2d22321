package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common TeamFlow workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("capacity_review").
		Description("Review team workload and suggest how to rebalance overloaded members.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Capacity Review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review my team's workload. Please:

1. Read the teamflow://team/health resource for the summary
2. For every Overloaded or Critical member, list their top tasks with the priorities.list tool
3. Use staffing.match with each of those task names to find who could take them over

Recommend at most three reassignments, starting with the most urgent task of the most loaded member.
Do not suggest moving work to anyone who is already Overloaded or Critical.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("staff_task").
		Description("Find the right person for a new task.").
		Argument("task_description", "Description of the task to staff", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			desc := args["task_description"]
			if desc == "" {
				desc = "[Please describe the task]"
			}
			return &mcp.PromptResult{
				Description: "Task Staffing",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`I need someone for this task:

**Task:** %s

Call staffing.match with the description and explain the top candidate's score breakdown.
If every candidate is above 70%% capacity, say so and suggest which of their current tasks could wait.`, desc),
						},
					},
				},
			}, nil
		})

	return nil
}

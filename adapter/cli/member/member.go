package member

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

// Cmd is the members command group.
var Cmd = &cobra.Command{
	Use:     "members",
	Aliases: []string{"member"},
	Short:   "Inspect synced members and manage their skills",
}

type memberView struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Role   string   `json:"role,omitempty"`
	Skills []string `json:"skills"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List synced members",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Members == nil {
			return cli.ErrNotConfigured
		}
		members, err := app.Members.List(cmd.Context())
		if err != nil {
			return err
		}
		views := make([]memberView, 0, len(members))
		for _, m := range members {
			skills := m.Skills
			if skills == nil {
				skills = []string{}
			}
			views = append(views, memberView{UserID: m.UserID, Name: m.DisplayName(), Email: m.Email, Role: m.Role, Skills: skills})
		}
		return cli.PrintJSON(cmd.OutOrStdout(), views)
	},
}

var skillsCmd = &cobra.Command{
	Use:   "skills <user_id> [skill...]",
	Short: "Replace a member's skills; no skills clears them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Members == nil {
			return cli.ErrNotConfigured
		}
		userID := args[0]
		skills := domain.NormalizeSkills(args[1:])
		if err := app.Members.SetSkills(cmd.Context(), userID, skills); err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), map[string]any{"user_id": userID, "skills": skills})
	},
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(skillsCmd)
}

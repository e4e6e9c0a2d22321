package priority

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
)

var (
	runUserIDs []string
	listUserID string
)

// Cmd is the priorities command group.
var Cmd = &cobra.Command{
	Use:     "priorities",
	Aliases: []string{"priority"},
	Short:   "Rank and inspect member task priorities",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute every member's top tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunJob(cmd, jobs.JobPriorities, jobs.UsersPayload{UserIDs: runUserIDs})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a member's cached priorities",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListPrioritiesHandler == nil {
			return cli.ErrNotConfigured
		}
		rows, err := app.ListPrioritiesHandler.Handle(cmd.Context(), queries.ListPrioritiesQuery{UserID: listUserID})
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runUserIDs, "user", nil, "limit the run to these user IDs")
	listCmd.Flags().StringVar(&listUserID, "user", "", "member user ID (required)")

	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(listCmd)
}

package capacity

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

var (
	runUserIDs []string
	listStatus string
	listSort   string
)

// Cmd is the capacity command group.
var Cmd = &cobra.Command{
	Use:   "capacity",
	Short: "Compute and inspect member capacity",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute the capacity cache and send overload alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunJob(cmd, jobs.JobCapacity, jobs.UsersPayload{UserIDs: runUserIDs})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached capacity snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListCapacityHandler == nil {
			return cli.ErrNotConfigured
		}
		rows, err := app.ListCapacityHandler.Handle(cmd.Context(), queries.ListCapacityQuery{
			Status: domain.CapacityStatus(listStatus),
			SortBy: listSort,
		})
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runUserIDs, "user", nil, "limit the run to these user IDs")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (Available, Busy, Overloaded, Critical)")
	listCmd.Flags().StringVar(&listSort, "sort", "", `"load" sorts by capacity, highest first`)

	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(listCmd)
}

// Package pipeline holds the job-trigger commands that do not belong to a
// single cache.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/commands"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
)

var (
	syncFull  bool
	syncSince string

	matchProject string

	overloadUser    string
	overloadName    string
	overloadFrom    string
	overloadTo      string
	overloadPercent int

	jobPayload string
)

// SyncCmd pulls users and tasks from the projects API.
var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync members and tasks from the projects API",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := jobs.SyncPayload{Incremental: !syncFull}
		if syncSince != "" {
			since, err := time.Parse(time.RFC3339, syncSince)
			if err != nil {
				return fmt.Errorf("invalid --since, use RFC 3339: %w", err)
			}
			payload.Since = &since
		}
		return cli.RunJob(cmd, jobs.JobSync, payload)
	},
}

// MatchCmd ranks staffing candidates for a task description.
var MatchCmd = &cobra.Command{
	Use:   "match <task description>",
	Short: "Suggest the three best members for a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunJob(cmd, jobs.JobMatch, jobs.MatchPayload{
			TaskDescription: strings.Join(args, " "),
			ProjectID:       matchProject,
		})
	},
}

// OverloadCmd evaluates one status transition by hand.
var OverloadCmd = &cobra.Command{
	Use:   "overload",
	Short: "Send an overload alert for a status transition",
	RunE: func(cmd *cobra.Command, args []string) error {
		if overloadUser == "" {
			return errors.New("missing --user")
		}
		return cli.RunJob(cmd, jobs.JobOverload, commands.OverloadEvent{
			UserID:          overloadUser,
			UserName:        overloadName,
			OldStatus:       domain.CapacityStatus(overloadFrom),
			NewStatus:       domain.CapacityStatus(overloadTo),
			CapacityPercent: overloadPercent,
		})
	},
}

// JobCmd runs any job with a raw JSON payload.
var JobCmd = &cobra.Command{
	Use:   "job <name>",
	Short: "Run a job by name (sync, capacity, priorities, overload, match)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload any
		if jobPayload != "" {
			if !json.Valid([]byte(jobPayload)) {
				return errors.New("--payload is not valid JSON")
			}
			payload = json.RawMessage(jobPayload)
		}
		return cli.RunJob(cmd, args[0], payload)
	},
}

// TeamCmd prints the team health summary.
var TeamCmd = &cobra.Command{
	Use:   "team",
	Short: "Summarize team capacity",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetTeamHealthHandler == nil {
			return cli.ErrNotConfigured
		}
		health, err := app.GetTeamHealthHandler.Handle(cmd.Context())
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), health)
	},
}

func init() {
	SyncCmd.Flags().BoolVar(&syncFull, "full", false, "ignore the stored watermark")
	SyncCmd.Flags().StringVar(&syncSince, "since", "", "only tasks modified after this RFC 3339 time")

	MatchCmd.Flags().StringVar(&matchProject, "project", "", "project ID (informational)")

	OverloadCmd.Flags().StringVar(&overloadUser, "user", "", "member user ID")
	OverloadCmd.Flags().StringVar(&overloadName, "name", "", "member display name")
	OverloadCmd.Flags().StringVar(&overloadFrom, "from", string(domain.StatusBusy), "previous status")
	OverloadCmd.Flags().StringVar(&overloadTo, "to", string(domain.StatusOverloaded), "new status")
	OverloadCmd.Flags().IntVar(&overloadPercent, "percent", 0, "capacity percent")

	JobCmd.Flags().StringVar(&jobPayload, "payload", "", "JSON payload")
}

package settings

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
)

var (
	maxCapacityBase float64
	channelID       string
	clearChannel    bool
)

// Cmd is the settings command group.
var Cmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage team settings",
}

type settingsView struct {
	MaxCapacityBase float64 `json:"max_capacity_base"`
	ChannelID       string  `json:"channel_id"`
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the capacity base and alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Settings == nil {
			return cli.ErrNotConfigured
		}
		s, err := app.Settings.Get(cmd.Context())
		if err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), settingsView{MaxCapacityBase: s.MaxCapacityBase, ChannelID: s.ChannelID})
	},
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the capacity base or alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Settings == nil {
			return cli.ErrNotConfigured
		}
		flags := cmd.Flags()
		if !flags.Changed("max-capacity-base") && !flags.Changed("channel") && !clearChannel {
			return errors.New("nothing to update: pass --max-capacity-base, --channel or --clear-channel")
		}

		s, err := app.Settings.Get(cmd.Context())
		if err != nil {
			return err
		}
		if flags.Changed("max-capacity-base") {
			if maxCapacityBase <= 0 {
				return errors.New("--max-capacity-base must be positive")
			}
			s.MaxCapacityBase = maxCapacityBase
		}
		if flags.Changed("channel") {
			s.ChannelID = channelID
		}
		if clearChannel {
			s.ChannelID = ""
		}
		if err := app.Settings.Save(cmd.Context(), s); err != nil {
			return err
		}
		return cli.PrintJSON(cmd.OutOrStdout(), settingsView{MaxCapacityBase: s.MaxCapacityBase, ChannelID: s.ChannelID})
	},
}

func init() {
	setCmd.Flags().Float64Var(&maxCapacityBase, "max-capacity-base", 0, "weighted load that equals 100% capacity")
	setCmd.Flags().StringVar(&channelID, "channel", "", "management channel for overload alerts")
	setCmd.Flags().BoolVar(&clearChannel, "clear-channel", false, "stop sending overload alerts")

	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(setCmd)
}

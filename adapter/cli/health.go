package cli

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database, Redis and broker connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Health == nil {
			return ErrNotConfigured
		}
		return PrintJSON(cmd.OutOrStdout(), a.Health.GetOverallHealth(cmd.Context()))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Migrate == nil {
			return ErrNotConfigured
		}
		if err := a.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		return PrintJSON(cmd.OutOrStdout(), map[string]any{"migrated": true})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

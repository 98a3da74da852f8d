package cmd

import (
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the account to the starting capital",
	Long:  `Discard all positions and order history and restore the starting cash.`,
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	acct, err := engineApp.Engine.Reset(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"message":      "Account reset successfully",
		"startingCash": acct.StartingCash,
	})
}

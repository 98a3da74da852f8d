package cmd

import (
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account marked to market",
	Long: `Show cash, positions valued at current prices, and total P&L.
The account is created with the starting capital if it does not exist.`,
	Args: cobra.NoArgs,
	RunE: runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, _ []string) error {
	_, snap, err := engineApp.Engine.View(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap)
}

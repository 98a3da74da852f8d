package cmd

import (
	"github.com/spf13/cobra"

	"github.com/atmx/paper-engine/internal/model"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List filled orders, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)
}

func runOrders(cmd *cobra.Command, _ []string) error {
	orders, err := engineApp.Engine.Orders(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), struct {
		Orders []model.OrderRecord `json:"orders"`
	}{orders})
}

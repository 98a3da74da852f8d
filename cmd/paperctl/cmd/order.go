package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/atmx/paper-engine/internal/model"
)

var orderCmd = &cobra.Command{
	Use:   "order <buy|sell> <ticker> <quantity>",
	Short: "Place a market or limit order",
	Long: `Place an order against the current market price.

Without --limit the order is a market order filled with slippage. With
--limit it is an immediate-or-reject limit order filled at the limit price.

Examples:
  paperctl order buy XYZ 10
  paperctl order sell XYZ 10 --limit 60`,
	Args: cobra.ExactArgs(3),
	RunE: runOrder,
}

var orderLimit string

func init() {
	rootCmd.AddCommand(orderCmd)

	orderCmd.Flags().StringVarP(&orderLimit, "limit", "l", "", "limit price; omit for a market order")
}

func runOrder(cmd *cobra.Command, args []string) error {
	qty, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("quantity %q: %w", args[2], err)
	}

	req := model.OrderRequest{
		Ticker:   args[1],
		Type:     model.OrderTypeMarket,
		Side:     model.Side(args[0]),
		Quantity: qty,
	}
	if orderLimit != "" {
		lp, err := decimal.NewFromString(orderLimit)
		if err != nil {
			return fmt.Errorf("limit %q: %w", orderLimit, err)
		}
		req.Type = model.OrderTypeLimit
		req.LimitPrice = &lp
	}

	res, err := engineApp.Engine.PlaceOrder(cmd.Context(), userID, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

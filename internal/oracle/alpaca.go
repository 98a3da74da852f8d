package oracle

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// AlpacaSource reads the latest trade price from the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
}

var _ Source = (*AlpacaSource)(nil)

// NewAlpacaSource creates an Alpaca source. An empty dataURL uses the
// library default endpoint.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts)}
}

func (s *AlpacaSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	trade, err := s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("alpaca: latest trade %s: %w", symbol, err)
	}
	if trade == nil {
		return decimal.Zero, fmt.Errorf("%w: alpaca returned no trade for %s", ErrNoPrice, symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

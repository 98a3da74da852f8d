package oracle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// YahooSource reads prices from Yahoo Finance. It prefers the live quote and
// falls back to the most recent daily close, which covers weekends and
// after-hours gaps.
type YahooSource struct{}

var _ Source = YahooSource{}

// NewYahooSource creates a Yahoo Finance source.
func NewYahooSource() YahooSource {
	return YahooSource{}
}

func (YahooSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo: create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	if quote, err := t.Quote(); err == nil && quote != nil && quote.RegularMarketPrice > 0 {
		return decimal.NewFromFloat(quote.RegularMarketPrice), nil
	}

	bars, err := t.History(models.HistoryParams{
		Period:   "5d",
		Interval: "1d",
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo: history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("%w: yahoo returned no bars for %s", ErrNoPrice, symbol)
	}
	return decimal.NewFromFloat(bars[len(bars)-1].Close), nil
}

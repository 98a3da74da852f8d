package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/symbol"
)

// StaticSource serves prices from an in-memory table. Used for development,
// dry runs and tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource copies prices into a new source.
func NewStaticSource(prices map[string]decimal.Decimal) *StaticSource {
	s := &StaticSource{prices: make(map[string]decimal.Decimal, len(prices))}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

// ParseStaticPrices converts a ticker → price-string table (as read from
// STATIC_PRICES) into decimals, normalising tickers.
func ParseStaticPrices(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		tk, err := symbol.Normalize(k)
		if err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("oracle: price for %s: %w", tk, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("%w: %s %s", ErrNonPositivePrice, tk, p)
		}
		out[tk] = p
	}
	return out, nil
}

// Set updates the price for ticker.
func (s *StaticSource) Set(ticker string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = price
}

// Delete removes ticker, making its price unavailable.
func (s *StaticSource) Delete(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, ticker)
}

func (s *StaticSource) LatestPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoPrice, ticker)
	}
	return p, nil
}

// Package ledger maintains one account's equity positions under
// weighted-average cost basis accounting.
//
// The ledger performs no sufficiency checks of its own. Callers validate
// cash and share availability before calling ApplyBuy or ApplySell, and the
// ledger trusts them.
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// Ledger is a view over an account's ticker → position map. Mutations are
// applied to the wrapped map in place.
type Ledger struct {
	positions map[string]model.Position
}

// New wraps positions. A nil map is replaced with an empty one; use
// Positions or Map to read it back in that case.
func New(positions map[string]model.Position) *Ledger {
	if positions == nil {
		positions = make(map[string]model.Position)
	}
	return &Ledger{positions: positions}
}

// ApplyBuy adds quantity at price. An existing position's average cost
// becomes the quantity-weighted mean:
//
//	newAvg = (oldQty × oldAvg + qty × price) / (oldQty + qty)
//
// It panics if quantity or price is not positive; callers validate orders
// before they reach the ledger.
func (l *Ledger) ApplyBuy(ticker string, quantity, price decimal.Decimal) {
	if !quantity.IsPositive() || !price.IsPositive() {
		panic(fmt.Sprintf("ledger: buy %s %s @ %s: quantity and price must be positive", ticker, quantity, price))
	}

	newQty := quantity
	newAvg := price
	if existing, ok := l.positions[ticker]; ok {
		newQty = existing.Quantity.Add(quantity)
		totalCost := existing.CostBasis().Add(quantity.Mul(price))
		newAvg = totalCost.Div(newQty)
	}

	p, err := model.NewPosition(ticker, newQty, newAvg)
	if err != nil {
		panic(fmt.Sprintf("ledger: buy %s: %v", ticker, err))
	}
	l.positions[ticker] = p
}

// ApplySell removes quantity from the position. Average cost is unchanged.
// A position that reaches zero is deleted rather than stored empty.
func (l *Ledger) ApplySell(ticker string, quantity decimal.Decimal) {
	existing := l.positions[ticker]
	existing.Quantity = existing.Quantity.Sub(quantity)

	if existing.Quantity.Sign() <= 0 {
		delete(l.positions, ticker)
		return
	}
	l.positions[ticker] = existing
}

// Position returns the position for ticker, if held.
func (l *Ledger) Position(ticker string) (model.Position, bool) {
	p, ok := l.positions[ticker]
	return p, ok
}

// Positions returns all positions sorted by ticker.
func (l *Ledger) Positions() []model.Position {
	out := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Map returns the underlying map.
func (l *Ledger) Map() map[string]model.Position {
	return l.positions
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	return len(l.positions)
}

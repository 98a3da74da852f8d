// Package valuation marks an account to market.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/oracle"
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognised names.
var ErrUnknownPolicy = errors.New("valuation: unknown unavailable-price policy")

// Policy decides how a position is valued when its price is unavailable.
type Policy string

const (
	// PolicyZero values the position at price 0.
	PolicyZero Policy = "zero"
	// PolicyCost values the position at its cost basis, so unrealized P&L is 0.
	PolicyCost Policy = "cost"
)

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyZero, PolicyCost:
		return Policy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// MaxConcurrentQuotes bounds the oracle calls in flight for one valuation.
const MaxConcurrentQuotes = 8

// percentPlaces is the rounding precision for P&L percentages.
const percentPlaces = 4

var hundred = decimal.NewFromInt(100)

// Engine computes account snapshots. It never mutates the account.
type Engine struct {
	oracle oracle.Oracle
	policy Policy
	now    func() time.Time
}

// New creates a valuation engine. An empty policy means PolicyZero.
func New(o oracle.Oracle, policy Policy) *Engine {
	if policy == "" {
		policy = PolicyZero
	}
	return &Engine{oracle: o, policy: policy, now: time.Now}
}

// Policy returns the configured unavailable-price policy.
func (e *Engine) Policy() Policy { return e.policy }

type quote struct {
	price decimal.Decimal
	ok    bool
}

// Valuate prices every position concurrently and aggregates the totals.
// Positions are reported sorted by ticker.
func (e *Engine) Valuate(ctx context.Context, acct *model.Account) model.Snapshot {
	positions := acct.SortedPositions()

	quotes := make([]quote, len(positions))
	var g errgroup.Group
	g.SetLimit(MaxConcurrentQuotes)
	for i, p := range positions {
		ticker := p.Ticker
		g.Go(func() error {
			// An unavailable price is valued by policy, never an error.
			price, ok := e.oracle.GetPrice(ctx, ticker)
			quotes[i] = quote{price: price, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	snap := model.Snapshot{
		UserID:       acct.UserID,
		Cash:         acct.Cash,
		StartingCash: acct.StartingCash,
		Positions:    make([]model.PositionValuation, 0, len(positions)),
		ValuedAt:     e.now().UTC(),
	}

	total := acct.Cash
	for i, p := range positions {
		pv := e.position(p, quotes[i])
		total = total.Add(pv.MarketValue)
		snap.Positions = append(snap.Positions, pv)
	}

	snap.TotalValue = total
	snap.TotalPL = total.Sub(acct.StartingCash)
	snap.TotalPLPercent = Percent(snap.TotalPL, acct.StartingCash)
	return snap
}

func (e *Engine) position(p model.Position, q quote) model.PositionValuation {
	price := q.price
	if !q.ok {
		metrics.ValuationUnavailablePrices.Inc()
		price = decimal.Zero
		if e.policy == PolicyCost {
			price = p.AvgCostBasis
		}
	}

	marketValue := p.Quantity.Mul(price)
	costBasis := p.CostBasis()
	unrealized := marketValue.Sub(costBasis)

	return model.PositionValuation{
		Position:            p,
		CurrentPrice:        price,
		PriceAvailable:      q.ok,
		MarketValue:         marketValue,
		CostBasis:           costBasis,
		UnrealizedPL:        unrealized,
		UnrealizedPLPercent: Percent(unrealized, costBasis),
	}
}

// Percent returns part/whole × 100 rounded to four places, or 0 when whole
// is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, percentPlaces+2).Round(percentPlaces)
}

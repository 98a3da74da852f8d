// Package execution implements the pricing rules for paper order fills:
// the slippage model applied to market orders and the immediate-or-reject
// decision for limit orders.
//
// Both are pure functions of their inputs. Nothing here touches account
// state; the account engine decides what to do with a Decision.
//
// All monetary values use shopspring/decimal, never float64.
package execution

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

var (
	// ErrInvalidSlippageRate is returned when the rate is outside [0, 1).
	ErrInvalidSlippageRate = errors.New("execution: slippage rate must be in [0, 1)")

	// DefaultSlippageRate is 0.1%.
	DefaultSlippageRate = decimal.RequireFromString("0.001")
)

// Rejection reasons surfaced to clients.
const (
	ReasonLimitRequired = "limit price required for limit orders"
	ReasonNotFavorable  = "limit price not favorable for immediate execution"
)

// ReasonPriceUnavailable is the rejection reason when no market price could
// be fetched for ticker.
func ReasonPriceUnavailable(ticker string) string {
	return fmt.Sprintf("unable to fetch price for %s", ticker)
}

// ApplySlippage moves the reference price against the trader:
//
//	buy:  price × (1 + rate)
//	sell: price × (1 − rate)
func ApplySlippage(reference decimal.Decimal, side model.Side, rate decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == model.SideBuy {
		return reference.Mul(one.Add(rate))
	}
	return reference.Mul(one.Sub(rate))
}

// Decision is the outcome of evaluating an order against the market.
// Exactly one of Price (when Filled) or Reason (when not) is meaningful.
type Decision struct {
	Filled bool
	Price  decimal.Decimal
	Reason string
}

func fill(price decimal.Decimal) Decision { return Decision{Filled: true, Price: price} }
func reject(reason string) Decision      { return Decision{Reason: reason} }

// Validator decides whether an order is fillable at the current market price.
// It is stateless apart from the configured slippage rate.
type Validator struct {
	rate decimal.Decimal
}

// NewValidator creates a Validator with the given market-order slippage rate.
func NewValidator(rate decimal.Decimal) (*Validator, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSlippageRate, rate)
	}
	return &Validator{rate: rate}, nil
}

// Rate returns the slippage rate.
func (v *Validator) Rate() decimal.Decimal {
	return v.rate
}

// Decide evaluates req against marketPrice. available=false means the oracle
// could not produce a price, which is checked before anything else.
//
// Limit orders are immediate-or-reject: a buy fills iff limit >= market, a
// sell iff limit <= market, and either fills at the limit price exactly with
// no slippage.
func (v *Validator) Decide(req model.OrderRequest, marketPrice decimal.Decimal, available bool) Decision {
	if !available {
		return reject(ReasonPriceUnavailable(req.Ticker))
	}

	if req.Type == model.OrderTypeMarket {
		return fill(ApplySlippage(marketPrice, req.Side, v.rate))
	}

	if req.LimitPrice == nil {
		return reject(ReasonLimitRequired)
	}
	limit := *req.LimitPrice

	switch req.Side {
	case model.SideBuy:
		if limit.GreaterThanOrEqual(marketPrice) {
			return fill(limit)
		}
	case model.SideSell:
		if limit.LessThanOrEqual(marketPrice) {
			return fill(limit)
		}
	}
	return reject(ReasonNotFavorable)
}

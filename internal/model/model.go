// Package model defines the core domain types shared across the paper
// trading engine. All monetary values and quantities use shopspring/decimal,
// never float64 for money.
package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyTicker         = errors.New("model: ticker must not be empty")
	ErrNonPositiveQuantity = errors.New("model: quantity must be positive")
	ErrNonPositivePrice    = errors.New("model: price must be positive")
	ErrInvalidSide         = errors.New("model: side must be buy or sell")
	ErrInvalidOrderType    = errors.New("model: type must be market or limit")
)

// OrderType is either market or limit.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Valid reports whether t is a supported order type.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus is the outcome of an order.
type OrderStatus string

const (
	StatusFilled   OrderStatus = "filled"
	StatusRejected OrderStatus = "rejected"
)

// Position is an open equity holding. A position with zero quantity is never
// stored; the ledger deletes it instead.
type Position struct {
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostBasis decimal.Decimal `json:"avgCostBasis"`
}

// NewPosition validates and builds a Position.
func NewPosition(ticker string, quantity, avgCostBasis decimal.Decimal) (Position, error) {
	if ticker == "" {
		return Position{}, ErrEmptyTicker
	}
	if !quantity.IsPositive() {
		return Position{}, fmt.Errorf("%w: %s", ErrNonPositiveQuantity, quantity)
	}
	if !avgCostBasis.IsPositive() {
		return Position{}, fmt.Errorf("%w: %s", ErrNonPositivePrice, avgCostBasis)
	}
	return Position{Ticker: ticker, Quantity: quantity, AvgCostBasis: avgCostBasis}, nil
}

// CostBasis returns quantity × average cost.
func (p Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AvgCostBasis)
}

// OrderRequest is an order as submitted by a client.
type OrderRequest struct {
	Ticker     string           `json:"ticker"`
	Type       OrderType        `json:"type"`
	Side       Side             `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limitPrice,omitempty"`
}

// Validate checks the structural shape of the request. A limit order without
// a limit price passes here: that case is a trading rejection, not a
// malformed request.
func (r OrderRequest) Validate() error {
	if r.Ticker == "" {
		return ErrEmptyTicker
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, r.Type)
	}
	if !r.Side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, r.Side)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveQuantity, r.Quantity)
	}
	if r.LimitPrice != nil && !r.LimitPrice.IsPositive() {
		return fmt.Errorf("%w: limit %s", ErrNonPositivePrice, r.LimitPrice)
	}
	return nil
}

// OrderRecord is an immutable entry in an account's order history.
// Once created, records are never modified or deleted.
type OrderRecord struct {
	ID             string           `json:"orderId"`
	Ticker         string           `json:"ticker"`
	Type           OrderType        `json:"type"`
	Side           Side             `json:"side"`
	Quantity       decimal.Decimal  `json:"quantity"`
	LimitPrice     *decimal.Decimal `json:"limitPrice,omitempty"`
	Status         OrderStatus      `json:"status"`
	FilledPrice    decimal.Decimal  `json:"filledPrice"`
	FilledQuantity decimal.Decimal  `json:"filledQuantity"`
	Commission     decimal.Decimal  `json:"commission"`
	RejectReason   string           `json:"rejectReason,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewFilledOrder builds the history record for a filled order.
func NewFilledOrder(id string, req OrderRequest, price, commission decimal.Decimal, at time.Time) (OrderRecord, error) {
	if err := req.Validate(); err != nil {
		return OrderRecord{}, err
	}
	if !price.IsPositive() {
		return OrderRecord{}, fmt.Errorf("%w: fill %s", ErrNonPositivePrice, price)
	}
	rec := OrderRecord{
		ID:             id,
		Ticker:         req.Ticker,
		Type:           req.Type,
		Side:           req.Side,
		Quantity:       req.Quantity,
		Status:         StatusFilled,
		FilledPrice:    price,
		FilledQuantity: req.Quantity,
		Commission:     commission,
		Timestamp:      at.UTC(),
	}
	if req.Type == OrderTypeLimit && req.LimitPrice != nil {
		limit := *req.LimitPrice
		rec.LimitPrice = &limit
	}
	return rec, nil
}

// OrderResult is returned from order placement.
type OrderResult struct {
	OrderID        string           `json:"orderId"`
	Status         OrderStatus      `json:"status"`
	FilledPrice    *decimal.Decimal `json:"filledPrice,omitempty"`
	FilledQuantity *decimal.Decimal `json:"filledQuantity,omitempty"`
	Message        string           `json:"message"`
}

// Rejected builds a rejection result. Rejections carry no order id.
func Rejected(reason string) OrderResult {
	return OrderResult{Status: StatusRejected, Message: reason}
}

// Filled builds the result for a recorded fill.
func Filled(rec OrderRecord) OrderResult {
	price := rec.FilledPrice
	qty := rec.FilledQuantity
	return OrderResult{
		OrderID:        rec.ID,
		Status:         StatusFilled,
		FilledPrice:    &price,
		FilledQuantity: &qty,
		Message:        fmt.Sprintf("order filled at $%s", price.StringFixed(2)),
	}
}

// Account is the persisted state of one user's paper trading account.
// Invariant: Cash is never negative after a committed transaction.
type Account struct {
	UserID       string              `json:"userId"`
	Cash         decimal.Decimal     `json:"cash"`
	StartingCash decimal.Decimal     `json:"startingCash"`
	Positions    map[string]Position `json:"positions"`
	Orders       []OrderRecord       `json:"orders"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// NewAccount returns a fresh account funded with startingCash.
func NewAccount(userID string, startingCash decimal.Decimal, now time.Time) *Account {
	return &Account{
		UserID:       userID,
		Cash:         startingCash,
		StartingCash: startingCash,
		Positions:    make(map[string]Position),
		Orders:       []OrderRecord{},
		CreatedAt:    now.UTC(),
	}
}

// Clone returns a deep copy so callers can mutate it without touching the
// original.
func (a *Account) Clone() *Account {
	c := *a
	c.Positions = make(map[string]Position, len(a.Positions))
	for k, v := range a.Positions {
		c.Positions[k] = v
	}
	c.Orders = make([]OrderRecord, len(a.Orders))
	copy(c.Orders, a.Orders)
	return &c
}

// SortedPositions returns the positions ordered by ticker.
func (a *Account) SortedPositions() []Position {
	out := make([]Position, 0, len(a.Positions))
	for _, p := range a.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// PositionValuation is a position marked to the current market price.
type PositionValuation struct {
	Position
	CurrentPrice        decimal.Decimal `json:"currentPrice"`
	PriceAvailable      bool            `json:"priceAvailable"`
	MarketValue         decimal.Decimal `json:"marketValue"`
	CostBasis           decimal.Decimal `json:"costBasis"`
	UnrealizedPL        decimal.Decimal `json:"unrealizedPL"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealizedPLPercent"`
}

// Snapshot is a derived valuation of an account. It is never persisted.
type Snapshot struct {
	UserID         string              `json:"userId"`
	Cash           decimal.Decimal     `json:"cash"`
	StartingCash   decimal.Decimal     `json:"startingCash"`
	Positions      []PositionValuation `json:"positions"`
	TotalValue     decimal.Decimal     `json:"totalValue"`
	TotalPL        decimal.Decimal     `json:"totalPL"`
	TotalPLPercent decimal.Decimal     `json:"totalPLPercent"`
	ValuedAt       time.Time           `json:"valuedAt"`
}

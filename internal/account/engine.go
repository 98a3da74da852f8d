// Package account implements the paper account state machine: order
// placement, reset and read access, each as one transaction of
// load → critical section → save under a per-account lock.
//
// All monetary values use shopspring/decimal, never float64 for money.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/execution"
	"github.com/atmx/paper-engine/internal/ledger"
	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/oracle"
	"github.com/atmx/paper-engine/internal/store"
	"github.com/atmx/paper-engine/internal/symbol"
	"github.com/atmx/paper-engine/internal/valuation"
)

var (
	// ErrAccountNotFound is returned when an order targets a user with no
	// account.
	ErrAccountNotFound = errors.New("account: not found")

	// ErrInvalidOrder marks a structurally malformed request. Trading
	// rejections are never errors.
	ErrInvalidOrder = errors.New("account: invalid order")

	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = errors.New("account: user id required")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("account: invalid config")
)

// Rejection reasons raised by the account itself. Pricing rejections come
// from the execution package.
const (
	ReasonInsufficientFunds  = "insufficient funds"
	ReasonNoPosition         = "no position to sell"
	ReasonInsufficientShares = "insufficient shares"
)

// DefaultStartingCash is the capital a new account is funded with.
var DefaultStartingCash = decimal.NewFromInt(100000)

// FillNotifier is told about every committed fill, after the account has
// been saved. Implementations must not block.
type FillNotifier interface {
	OrderFilled(userID string, rec model.OrderRecord)
}

// Config wires an Engine. Store, Oracle, Validator and Valuation are
// required.
type Config struct {
	Store     store.Store
	Oracle    oracle.Oracle
	Validator *execution.Validator
	Valuation *valuation.Engine

	// StartingCash defaults to DefaultStartingCash when zero.
	StartingCash decimal.Decimal
	// Commission is a flat fee charged on every fill.
	Commission decimal.Decimal

	Notifier FillNotifier
	Clock    func() time.Time
}

// Engine serialises transactions per account. Different accounts never
// share a lock.
type Engine struct {
	store        store.Store
	oracle       oracle.Oracle
	validator    *execution.Validator
	valuation    *valuation.Engine
	startingCash decimal.Decimal
	commission   decimal.Decimal
	notifier     FillNotifier
	now          func() time.Time
	locks        *lockTable
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	case cfg.Oracle == nil:
		return nil, fmt.Errorf("%w: oracle is required", ErrInvalidConfig)
	case cfg.Validator == nil:
		return nil, fmt.Errorf("%w: validator is required", ErrInvalidConfig)
	case cfg.Valuation == nil:
		return nil, fmt.Errorf("%w: valuation engine is required", ErrInvalidConfig)
	case cfg.StartingCash.IsNegative():
		return nil, fmt.Errorf("%w: starting cash %s is negative", ErrInvalidConfig, cfg.StartingCash)
	case cfg.Commission.IsNegative():
		return nil, fmt.Errorf("%w: commission %s is negative", ErrInvalidConfig, cfg.Commission)
	}

	startingCash := cfg.StartingCash
	if startingCash.IsZero() {
		startingCash = DefaultStartingCash
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		store:        cfg.Store,
		oracle:       cfg.Oracle,
		validator:    cfg.Validator,
		valuation:    cfg.Valuation,
		startingCash: startingCash,
		commission:   cfg.Commission,
		notifier:     cfg.Notifier,
		now:          clock,
		locks:        newLockTable(),
	}, nil
}

// StartingCash returns the capital new and reset accounts receive.
func (e *Engine) StartingCash() decimal.Decimal { return e.startingCash }

// --- Order placement ---

// PlaceOrder executes req for userID as a single transaction. The account's
// write lock is held from load to save, oracle call included.
//
// Trading rejections are returned as a result with status rejected and a nil
// error; they never touch the account. Errors are reserved for malformed
// requests (ErrInvalidOrder), unknown accounts (ErrAccountNotFound) and
// infrastructure failures, after which the stored account is unchanged.
func (e *Engine) PlaceOrder(ctx context.Context, userID string, req model.OrderRequest) (model.OrderResult, error) {
	started := time.Now()

	if userID == "" {
		return model.OrderResult{}, ErrInvalidUser
	}
	req, err := normalizeRequest(req)
	if err != nil {
		return model.OrderResult{}, err
	}

	mu := e.locks.get(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := e.store.Load(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.OrderResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("account: load %s: %w", userID, err)
	}

	marketPrice, ok := e.oracle.GetPrice(ctx, req.Ticker)
	decision := e.validator.Decide(req, marketPrice, ok)
	if !decision.Filled {
		return e.reject(userID, req, decision.Reason, started), nil
	}

	if reason := e.settle(acct, req, decision.Price); reason != "" {
		return e.reject(userID, req, reason, started), nil
	}

	id := fmt.Sprintf("order_%d", len(acct.Orders)+1)
	rec, err := model.NewFilledOrder(id, req, decision.Price, e.commission, e.now())
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("account: build order record: %w", err)
	}
	acct.Orders = append(acct.Orders, rec)

	if err := e.store.Save(ctx, acct); err != nil {
		slog.Error("order save failed", "user", userID, "ticker", req.Ticker, "err", err)
		return model.OrderResult{}, fmt.Errorf("account: save %s: %w", userID, err)
	}

	metrics.ObserveOrder(string(req.Side), string(req.Type), string(model.StatusFilled), started)
	slog.Info("order filled",
		"user", userID,
		"order_id", rec.ID,
		"ticker", rec.Ticker,
		"side", rec.Side,
		"type", rec.Type,
		"qty", rec.FilledQuantity.String(),
		"price", rec.FilledPrice.String(),
		"cash", acct.Cash.String(),
	)

	if e.notifier != nil {
		e.notifier.OrderFilled(userID, rec)
	}
	return model.Filled(rec), nil
}

// settle applies a fill at price to acct's cash and positions. It returns a
// rejection reason, in which case acct is untouched.
func (e *Engine) settle(acct *model.Account, req model.OrderRequest, price decimal.Decimal) string {
	led := ledger.New(acct.Positions)
	acct.Positions = led.Map()

	switch req.Side {
	case model.SideBuy:
		required := req.Quantity.Mul(price).Add(e.commission)
		if acct.Cash.LessThan(required) {
			return ReasonInsufficientFunds
		}
		acct.Cash = acct.Cash.Sub(required)
		led.ApplyBuy(req.Ticker, req.Quantity, price)

	case model.SideSell:
		held, ok := led.Position(req.Ticker)
		if !ok {
			return ReasonNoPosition
		}
		if held.Quantity.LessThan(req.Quantity) {
			return ReasonInsufficientShares
		}
		cash := acct.Cash.Add(req.Quantity.Mul(price)).Sub(e.commission)
		if cash.IsNegative() {
			return ReasonInsufficientFunds
		}
		acct.Cash = cash
		led.ApplySell(req.Ticker, req.Quantity)
	}
	return ""
}

func (e *Engine) reject(userID string, req model.OrderRequest, reason string, started time.Time) model.OrderResult {
	metrics.ObserveOrder(string(req.Side), string(req.Type), string(model.StatusRejected), started)
	slog.Info("order rejected",
		"user", userID,
		"ticker", req.Ticker,
		"side", req.Side,
		"type", req.Type,
		"qty", req.Quantity.String(),
		"reason", reason,
	)
	return model.Rejected(reason)
}

func normalizeRequest(req model.OrderRequest) (model.OrderRequest, error) {
	ticker, err := symbol.Normalize(req.Ticker)
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	req.Ticker = ticker
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return req, nil
}

// --- Account lifecycle ---

// Reset replaces the user's account with a freshly funded one, creating it
// if absent. Calling it twice leaves the same state as calling it once.
func (e *Engine) Reset(ctx context.Context, userID string) (*model.Account, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	mu := e.locks.get(userID)
	mu.Lock()
	defer mu.Unlock()

	acct := model.NewAccount(userID, e.startingCash, e.now())
	if err := e.store.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("account: reset %s: %w", userID, err)
	}

	metrics.AccountResets.Inc()
	slog.Info("account reset", "user", userID, "starting_cash", e.startingCash.String())
	return acct.Clone(), nil
}

// Open returns the user's account, creating it with the starting capital on
// first access.
func (e *Engine) Open(ctx context.Context, userID string) (*model.Account, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	mu := e.locks.get(userID)

	mu.RLock()
	acct, err := e.store.Load(ctx, userID)
	mu.RUnlock()
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("account: load %s: %w", userID, err)
	}

	mu.Lock()
	defer mu.Unlock()

	// Another request may have created it between the two locks.
	acct, err = e.store.Load(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("account: load %s: %w", userID, err)
	}

	acct = model.NewAccount(userID, e.startingCash, e.now())
	if err := e.store.Save(ctx, acct); err != nil {
		return nil, fmt.Errorf("account: create %s: %w", userID, err)
	}
	slog.Info("account created", "user", userID, "starting_cash", e.startingCash.String())
	return acct.Clone(), nil
}

// Orders returns the user's order history, oldest first. An unknown user has
// an empty history.
func (e *Engine) Orders(ctx context.Context, userID string) ([]model.OrderRecord, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	mu := e.locks.get(userID)
	mu.RLock()
	defer mu.RUnlock()

	acct, err := e.store.Load(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return []model.OrderRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: load %s: %w", userID, err)
	}
	if acct.Orders == nil {
		return []model.OrderRecord{}, nil
	}
	return acct.Orders, nil
}

// View opens the user's account and values it. The lock is held only while
// the record is loaded; valuation runs on the private copy.
func (e *Engine) View(ctx context.Context, userID string) (*model.Account, model.Snapshot, error) {
	acct, err := e.Open(ctx, userID)
	if err != nil {
		return nil, model.Snapshot{}, err
	}
	return acct, e.valuation.Valuate(ctx, acct), nil
}

// Package oracle adapts external market-data sources into a price oracle
// that never fails: a price is either available or it is not.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/metrics"
)

var (
	// ErrNoPrice is returned by a Source that has no price for a ticker.
	ErrNoPrice = errors.New("oracle: no price available")

	// ErrNonPositivePrice marks a zero or negative quote, which is treated
	// the same as a failed fetch.
	ErrNonPositivePrice = errors.New("oracle: non-positive price")

	errSourcePanic = errors.New("oracle: source panicked")
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// Oracle returns the current trade price for a ticker. ok=false means the
// price is unavailable; callers treat that as a normal outcome.
type Oracle interface {
	GetPrice(ctx context.Context, ticker string) (price decimal.Decimal, ok bool)
}

// Source is a single market-data backend. One call is one attempt.
type Source interface {
	LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ticker string) (decimal.Decimal, error)

func (f SourceFunc) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return f(ctx, ticker)
}

// Retrying turns a Source into an Oracle by retrying transient failures a
// bounded number of times with a fixed delay between attempts.
type Retrying struct {
	source   Source
	attempts int
	delay    time.Duration
	log      *slog.Logger
}

var _ Oracle = (*Retrying)(nil)

// NewRetrying wraps source. attempts < 1 falls back to DefaultAttempts and a
// negative delay to zero.
func NewRetrying(source Source, attempts int, delay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return &Retrying{
		source:   source,
		attempts: attempts,
		delay:    delay,
		log:      slog.Default().With("component", "oracle"),
	}
}

// GetPrice implements Oracle. It never returns an error and never panics.
func (r *Retrying) GetPrice(ctx context.Context, ticker string) (decimal.Decimal, bool) {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		metrics.OracleAttempts.Inc()

		price, err := r.try(ctx, ticker)
		if err == nil {
			metrics.OracleRequests.WithLabelValues("ok").Inc()
			return price, true
		}

		r.log.Warn("price fetch failed",
			"ticker", ticker,
			"attempt", attempt,
			"max_attempts", r.attempts,
			"err", err,
		)

		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.OracleRequests.WithLabelValues("cancelled").Inc()
			return decimal.Zero, false
		case <-time.After(r.delay):
		}
	}

	metrics.OracleRequests.WithLabelValues("unavailable").Inc()
	return decimal.Zero, false
}

func (r *Retrying) try(ctx context.Context, ticker string) (price decimal.Decimal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			price, err = decimal.Zero, fmt.Errorf("%w: %v", errSourcePanic, rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	price, err = r.source.LatestPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s", ErrNonPositivePrice, ticker, price)
	}
	return price, nil
}

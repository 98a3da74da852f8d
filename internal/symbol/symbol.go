// Package symbol handles equity ticker normalisation and validation.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// tickerRegex matches exchange tickers as accepted by the price sources:
// a leading letter or digit followed by letters, digits, '.', '-', '=' or '^'.
// Examples: AAPL, BRK.B, RDS-A, ^GSPC, EURUSD=X
var tickerRegex = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,14}$`)

var (
	ErrEmpty         = errors.New("symbol: ticker must not be empty")
	ErrInvalidTicker = errors.New("symbol: invalid ticker format")
)

// Normalize trims and upper-cases a ticker and validates its format.
func Normalize(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", ErrEmpty
	}
	if !tickerRegex.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return t, nil
}

// MustNormalize is Normalize for compile-time constants and tests.
func MustNormalize(ticker string) string {
	t, err := Normalize(ticker)
	if err != nil {
		panic(err)
	}
	return t
}

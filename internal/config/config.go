// Package config loads paper engine settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full service configuration. Field tags name the environment
// variables and their defaults.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8005"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StartingCash decimal.Decimal `envconfig:"STARTING_CASH" default:"100000"`
	SlippageRate decimal.Decimal `envconfig:"SLIPPAGE_RATE" default:"0.001"`
	Commission   decimal.Decimal `envconfig:"COMMISSION" default:"0"`

	OracleProvider   string            `envconfig:"ORACLE_PROVIDER" default:"yahoo"`
	OracleAttempts   int               `envconfig:"ORACLE_ATTEMPTS" default:"3"`
	OracleRetryDelay time.Duration     `envconfig:"ORACLE_RETRY_DELAY" default:"1s"`
	StaticPrices     map[string]string `envconfig:"STATIC_PRICES"`
	AlpacaAPIKey     string            `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret  string            `envconfig:"ALPACA_API_SECRET"`
	AlpacaDataURL    string            `envconfig:"ALPACA_DATA_URL"`

	StoreDriver string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath  string        `envconfig:"SQLITE_PATH" default:"paper_accounts.db"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	AuthMode       string `envconfig:"AUTH_MODE" default:"static"`
	AuthStaticUser string `envconfig:"AUTH_STATIC_USER" default:"user_1"`
	AuthHeader     string `envconfig:"AUTH_HEADER" default:"X-User-ID"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	ValuationUnavailablePolicy string `envconfig:"VALUATION_UNAVAILABLE_POLICY" default:"zero"`
}

// Load reads an optional .env file, then the process environment, and
// validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range or inconsistent values.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Port < 1 || c.Port > 65535 {
		add("PORT %d out of range", c.Port)
	}
	if !c.StartingCash.IsPositive() {
		add("STARTING_CASH %s must be positive", c.StartingCash)
	}
	if c.SlippageRate.IsNegative() || c.SlippageRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		add("SLIPPAGE_RATE %s must be in [0, 1)", c.SlippageRate)
	}
	if c.Commission.IsNegative() {
		add("COMMISSION %s is negative", c.Commission)
	}
	if c.OracleAttempts < 1 {
		add("ORACLE_ATTEMPTS %d must be at least 1", c.OracleAttempts)
	}
	if c.OracleRetryDelay < 0 {
		add("ORACLE_RETRY_DELAY %s is negative", c.OracleRetryDelay)
	}

	switch c.OracleProvider {
	case "yahoo":
	case "alpaca":
		if c.AlpacaAPIKey == "" || c.AlpacaAPISecret == "" {
			add("ORACLE_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	case "static":
		if len(c.StaticPrices) == 0 {
			add("ORACLE_PROVIDER=static requires STATIC_PRICES")
		}
	default:
		add("ORACLE_PROVIDER %q unknown", c.OracleProvider)
	}

	switch c.StoreDriver {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			add("STORE_DRIVER=sqlite requires SQLITE_PATH")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			add("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		add("STORE_DRIVER %q unknown", c.StoreDriver)
	}
	if c.RedisURL != "" && c.CacheTTL <= 0 {
		add("CACHE_TTL must be positive when REDIS_URL is set")
	}

	switch c.AuthMode {
	case "static", "header":
	default:
		add("AUTH_MODE %q unknown", c.AuthMode)
	}

	switch c.ValuationUnavailablePolicy {
	case "zero", "cost":
	default:
		add("VALUATION_UNAVAILABLE_POLICY %q unknown", c.ValuationUnavailablePolicy)
	}

	return errors.Join(errs...)
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger creates a JSON slog logger on stdout at level. Unrecognised
// levels mean info.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

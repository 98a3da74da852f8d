// Package app assembles the paper engine from configuration. The HTTP
// server and the operator CLI share it, so both run identical accounting.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/paper-engine/internal/account"
	"github.com/atmx/paper-engine/internal/auth"
	"github.com/atmx/paper-engine/internal/config"
	"github.com/atmx/paper-engine/internal/execution"
	"github.com/atmx/paper-engine/internal/oracle"
	"github.com/atmx/paper-engine/internal/store"
	"github.com/atmx/paper-engine/internal/valuation"
)

// App holds the wired components and the resources they own.
type App struct {
	Engine   *account.Engine
	Store    store.Store
	Oracle   oracle.Oracle
	Resolver auth.Resolver

	cleanup []func()
}

// Build wires every component described by cfg. notifier may be nil.
// Call Close to release database and cache connections.
func Build(ctx context.Context, cfg *config.Config, notifier account.FillNotifier) (*App, error) {
	a := &App{}

	st, err := a.buildStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	src, err := NewSource(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Oracle = oracle.NewRetrying(src, cfg.OracleAttempts, cfg.OracleRetryDelay)

	validator, err := execution.NewValidator(cfg.SlippageRate)
	if err != nil {
		a.Close()
		return nil, err
	}
	policy, err := valuation.ParsePolicy(cfg.ValuationUnavailablePolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Engine, err = account.New(account.Config{
		Store:        st,
		Oracle:       a.Oracle,
		Validator:    validator,
		Valuation:    valuation.New(a.Oracle, policy),
		StartingCash: cfg.StartingCash,
		Commission:   cfg.Commission,
		Notifier:     notifier,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Resolver = NewResolver(cfg)

	slog.Info("paper engine ready",
		"store", cfg.StoreDriver,
		"cache", cfg.RedisURL != "",
		"oracle", cfg.OracleProvider,
		"starting_cash", a.Engine.StartingCash().String(),
		"slippage", validator.Rate().String(),
		"commission", cfg.Commission.String(),
		"valuation_policy", string(policy),
	)
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// --- Store ---

func (a *App) buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var st store.Store

	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store (data will not persist)")
		st = store.NewMemoryStore()

	case "sqlite":
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() { s.Close() })
		st = s
		slog.Info("opened SQLite store", "path", cfg.SQLitePath)

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.cleanup = append(a.cleanup, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("database schema: %w", err)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		a.cleanup = append(a.cleanup, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
	}
	return st, nil
}

// --- Oracle ---

// NewSource builds the market-data source selected by cfg.
func NewSource(cfg *config.Config) (oracle.Source, error) {
	switch cfg.OracleProvider {
	case "yahoo":
		return oracle.NewYahooSource(), nil
	case "alpaca":
		return oracle.NewAlpacaSource(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret, cfg.AlpacaDataURL), nil
	case "static":
		prices, err := oracle.ParseStaticPrices(cfg.StaticPrices)
		if err != nil {
			return nil, err
		}
		return oracle.NewStaticSource(prices), nil
	}
	return nil, fmt.Errorf("unknown oracle provider %q", cfg.OracleProvider)
}

// --- Identity ---

// NewResolver builds the identity resolver selected by cfg.
func NewResolver(cfg *config.Config) auth.Resolver {
	if cfg.AuthMode == "header" {
		return auth.NewHeader(cfg.AuthHeader)
	}
	return auth.NewStatic(cfg.AuthStaticUser)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/paper-engine/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id       TEXT PRIMARY KEY,
	cash          NUMERIC NOT NULL,
	starting_cash NUMERIC NOT NULL,
	document      JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore implements Store using PostgreSQL. The account document is
// stored as JSONB; cash columns are duplicated as NUMERIC for reporting.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the accounts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (*model.Account, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM accounts WHERE user_id = $1`, userID).
		Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}

	var a model.Account
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", userID, err)
	}
	normalize(&a)
	return &a, nil
}

func (s *PostgresStore) Save(ctx context.Context, acct *model.Account) error {
	doc, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", acct.UserID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, cash, starting_cash, document, updated_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     cash = EXCLUDED.cash,
		     starting_cash = EXCLUDED.starting_cash,
		     document = EXCLUDED.document,
		     updated_at = EXCLUDED.updated_at`,
		acct.UserID, acct.Cash.String(), acct.StartingCash.String(), doc,
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.UserID, err)
	}
	return nil
}

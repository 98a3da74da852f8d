package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/atmx/paper-engine/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id    TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore persists each account as a JSON document keyed by user id.
// Decimals are serialised as strings, so no precision is lost.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at path and ensures
// the schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer; serialise at the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*model.Account, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM accounts WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", userID, err)
	}

	var a model.Account
	if err := json.Unmarshal([]byte(doc), &a); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", userID, err)
	}
	normalize(&a)
	return &a, nil
}

func (s *SQLiteStore) Save(ctx context.Context, acct *model.Account) error {
	doc, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", acct.UserID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, document, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     document = excluded.document,
		     updated_at = excluded.updated_at`,
		acct.UserID, string(doc), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.UserID, err)
	}
	return nil
}

// normalize restores non-nil collections on a decoded account.
func normalize(a *model.Account) {
	if a.Positions == nil {
		a.Positions = make(map[string]model.Position)
	}
	if a.Orders == nil {
		a.Orders = []model.OrderRecord{}
	}
}

// Package store defines persistence for paper trading accounts.
// Implementations include SQLite (default, single node), PostgreSQL,
// a Redis read-through cache over either, and in-memory (for testing).
//
// Accounts are persisted as whole records: a transaction loads the account,
// mutates a private copy, then saves the full record back.
package store

import (
	"context"
	"errors"

	"github.com/atmx/paper-engine/internal/model"
)

// ErrNotFound is returned by Load when no account exists for the user.
var ErrNotFound = errors.New("store: account not found")

// Store is the persistence interface.
type Store interface {
	// Load returns the user's account or ErrNotFound. The returned account
	// is owned by the caller.
	Load(ctx context.Context, userID string) (*model.Account, error)

	// Save replaces the stored account for acct.UserID, creating it if
	// absent.
	Save(ctx context.Context, acct *model.Account) error
}

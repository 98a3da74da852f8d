package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/atmx/paper-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes drop the cached entry, write the primary store, then refresh the
// cache; reads check Redis first then fall back to the primary. Cached
// entries are msgpack-encoded.
//
// A save that cannot invalidate the cache fails before touching the primary,
// so a cached entry is never older than the committed record.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Load(ctx context.Context, userID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(userID)).Bytes()
	if err == nil {
		var a model.Account
		if msgpack.Unmarshal(data, &a) == nil {
			normalize(&a)
			return &a, nil
		}
		// Undecodable entry; drop it and fall through.
		s.rdb.Del(ctx, accountKey(userID))
	}

	// Cache miss: read from primary.
	a, err := s.primary.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(context.WithoutCancel(ctx), a)
	return a, nil
}

// --- Write-through (invalidate, write primary, refresh cache) ---

func (s *CachedStore) Save(ctx context.Context, acct *model.Account) error {
	if acct == nil || acct.UserID == "" {
		return fmt.Errorf("store: save requires a user id")
	}
	// Cache calls outlive the request so a cancelled caller cannot leave a
	// stale entry behind a committed write.
	cctx := context.WithoutCancel(ctx)

	if err := s.rdb.Del(cctx, accountKey(acct.UserID)).Err(); err != nil {
		return fmt.Errorf("store: invalidate cache for %s: %w", acct.UserID, err)
	}
	if err := s.primary.Save(ctx, acct); err != nil {
		return err
	}
	s.cacheAccount(cctx, acct)
	return nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.Account) {
	data, err := msgpack.Marshal(a)
	if err != nil {
		slog.Warn("account cache encode failed", "user_id", a.UserID, "error", err)
		return
	}
	if err := s.rdb.Set(ctx, accountKey(a.UserID), data, s.ttl).Err(); err != nil {
		// The entry was invalidated before the primary write; a failed
		// refresh only costs a primary read.
		s.rdb.Del(ctx, accountKey(a.UserID))
		slog.Warn("account cache write failed", "user_id", a.UserID, "error", err)
	}
}

func accountKey(uid string) string { return fmt.Sprintf("paper:account:%s", uid) }

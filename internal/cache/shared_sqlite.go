package cache

import (
	"context"
	"errors"
	"time"

	"github.com/codegraph-dev/codegraph/internal/storage"
)

// SQLiteSharedTier adapts the storage layer's cache_entries table into a
// SharedTier. Entries are durable across restarts and shared by every
// process opening the same database file.
type SQLiteSharedTier struct {
	store storage.Storage
}

// NewSQLiteSharedTier wraps store's cache operations as a SharedTier
func NewSQLiteSharedTier(store storage.Storage) *SQLiteSharedTier {
	return &SQLiteSharedTier{store: store}
}

func (t *SQLiteSharedTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := t.store.CacheGet(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *SQLiteSharedTier) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.store.CachePut(ctx, key, value, time.Now().Add(ttl))
}

func (t *SQLiteSharedTier) DeleteByPrefix(ctx context.Context, prefix string) error {
	return t.store.CacheDeleteByPrefix(ctx, prefix)
}

// PurgeExpired removes expired rows. Callers run it periodically; lazy
// expiry in Get keeps correctness even if they never do.
func (t *SQLiteSharedTier) PurgeExpired(ctx context.Context) (int, error) {
	return t.store.CachePurgeExpired(ctx)
}

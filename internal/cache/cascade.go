// Package cache provides a two-tier cascade cache: a process-local LRU
// tier backed by a shared durable tier with TTL expiry.
//
// Reads check the local tier first, then the shared tier, promoting shared
// hits into the local tier. Writes go through both tiers. Shared-tier
// failures are logged and swallowed; a cache miss is always a safe,
// recomputable event, never a hard failure.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SharedTier is the durable cache tier shared across processes. Get must
// treat expired entries as misses.
type SharedTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Stats reports cascade counters since construction
type Stats struct {
	LocalHits   uint64
	SharedHits  uint64
	Misses      uint64
	Promotions  uint64
	SharedFails uint64
}

// Cascade is the two-tier cache. A nil shared tier degrades to
// local-only operation.
type Cascade struct {
	local  *lru.Cache[string, []byte]
	shared SharedTier
	ttl    time.Duration
	logger *slog.Logger

	localHits   atomic.Uint64
	sharedHits  atomic.Uint64
	misses      atomic.Uint64
	promotions  atomic.Uint64
	sharedFails atomic.Uint64
}

// DefaultLocalSize bounds the local tier when callers pass size <= 0
const DefaultLocalSize = 1024

// DefaultTTL applies to shared-tier entries when callers pass ttl <= 0
const DefaultTTL = 15 * time.Minute

// NewCascade creates a cascade cache. shared may be nil for local-only
// operation.
func NewCascade(localSize int, shared SharedTier, ttl time.Duration, logger *slog.Logger) (*Cascade, error) {
	if localSize <= 0 {
		localSize = DefaultLocalSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	local, err := lru.New[string, []byte](localSize)
	if err != nil {
		return nil, err
	}

	return &Cascade{
		local:  local,
		shared: shared,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Get returns the cached value for key, checking the local tier first and
// promoting shared-tier hits. The second return is false on a full miss.
func (c *Cascade) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.local.Get(key); ok {
		c.localHits.Add(1)
		return value, true
	}

	if c.shared != nil {
		value, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.sharedFails.Add(1)
			c.logger.Warn("shared cache tier read failed", "key", key, "error", err)
		} else if ok {
			c.sharedHits.Add(1)
			c.promotions.Add(1)
			c.local.Add(key, value)
			return value, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set writes through both tiers. The local tier is always updated; a
// shared-tier failure is logged and swallowed.
func (c *Cascade) Set(ctx context.Context, key string, value []byte) {
	c.local.Add(key, value)

	if c.shared != nil {
		if err := c.shared.Put(ctx, key, value, c.ttl); err != nil {
			c.sharedFails.Add(1)
			c.logger.Warn("shared cache tier write failed", "key", key, "error", err)
		}
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix from
// both tiers.
func (c *Cascade) InvalidatePrefix(ctx context.Context, prefix string) {
	for _, key := range c.local.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.local.Remove(key)
		}
	}

	if c.shared != nil {
		if err := c.shared.DeleteByPrefix(ctx, prefix); err != nil {
			c.sharedFails.Add(1)
			c.logger.Warn("shared cache tier invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

// Stats returns a snapshot of the cascade counters
func (c *Cascade) Stats() Stats {
	return Stats{
		LocalHits:   c.localHits.Load(),
		SharedHits:  c.sharedHits.Load(),
		Misses:      c.misses.Load(),
		Promotions:  c.promotions.Load(),
		SharedFails: c.sharedFails.Load(),
	}
}

// Len reports the number of entries in the local tier
func (c *Cascade) Len() int {
	return c.local.Len()
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/storage"
)

func TestSQLiteSharedTier(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	tier := NewSQLiteSharedTier(store)
	ctx := context.Background()

	require.NoError(t, tier.Put(ctx, "k1", []byte("v1"), time.Minute))

	value, ok, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)

	// Missing key is a miss, not an error
	_, ok, err = tier.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	// Expired entries read as misses
	require.NoError(t, tier.Put(ctx, "stale", []byte("old"), -time.Minute))
	_, ok, err = tier.Get(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tier.Put(ctx, "pfx:a", []byte("a"), time.Minute))
	require.NoError(t, tier.Put(ctx, "pfx:b", []byte("b"), time.Minute))
	require.NoError(t, tier.DeleteByPrefix(ctx, "pfx:"))
	_, ok, err = tier.Get(ctx, "pfx:a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = tier.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

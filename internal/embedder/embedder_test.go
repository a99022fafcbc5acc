package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := emb.Embed(ctx, "validate email", types.DomainText)
	require.NoError(t, err)
	b, err := emb.Embed(ctx, "validate email", types.DomainText)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, LocalDimension)
}

func TestLocalProvider_DomainsDiffer(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := emb.Embed(ctx, "validate email", types.DomainText)
	require.NoError(t, err)
	code, err := emb.Embed(ctx, "validate email", types.DomainCode)
	require.NoError(t, err)

	assert.NotEqual(t, text, code)
}

func TestLocalProvider_UnitNorm(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	vector, err := emb.Embed(context.Background(), "anything", types.DomainCode)
	require.NoError(t, err)

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
}

func TestLocalProvider_EmptyText(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "", types.DomainText)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_UnknownDomain(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "x", "bogus")
	assert.ErrorIs(t, err, types.ErrUnknownDomain)
}

func TestLocalProvider_Batch(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"a", "b"}, types.DomainCode)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.NotEqual(t, vectors[0], vectors[1])

	_, err = emb.EmbedBatch(context.Background(), nil, types.DomainCode)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCache(t *testing.T) {
	cache := NewCache(4)
	key := cacheKey("hello", types.DomainText)

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Set(key, []float32{1, 2, 3})
	vector, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vector)

	// Mutating the returned copy must not pollute the cache
	vector[0] = 99
	again, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestCacheKey_DomainSeparation(t *testing.T) {
	assert.NotEqual(t, cacheKey("x", types.DomainText), cacheKey("x", types.DomainCode))
}

func TestLocalProvider_UsesCache(t *testing.T) {
	cache := NewCache(16)
	emb, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "warm me", types.DomainCode)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())
}

func TestNewExplicitConfig(t *testing.T) {
	emb, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "nonsense"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(Config{Provider: ProviderJina})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestDetectProvider_Default(t *testing.T) {
	t.Setenv("CODEGRAPH_EMBEDDING_PROVIDER", "")
	t.Setenv("JINA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv("JINA_API_KEY", "key")
	assert.Equal(t, ProviderJina, DetectProvider())

	t.Setenv("CODEGRAPH_EMBEDDING_PROVIDER", "OPENAI")
	assert.Equal(t, ProviderOpenAI, DetectProvider())
}

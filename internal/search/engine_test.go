package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/embedder"
	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/pkg/types"
)

func setupStore(t *testing.T) storage.Storage {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func localEmbedder(t *testing.T) embedder.Embedder {
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	return emb
}

// seedSearchable stores a chunk and its CODE-domain embedding computed by
// the same local embedder searches will use.
func seedSearchable(t *testing.T, store storage.Storage, emb embedder.Embedder, chunk *types.Chunk) {
	ctx := context.Background()
	require.NoError(t, store.AddChunk(ctx, chunk))

	vector, err := emb.Embed(ctx, chunk.Content, types.DomainCode)
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
		ChunkID:   chunk.ID,
		Domain:    types.DomainCode,
		Vector:    storage.SerializeVector(vector),
		Dimension: len(vector),
		Provider:  emb.Provider(),
		Model:     emb.Model(types.DomainCode),
	}))
}

func searchChunk(id, name, namePath, content string) *types.Chunk {
	return &types.Chunk{
		ID: id, Repository: "acme/api", FilePath: "api/" + name + ".py",
		ChunkType: types.ChunkFunction, Name: name, NamePath: namePath,
		Content: content, Language: "python", StartLine: 1, EndLine: 5,
	}
}

func TestSearch_Validation(t *testing.T) {
	engine := NewEngine(setupStore(t), nil, nil, nil)
	ctx := context.Background()

	_, err := engine.Search(ctx, Request{Query: "x", LexicalEnabled: true})
	assert.True(t, types.IsValidation(err))

	_, err = engine.Search(ctx, Request{Repository: "r", Query: "  ", LexicalEnabled: true})
	assert.True(t, types.IsValidation(err))

	_, err = engine.Search(ctx, Request{Repository: "r", Query: "x"})
	assert.True(t, types.IsValidation(err))

	_, err = engine.Search(ctx, Request{Repository: "r", Query: "x", LexicalEnabled: true, Domain: "bogus"})
	assert.True(t, types.IsValidation(err))
}

func TestSearch_LexicalOnly(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", "def validate_email(addr): check the email format"))
	seedSearchable(t, store, emb, searchChunk("c-2", "parse_config", "config.parse_config", "def parse_config(path): read settings"))

	engine := NewEngine(store, nil, emb, nil)
	resp, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          "validate email",
		LexicalEnabled: true,
	})
	require.NoError(t, err)

	require.Equal(t, 1, resp.TotalResults)
	result := resp.Results[0]
	assert.Equal(t, "c-1", result.ChunkID)
	assert.Equal(t, 1, result.Rank)
	assert.NotNil(t, result.LexicalScore)
	assert.Nil(t, result.VectorScore)
	assert.True(t, resp.LexicalEnabled)
	assert.False(t, resp.VectorEnabled)
	assert.False(t, resp.Degraded)
}

func TestSearch_Hybrid(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	content := "def validate_email(addr): check the email format"
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", content))
	seedSearchable(t, store, emb, searchChunk("c-2", "parse_config", "config.parse_config", "def parse_config(path): read settings"))

	engine := NewEngine(store, nil, emb, nil)

	// Embedding the exact stored content guarantees a perfect vector hit
	resp, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          content,
		LexicalEnabled: true,
		VectorEnabled:  true,
		LexicalWeight:  0.4,
		VectorWeight:   0.6,
		Domain:         types.DomainCode,
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "c-1", top.ChunkID)
	assert.NotNil(t, top.VectorScore)
	assert.InDelta(t, 1.0, *top.VectorScore, 1e-4)
	assert.Greater(t, resp.VectorCandidates, 0)
}

func TestSearch_PrecomputedEmbedding(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	content := "def validate_email(addr): check the email format"
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", content))

	vector, err := emb.Embed(context.Background(), content, types.DomainCode)
	require.NoError(t, err)

	// No embedder injected; the precomputed vector drives the path
	engine := NewEngine(store, nil, nil, nil)
	resp, err := engine.Search(context.Background(), Request{
		Repository:    "acme/api",
		Query:         "validate email",
		VectorEnabled: true,
		Domain:        types.DomainCode,
		Embeddings:    map[types.EmbeddingDomain][]float32{types.DomainCode: vector},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "c-1", resp.Results[0].ChunkID)
}

func TestSearch_DegradesWhenVectorPathFails(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", "def validate_email(addr): check format"))

	// Vector path cannot run: no embedder, no precomputed vector
	engine := NewEngine(store, nil, nil, nil)
	resp, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          "validate",
		LexicalEnabled: true,
		VectorEnabled:  true,
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, 1, resp.TotalResults)
	assert.Zero(t, resp.VectorCandidates)
}

// slowVectorStore delays vector search past any deadline the test sets
type slowVectorStore struct {
	storage.Storage
	delay time.Duration
}

func (s *slowVectorStore) SearchVector(ctx context.Context, repository string, vector []float32, domain types.EmbeddingDomain, limit int, filters *storage.SearchFilters) ([]storage.VectorResult, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Storage.SearchVector(ctx, repository, vector, domain, limit, filters)
}

func TestSearch_DegradesWhenPathTimesOut(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", "def validate_email(addr): check format"))

	engine := NewEngine(&slowVectorStore{Storage: store, delay: 5 * time.Second}, nil, emb, nil)
	resp, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          "validate",
		LexicalEnabled: true,
		VectorEnabled:  true,
		PathTimeout:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	// The slow path is dropped; the completed path's results survive
	assert.True(t, resp.Degraded)
	require.Equal(t, 1, resp.TotalResults)
	assert.Zero(t, resp.VectorCandidates)
	assert.Nil(t, resp.Results[0].VectorScore)
}

func TestSearch_BothPathsFailing(t *testing.T) {
	store := setupStore(t)
	// Closing the store makes the lexical path fail too
	require.NoError(t, store.(*storage.SQLiteStorage).Close())

	engine := NewEngine(store, nil, nil, nil)
	_, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          "anything",
		LexicalEnabled: true,
		VectorEnabled:  true,
	})
	assert.Error(t, err)
}

func TestSearch_EmptyResultSet(t *testing.T) {
	store := setupStore(t)
	engine := NewEngine(store, nil, localEmbedder(t), nil)

	resp, err := engine.Search(context.Background(), Request{
		Repository:     "acme/api",
		Query:          "nothing indexed",
		LexicalEnabled: true,
	})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalResults)
	assert.Empty(t, resp.Results)
}

func TestSearch_CacheFirstHydration(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	seedSearchable(t, store, emb, searchChunk("c-1", "validate_email", "validators.validate_email", "def validate_email(addr): check format"))

	cascade, err := cache.NewCascade(64, nil, time.Minute, nil)
	require.NoError(t, err)
	engine := NewEngine(store, cascade, emb, nil)

	req := Request{Repository: "acme/api", Query: "validate", LexicalEnabled: true}

	first, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalResults)
	assert.False(t, first.CacheServed)

	second, err := engine.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, second.TotalResults)
	assert.True(t, second.CacheServed)
}

func TestSearch_IncludeLinks(t *testing.T) {
	store := setupStore(t)
	emb := localEmbedder(t)
	ctx := context.Background()

	login := searchChunk("c-login", "login", "routes.auth.login", "def login(): validate_token()")
	login.Metadata.Calls = []types.CallRef{{Target: "validate_token"}}
	validate := searchChunk("c-validate", "validate_token", "routes.auth.validate_token", "def validate_token(): pass")
	seedSearchable(t, store, emb, login)
	seedSearchable(t, store, emb, validate)

	_, err := graph.NewEngine(store, nil, nil).BuildGraph(ctx, "acme/api", "python")
	require.NoError(t, err)

	engine := NewEngine(store, nil, emb, nil)
	resp, err := engine.Search(ctx, Request{
		Repository:     "acme/api",
		Query:          "login",
		LexicalEnabled: true,
		IncludeLinks:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalResults)

	links := resp.Results[0].Links
	require.Len(t, links, 1)
	assert.Equal(t, types.EdgeCalls, links[0].EdgeType)
	assert.Equal(t, types.LinkOutgoing, links[0].Direction)
	assert.Equal(t, "routes.auth.validate_token", links[0].Label)
}

func TestSearch_LimitClamped(t *testing.T) {
	store := setupStore(t)
	engine := NewEngine(store, nil, localEmbedder(t), nil)

	req := Request{Repository: "r", Query: "q", LexicalEnabled: true, Limit: 10000}
	require.NoError(t, engine.validateRequest(&req))
	assert.Equal(t, maxLimit, req.Limit)

	req = Request{Repository: "r", Query: "q", LexicalEnabled: true}
	require.NoError(t, engine.validateRequest(&req))
	assert.Equal(t, defaultLimit, req.Limit)
	assert.Equal(t, types.DomainCode, req.Domain)
	assert.InDelta(t, 1.0, req.LexicalWeight, 1e-9)
}

func TestFingerprint_Stable(t *testing.T) {
	a := Request{Repository: "r", Query: "q", Limit: 10, LexicalEnabled: true}
	b := Request{Repository: "r", Query: "q", Limit: 10, LexicalEnabled: true}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	c := Request{Repository: "r", Query: "other", Limit: 10, LexicalEnabled: true}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

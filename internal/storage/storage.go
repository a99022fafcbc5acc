package storage

import (
	"context"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// Storage defines the interface for persisting chunks, graph records,
// embeddings, and shared cache entries.
//
// Every operation is also available on a Tx, so callers can compose
// multiple writes atomically: call BeginTx and use the returned Tx wherever
// a Storage is accepted. Absence of a transaction means the store manages
// its own.
type Storage interface {
	// Chunk operations
	AddChunk(ctx context.Context, chunk *types.Chunk) error
	AddChunks(ctx context.Context, chunks []*types.Chunk) error
	UpdateChunk(ctx context.Context, chunk *types.Chunk) error
	GetChunk(ctx context.Context, id string) (*types.Chunk, error)
	GetChunksByFilePath(ctx context.Context, repository, filePath string) ([]*types.Chunk, error)
	ListChunksByRepository(ctx context.Context, repository string) ([]*types.Chunk, error)
	DeleteChunk(ctx context.Context, id string) error
	DeleteChunksByFilePath(ctx context.Context, repository, filePath string) error
	DeleteChunksByRepository(ctx context.Context, repository string) error

	// Node operations
	CreateNode(ctx context.Context, node *types.Node) error
	GetNode(ctx context.Context, id string) (*types.Node, error)
	GetNodeByChunk(ctx context.Context, chunkID string) (*types.Node, error)
	ListNodesByRepository(ctx context.Context, repository string) ([]*types.Node, error)
	DeleteNodesByRepository(ctx context.Context, repository string) error

	// Edge operations
	CreateEdge(ctx context.Context, edge *types.Edge) error
	ListEdgesByNode(ctx context.Context, nodeID string) ([]*types.Edge, error)
	CountEdgesByType(ctx context.Context, repository string) (map[types.EdgeType]int, error)
	DeleteEdgesByRepository(ctx context.Context, repository string) error

	// DeleteRepository removes everything stored for a repository in
	// dependency order: edges, then nodes, then chunks. On a Storage it
	// runs in its own transaction; on a Tx it joins the caller's.
	DeleteRepository(ctx context.Context, repository string) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	GetEmbedding(ctx context.Context, chunkID string, domain types.EmbeddingDomain) (*Embedding, error)

	// Search operations
	SearchText(ctx context.Context, repository, query string, limit int, filters *SearchFilters) ([]TextResult, error)
	SearchVector(ctx context.Context, repository string, vector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Shared cache tier operations. CacheGet returns ErrNotFound for
	// missing or expired keys.
	CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	CacheGet(ctx context.Context, key string) ([]byte, error)
	CacheDeleteByPrefix(ctx context.Context, prefix string) error
	CachePurgeExpired(ctx context.Context) (int, error)

	// Status operations
	GetStatus(ctx context.Context, repository string) (*RepositoryStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // every operation is usable inside the transaction
}

// Embedding is a stored vector for one chunk in one embedding domain
type Embedding struct {
	ID        int64
	ChunkID   string
	Domain    types.EmbeddingDomain
	Vector    []byte // serialized little-endian float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters narrows search candidates. Zero values mean "no filter".
type SearchFilters struct {
	Languages   []string // filter by chunk language
	ChunkTypes  []string // filter by chunk type
	FilePattern string   // GLOB pattern for file paths
	ReturnType  string   // substring match against signatures
	ParamType   string   // substring match against signatures
}

// TextResult is one lexical search candidate
type TextResult struct {
	ChunkID string
	Score   float64 // normalized BM25, higher is better
}

// VectorResult is one vector search candidate
type VectorResult struct {
	ChunkID    string
	Similarity float64 // cosine similarity, higher is better
}

// RepositoryStatus contains statistics about one indexed repository
type RepositoryStatus struct {
	Repository  string
	Chunks      int
	Nodes       int
	Edges       int
	Embeddings  int
	IndexSizeMB float64
}

// Package embedder provides embedding-vector clients for the TEXT and CODE
// domains. Each domain maps to its own model, so natural-language queries
// and source snippets embed into the spaces they search against.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
)

// Embedder generates embedding vectors. Implementations are safe for
// concurrent use.
type Embedder interface {
	// Embed generates one vector for text in the given domain
	Embed(ctx context.Context, text string, domain types.EmbeddingDomain) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts in one call
	EmbedBatch(ctx context.Context, texts []string, domain types.EmbeddingDomain) ([][]float32, error)

	// Dimension returns the vector dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model used for a domain
	Model(domain types.EmbeddingDomain) string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of vectors keyed by content hash
// and domain, so the same text embedded in both domains caches separately.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// DefaultCacheSize caps cached vectors when callers pass size <= 0
const DefaultCacheSize = 10000

// NewCache creates an embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of a cached vector so caller mutations never reach
// the cache.
func (c *Cache) Get(key string) ([]float32, bool) {
	vector, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vector))
	copy(out, vector)
	return out, true
}

// Set stores a vector with automatic LRU eviction
func (c *Cache) Set(key string, vector []float32) {
	c.cache.Add(key, vector)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// cacheKey fingerprints one text in one domain
func cacheKey(text string, domain types.EmbeddingDomain) string {
	sum := sha256.Sum256([]byte(string(domain) + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// validateTexts rejects empty input before it reaches a provider
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return ErrEmptyText
		}
	}
	return nil
}

// Package search implements hybrid retrieval: lexical and vector candidate
// search run concurrently and their rankings fuse via weighted Reciprocal
// Rank Fusion.
//
// The engine is stateless; storage, cache, and embedder handles are
// injected at construction. Chunk hydration is cache-first, and a single
// retrieval path exceeding its deadline degrades the response instead of
// failing it.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/embedder"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/pkg/types"
)

const (
	defaultLimit       = 10
	maxLimit           = 100
	defaultPathTimeout = 2 * time.Second

	// Candidate pools are oversized relative to the requested limit so
	// fusion has enough overlap to reward consensus
	candidateMultiplier = 2
)

// Request describes one hybrid search
type Request struct {
	Repository string
	Query      string
	Limit      int
	Filters    *storage.SearchFilters

	LexicalEnabled bool
	VectorEnabled  bool
	LexicalWeight  float64
	VectorWeight   float64

	// Domain selects the embedding space for the vector path
	Domain types.EmbeddingDomain

	// Embeddings are optional precomputed query vectors per domain; when
	// the vector path is enabled and no vector is supplied, the engine's
	// embedder computes one.
	Embeddings map[types.EmbeddingDomain][]float32

	RRFConstant  float64
	PathTimeout  time.Duration
	IncludeLinks bool
}

// Response carries fused results plus per-path metadata
type Response struct {
	Results      []types.SearchResult
	TotalResults int

	LexicalEnabled    bool
	VectorEnabled     bool
	LexicalCandidates int
	VectorCandidates  int

	// Degraded is set when a path timed out or failed and the response
	// was produced from the remaining path
	Degraded bool

	// CacheServed reports whether every chunk hydration was a cache hit
	CacheServed bool

	Duration time.Duration
}

// Engine coordinates hybrid retrieval. cascade and emb may be nil; a nil
// cascade disables cache-first hydration and a nil embedder requires
// precomputed vectors for the vector path.
type Engine struct {
	store   storage.Storage
	cascade *cache.Cascade
	emb     embedder.Embedder
	logger  *slog.Logger
}

// NewEngine creates a search engine
func NewEngine(store storage.Storage, cascade *cache.Cascade, emb embedder.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cascade: cascade, emb: emb, logger: logger}
}

// Search runs one hybrid retrieval per the request
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := e.validateRequest(&req); err != nil {
		return nil, err
	}

	lexical, vector, degraded, err := e.gather(ctx, req)
	if err != nil {
		return nil, err
	}

	fused := fuseRRF(lexical, vector, req.LexicalWeight, req.VectorWeight, req.RRFConstant)

	results, allCached, err := e.hydrate(ctx, req, fused)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Results:           results,
		TotalResults:      len(results),
		LexicalEnabled:    req.LexicalEnabled,
		VectorEnabled:     req.VectorEnabled,
		LexicalCandidates: len(lexical),
		VectorCandidates:  len(vector),
		Degraded:          degraded,
		CacheServed:       allCached,
		Duration:          time.Since(start),
	}

	e.logger.Debug("search completed",
		"repository", req.Repository,
		"results", resp.TotalResults,
		"lexical", resp.LexicalCandidates,
		"vector", resp.VectorCandidates,
		"degraded", resp.Degraded,
		"duration", resp.Duration)

	return resp, nil
}

func (e *Engine) validateRequest(req *Request) error {
	if req.Repository == "" {
		return &types.ValidationError{Field: "repository", Reason: "repository is required"}
	}
	if strings.TrimSpace(req.Query) == "" {
		return &types.ValidationError{Field: "query", Reason: "query cannot be empty"}
	}
	if !req.LexicalEnabled && !req.VectorEnabled {
		return &types.ValidationError{Field: "paths", Reason: "at least one retrieval path must be enabled"}
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.RRFConstant <= 0 {
		req.RRFConstant = DefaultRRFConstant
	}
	if req.PathTimeout <= 0 {
		req.PathTimeout = defaultPathTimeout
	}
	if req.LexicalWeight <= 0 && req.VectorWeight <= 0 {
		req.LexicalWeight = 1.0
		req.VectorWeight = 1.0
	}
	if req.Domain == "" {
		req.Domain = types.DomainCode
	}
	if !req.Domain.Valid() {
		return &types.ValidationError{Field: "domain", Reason: fmt.Sprintf("unknown embedding domain %q", req.Domain)}
	}
	return nil
}

// pathResult holds one retrieval path's outcome
type pathResult struct {
	lexical []storage.TextResult
	vector  []storage.VectorResult
	err     error
}

func (e *Engine) runLexical(ctx context.Context, req Request, out chan<- pathResult) {
	var res pathResult
	res.lexical, res.err = e.store.SearchText(ctx, req.Repository, req.Query, req.Limit*candidateMultiplier, req.Filters)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func (e *Engine) runVector(ctx context.Context, req Request, out chan<- pathResult) {
	var res pathResult
	queryVector, err := e.queryVector(ctx, req)
	if err != nil {
		res.err = err
	} else {
		res.vector, res.err = e.store.SearchVector(ctx, req.Repository, queryVector, req.Domain, req.Limit*candidateMultiplier, req.Filters)
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// queryVector returns the precomputed vector for the chosen domain or
// computes one with the injected embedder.
func (e *Engine) queryVector(ctx context.Context, req Request) ([]float32, error) {
	if v, ok := req.Embeddings[req.Domain]; ok && len(v) > 0 {
		return v, nil
	}
	if e.emb == nil {
		return nil, errors.New("no query embedding supplied and no embedder configured")
	}
	return e.emb.Embed(ctx, req.Query, req.Domain)
}

// gather scatters the enabled paths and waits up to the path timeout.
// A path that times out or fails degrades the response; only both paths
// failing surfaces an error.
func (e *Engine) gather(ctx context.Context, req Request) ([]storage.TextResult, []storage.VectorResult, bool, error) {
	lexChan := make(chan pathResult, 1)
	vecChan := make(chan pathResult, 1)

	pathCtx, cancel := context.WithTimeout(ctx, req.PathTimeout)
	defer cancel()

	if req.LexicalEnabled {
		go e.runLexical(pathCtx, req, lexChan)
	}
	if req.VectorEnabled {
		go e.runVector(pathCtx, req, vecChan)
	}

	var lexRes, vecRes pathResult
	lexDone := !req.LexicalEnabled
	vecDone := !req.VectorEnabled
	degraded := false

	deadline := time.NewTimer(req.PathTimeout)
	defer deadline.Stop()

	for !lexDone || !vecDone {
		select {
		case lexRes = <-lexChan:
			lexDone = true
		case vecRes = <-vecChan:
			vecDone = true
		case <-deadline.C:
			// Proceed with whichever path(s) completed
			degraded = true
			lexDone, vecDone = true, true
		case <-ctx.Done():
			return nil, nil, false, ctx.Err()
		}
	}

	lexFailed := req.LexicalEnabled && lexRes.err != nil
	vecFailed := req.VectorEnabled && vecRes.err != nil

	if lexFailed && vecFailed {
		return nil, nil, false, fmt.Errorf("both retrieval paths failed: lexical=%w, vector=%v", lexRes.err, vecRes.err)
	}
	if req.LexicalEnabled && req.VectorEnabled && (lexFailed || vecFailed) {
		degraded = true
		if lexFailed {
			e.logger.Warn("lexical path failed, degrading to vector only", "error", lexRes.err)
		} else {
			e.logger.Warn("vector path failed, degrading to lexical only", "error", vecRes.err)
		}
	} else if lexFailed {
		return nil, nil, false, lexRes.err
	} else if vecFailed {
		return nil, nil, false, vecRes.err
	}

	if lexFailed {
		lexRes.lexical = nil
	}
	if vecFailed {
		vecRes.vector = nil
	}

	return lexRes.lexical, vecRes.vector, degraded, nil
}

// hydrate loads chunk data for the top fused candidates, cache-first,
// and attaches graph links when requested.
func (e *Engine) hydrate(ctx context.Context, req Request, fused []fusedCandidate) ([]types.SearchResult, bool, error) {
	limit := req.Limit
	if limit > len(fused) {
		limit = len(fused)
	}

	results := make([]types.SearchResult, 0, limit)
	allCached := true

	for i := 0; i < limit; i++ {
		fc := fused[i]

		chunk, fromCache := e.loadChunk(ctx, req.Repository, fc.chunkID)
		if chunk == nil {
			// Stale candidate, likely deleted between ranking and
			// hydration
			continue
		}
		if !fromCache {
			allCached = false
		}

		result := types.SearchResult{
			ChunkID:      fc.chunkID,
			Rank:         len(results) + 1,
			FusedScore:   fc.score,
			LexicalScore: fc.lexicalScore,
			VectorScore:  fc.vectorScore,
			Repository:   chunk.Repository,
			FilePath:     chunk.FilePath,
			Name:         chunk.Name,
			NamePath:     chunk.NamePath,
			ChunkType:    chunk.ChunkType,
			Language:     chunk.Language,
			StartLine:    chunk.StartLine,
			EndLine:      chunk.EndLine,
			Content:      chunk.Content,
		}

		if req.IncludeLinks {
			result.Links = e.loadLinks(ctx, fc.chunkID)
		}

		results = append(results, result)
	}

	if len(results) == 0 {
		allCached = false
	}
	return results, allCached, nil
}

// loadChunk reads through the cascade cache, falling back to storage and
// populating the cache on a miss.
func (e *Engine) loadChunk(ctx context.Context, repository, chunkID string) (*types.Chunk, bool) {
	key := cache.ChunkKey(repository, chunkID)

	if e.cascade != nil {
		if value, ok := e.cascade.Get(ctx, key); ok {
			chunk, err := cache.DecodeChunk(value)
			if err == nil {
				return chunk, true
			}
			e.logger.Warn("corrupt cache entry", "key", key, "error", err)
		}
	}

	chunk, err := e.store.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, false
	}

	if e.cascade != nil {
		if value, err := cache.EncodeChunk(chunk); err == nil {
			e.cascade.Set(ctx, key, value)
		}
	}
	return chunk, false
}

// loadLinks attaches graph-derived relationships. Link failures are not
// fatal to the search.
func (e *Engine) loadLinks(ctx context.Context, chunkID string) []types.GraphLink {
	node, err := e.store.GetNodeByChunk(ctx, chunkID)
	if err != nil {
		return nil
	}

	edges, err := e.store.ListEdgesByNode(ctx, node.ID)
	if err != nil {
		return nil
	}

	links := make([]types.GraphLink, 0, len(edges))
	for _, edge := range edges {
		link := types.GraphLink{
			EdgeType:   edge.EdgeType,
			Confidence: edge.Confidence,
		}
		var otherID string
		if edge.SourceNodeID == node.ID {
			link.Direction = types.LinkOutgoing
			otherID = edge.TargetNodeID
		} else {
			link.Direction = types.LinkIncoming
			otherID = edge.SourceNodeID
		}
		other, err := e.store.GetNode(ctx, otherID)
		if err != nil {
			continue
		}
		link.NodeID = other.ID
		link.Label = other.Label
		links = append(links, link)
	}
	return links
}

// Fingerprint computes a stable digest of a request for cache keys
func Fingerprint(req Request) string {
	var b strings.Builder
	b.WriteString(req.Query)
	fmt.Fprintf(&b, "|%d|%v|%v|%.3f|%.3f|%s|%.0f",
		req.Limit, req.LexicalEnabled, req.VectorEnabled,
		req.LexicalWeight, req.VectorWeight, req.Domain, req.RRFConstant)
	if f := req.Filters; f != nil {
		fmt.Fprintf(&b, "|%s|%s|%s|%s|%s",
			strings.Join(f.Languages, ","), strings.Join(f.ChunkTypes, ","),
			f.FilePattern, f.ReturnType, f.ParamType)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

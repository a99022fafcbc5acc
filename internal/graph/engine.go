// Package graph builds the code graph: it turns stored chunks into Node
// and Edge records, resolving call and import references across files.
//
// Construction runs as a linear state machine inside one transaction:
// collect chunks, create nodes, resolve call edges, resolve import edges,
// commit. Any failure rolls back the entire run, so a repository's graph
// exists either completely or not at all.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/internal/symbolpath"
	"github.com/codegraph-dev/codegraph/pkg/types"
)

// Engine constructs and deletes repository graphs. It is stateless:
// storage and cache handles are injected at construction, and no notion
// of a current repository is held between calls.
type Engine struct {
	store     storage.Storage
	cache     *cache.Cascade
	resolvers map[string]Resolver
	fallback  Resolver
	logger    *slog.Logger
}

// NewEngine creates a graph engine. cache may be nil to skip warming and
// invalidation. Additional per-language resolvers override the default
// cascade for their language.
func NewEngine(store storage.Storage, cascade *cache.Cascade, logger *slog.Logger, resolvers ...Resolver) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	byLanguage := make(map[string]Resolver)
	byLanguage["python"] = NewPythonResolver()
	for _, r := range resolvers {
		byLanguage[r.Language()] = r
	}

	return &Engine{
		store:     store,
		cache:     cascade,
		resolvers: byLanguage,
		fallback:  NewDefaultResolver(""),
		logger:    logger,
	}
}

// resolverFor selects the resolver at the start of a run; chunk language
// strings are not inspected again after this point.
func (e *Engine) resolverFor(language string) Resolver {
	if r, ok := e.resolvers[language]; ok {
		return r
	}
	return e.fallback
}

// BuildGraph constructs the graph for one repository. Any prior nodes and
// edges for the repository are replaced in the same transaction, so
// repeated invocation is idempotent and a chunk never maps to more than
// one node.
func (e *Engine) BuildGraph(ctx context.Context, repository, language string) (*types.GraphStats, error) {
	if repository == "" {
		return nil, &types.ValidationError{Field: "repository", Reason: "repository is required"}
	}

	resolver := e.resolverFor(language)
	start := time.Now()

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin graph transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run, err := e.buildInTx(ctx, tx, repository, resolver)
	if err != nil {
		return nil, fmt.Errorf("graph construction for %s failed: %w", repository, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit graph for %s: %w", repository, err)
	}

	stats := run.stats(repository, time.Since(start))
	e.logger.Info("graph constructed",
		"repository", repository,
		"nodes", stats.TotalNodes,
		"edges", stats.TotalEdges,
		"accuracy", stats.ResolutionAccuracy,
		"duration", stats.Duration)

	// Cache is only touched after the durable commit succeeded
	e.warmCache(repository, run.chunks)

	return stats, nil
}

// buildRun accumulates the state of one construction run
type buildRun struct {
	chunks      []*types.Chunk
	nodes       []*types.Node
	edgesByType map[types.EdgeType]int
	totalEdges  int
	totalCalls  int
	unresolved  int
	skipped     int
}

func (r *buildRun) stats(repository string, duration time.Duration) *types.GraphStats {
	accuracy := 1.0
	if r.totalCalls > 0 {
		accuracy = float64(r.totalCalls-r.unresolved) / float64(r.totalCalls)
	}
	return &types.GraphStats{
		Repository:         repository,
		TotalNodes:         len(r.nodes),
		TotalEdges:         r.totalEdges,
		EdgesByType:        r.edgesByType,
		ResolutionAccuracy: accuracy,
		UnresolvedCalls:    r.unresolved,
		NodesSkipped:       r.skipped,
		Duration:           duration,
	}
}

func (e *Engine) buildInTx(ctx context.Context, tx storage.Tx, repository string, resolver Resolver) (*buildRun, error) {
	run := &buildRun{edgesByType: make(map[types.EdgeType]int)}

	// Replace any prior graph, dependency order first; chunks stay
	if err := tx.DeleteEdgesByRepository(ctx, repository); err != nil {
		return nil, fmt.Errorf("failed to clear prior edges: %w", err)
	}
	if err := tx.DeleteNodesByRepository(ctx, repository); err != nil {
		return nil, fmt.Errorf("failed to clear prior nodes: %w", err)
	}

	// Collect
	chunks, err := tx.ListChunksByRepository(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to collect chunks: %w", err)
	}
	run.chunks = chunks

	// Create nodes: exactly one per indexable chunk
	nodeByChunk := make(map[string]*types.Node, len(chunks))
	for _, chunk := range chunks {
		nodeType, ok := types.NodeTypeForChunk(chunk.ChunkType)
		if !ok {
			run.skipped++
			continue
		}
		node := &types.Node{
			ID:         uuid.NewString(),
			Repository: repository,
			NodeType:   nodeType,
			Label:      chunk.NamePath,
			ChunkID:    chunk.ID,
			FilePath:   chunk.FilePath,
			Properties: types.NodeProperties{
				Repository: repository,
				Signature:  chunk.Signature,
				Complexity: chunk.LineCount(),
			},
		}
		if err := tx.CreateNode(ctx, node); err != nil {
			return nil, fmt.Errorf("failed to create node for chunk %s: %w", chunk.ID, err)
		}
		nodeByChunk[chunk.ID] = node
		run.nodes = append(run.nodes, node)
	}

	idx := NewSymbolIndex(run.nodes)

	// Resolve call edges: unresolved calls count against accuracy but
	// never fail the run
	for _, chunk := range chunks {
		source, ok := nodeByChunk[chunk.ID]
		if !ok {
			continue
		}
		for _, ref := range chunk.Metadata.Calls {
			run.totalCalls++
			match, ok := resolver.ResolveCall(ref, chunk, idx)
			if !ok {
				run.unresolved++
				e.logger.Debug("unresolved call",
					"repository", repository,
					"source", chunk.NamePath,
					"target", ref.Target)
				continue
			}
			if err := e.createEdge(ctx, tx, repository, source, match, types.EdgeCalls, run); err != nil {
				return nil, err
			}
		}
	}

	// Resolve import edges: unresolved imports are silently dropped
	for _, chunk := range chunks {
		source, ok := nodeByChunk[chunk.ID]
		if !ok {
			continue
		}
		for _, ref := range chunk.Metadata.Imports {
			match, ok := resolver.ResolveImport(ref, chunk, idx)
			if !ok {
				continue
			}
			if err := e.createEdge(ctx, tx, repository, source, match, types.EdgeImports, run); err != nil {
				return nil, err
			}
		}
	}

	return run, nil
}

func (e *Engine) createEdge(ctx context.Context, tx storage.Tx, repository string, source *types.Node, match Match, edgeType types.EdgeType, run *buildRun) error {
	edge := &types.Edge{
		ID:           uuid.NewString(),
		Repository:   repository,
		SourceNodeID: source.ID,
		TargetNodeID: match.Node.ID,
		EdgeType:     edgeType,
		Confidence:   match.Info.Confidence,
	}
	if err := tx.CreateEdge(ctx, edge); err != nil {
		return fmt.Errorf("failed to create %s edge from %s: %w", edgeType, source.Label, err)
	}
	run.edgesByType[edgeType]++
	run.totalEdges++
	return nil
}

// warmCache populates chunk entries after a successful commit. It runs
// fire-and-forget: failures are logged, never surfaced.
func (e *Engine) warmCache(repository string, chunks []*types.Chunk) {
	if e.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, chunk := range chunks {
			value, err := cache.EncodeChunk(chunk)
			if err != nil {
				e.logger.Warn("cache warm encode failed", "chunk", chunk.ID, "error", err)
				continue
			}
			e.cache.Set(ctx, cache.ChunkKey(repository, chunk.ID), value)
		}
	}()
}

// DeleteByRepository removes everything stored for a repository: edges,
// then nodes, then chunks, inside one transaction. Cache invalidation
// follows fire-and-forget after the commit.
func (e *Engine) DeleteByRepository(ctx context.Context, repository string) error {
	if repository == "" {
		return &types.ValidationError{Field: "repository", Reason: "repository is required"}
	}

	if err := e.store.DeleteRepository(ctx, repository); err != nil {
		return fmt.Errorf("failed to delete repository %s: %w", repository, err)
	}

	e.logger.Info("repository deleted", "repository", repository)

	if e.cache != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for _, prefix := range cache.RepositoryPrefixes(repository) {
				e.cache.InvalidatePrefix(ctx, prefix)
			}
		}()
	}
	return nil
}

// ResolveSymbolPath exposes qualified-name resolution for one chunk given
// its parent chain, for callers outside a construction run.
func (e *Engine) ResolveSymbolPath(chunk *types.Chunk, repoRoot string, parents []string) string {
	return symbolpath.Resolve(chunk.Name, chunk.FilePath, repoRoot, parents)
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/search"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/internal/symbolpath"
	"github.com/codegraph-dev/codegraph/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// embedWorkers bounds concurrent embedding calls during ingestion
const embedWorkers = 4

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// chunkInput is the wire shape of one ingested chunk
type chunkInput struct {
	ID        string            `json:"id"`
	FilePath  string            `json:"file_path"`
	ChunkType string            `json:"chunk_type"`
	Name      string            `json:"name"`
	Content   string            `json:"content"`
	Language  string            `json:"language"`
	Signature string            `json:"signature"`
	StartLine int               `json:"start_line"`
	EndLine   int               `json:"end_line"`
	Calls     []types.CallRef   `json:"calls"`
	Imports   []types.ImportRef `json:"imports"`
}

// handleAddChunks ingests a batch of chunks, assigns qualified name paths,
// and stores everything in one transaction.
func (s *Server) handleAddChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repository parameter is required", nil)
	}
	repoRoot, _ := args["repo_root"].(string)
	embed, _ := args["embed"].(bool)

	rawChunks, ok := args["chunks"].([]interface{})
	if !ok || len(rawChunks) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks parameter is required and cannot be empty", nil)
	}

	inputs := make([]chunkInput, 0, len(rawChunks))
	encoded, err := json.Marshal(rawChunks)
	if err == nil {
		err = json.Unmarshal(encoded, &inputs)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "malformed chunk records", map[string]interface{}{"error": err.Error()})
	}

	chunks := make([]*types.Chunk, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		chunks[i] = &types.Chunk{
			ID:         id,
			Repository: repository,
			FilePath:   in.FilePath,
			ChunkType:  types.ChunkType(in.ChunkType),
			Name:       in.Name,
			Content:    in.Content,
			Language:   in.Language,
			Signature:  in.Signature,
			StartLine:  in.StartLine,
			EndLine:    in.EndLine,
			Metadata:   types.ChunkMetadata{Calls: in.Calls, Imports: in.Imports},
		}
	}

	// Qualified paths need the full sibling set for parent detection
	for _, chunk := range chunks {
		chunk.NamePath = symbolpath.ResolveChunk(chunk, repoRoot, chunks)
	}

	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunk", map[string]interface{}{
				"chunk_id": chunk.ID,
				"error":    err.Error(),
			})
		}
	}

	if err := s.storage.AddChunks(ctx, chunks); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to store chunks", map[string]interface{}{"error": err.Error()})
	}

	embedded := 0
	if embed {
		embedded = s.embedChunks(ctx, chunks)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository":   repository,
		"chunks_added": len(chunks),
		"embedded":     embedded,
	})), nil
}

// embedChunks generates and stores CODE-domain embeddings concurrently.
// Individual failures are logged and skipped; ingestion already committed.
func (s *Server) embedChunks(ctx context.Context, chunks []*types.Chunk) int {
	var (
		mu       sync.Mutex
		embedded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for _, chunk := range chunks {
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, chunk.Content, types.DomainCode)
			if err != nil {
				s.logger.Warn("embedding failed", "chunk", chunk.ID, "error", err)
				return nil
			}
			emb := &storage.Embedding{
				ChunkID:   chunk.ID,
				Domain:    types.DomainCode,
				Vector:    storage.SerializeVector(vector),
				Dimension: len(vector),
				Provider:  s.embedder.Provider(),
				Model:     s.embedder.Model(types.DomainCode),
			}
			if err := s.storage.UpsertEmbedding(gctx, emb); err != nil {
				s.logger.Warn("embedding store failed", "chunk", chunk.ID, "error", err)
				return nil
			}
			mu.Lock()
			embedded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return embedded
}

// handleBuildGraph handles the build_graph tool invocation
func (s *Server) handleBuildGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repository parameter is required", nil)
	}
	language, _ := args["language"].(string)

	stats, err := s.graph.BuildGraph(ctx, repository, language)
	if err != nil {
		if types.IsValidation(err) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "graph construction failed", map[string]interface{}{"error": err.Error()})
	}

	edgesByType := make(map[string]int, len(stats.EdgesByType))
	for t, n := range stats.EdgesByType {
		edgesByType[string(t)] = n
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository":          stats.Repository,
		"total_nodes":         stats.TotalNodes,
		"total_edges":         stats.TotalEdges,
		"edges_by_type":       edgesByType,
		"resolution_accuracy": stats.ResolutionAccuracy,
		"unresolved_calls":    stats.UnresolvedCalls,
		"nodes_skipped":       stats.NodesSkipped,
		"duration_ms":         stats.Duration.Milliseconds(),
	})), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repository parameter is required", nil)
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}

	req := search.Request{
		Repository:     repository,
		Query:          query,
		Limit:          getIntDefault(args, "limit", 10),
		LexicalEnabled: getBoolDefault(args, "lexical_enabled", true),
		VectorEnabled:  getBoolDefault(args, "vector_enabled", true),
		LexicalWeight:  getFloatDefault(args, "lexical_weight", 1.0),
		VectorWeight:   getFloatDefault(args, "vector_weight", 1.0),
		Domain:         types.EmbeddingDomain(getStringDefault(args, "domain", string(types.DomainCode))),
		IncludeLinks:   getBoolDefault(args, "include_links", false),
		Filters:        parseFilters(args),
	}

	resp, err := s.search.Search(ctx, req)
	if err != nil {
		if types.IsValidation(err) {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{"error": err.Error()})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]interface{}{
			"chunk_id":    r.ChunkID,
			"rank":        r.Rank,
			"fused_score": r.FusedScore,
			"repository":  r.Repository,
			"file_path":   r.FilePath,
			"name":        r.Name,
			"name_path":   r.NamePath,
			"chunk_type":  string(r.ChunkType),
			"language":    r.Language,
			"start_line":  r.StartLine,
			"end_line":    r.EndLine,
			"content":     r.Content,
		}
		// Nullable per-path scores stay null when the path did not rank
		// the item
		if r.LexicalScore != nil {
			entry["lexical_score"] = *r.LexicalScore
		}
		if r.VectorScore != nil {
			entry["vector_score"] = *r.VectorScore
		}
		if len(r.Links) > 0 {
			links := make([]map[string]interface{}, len(r.Links))
			for j, l := range r.Links {
				links[j] = map[string]interface{}{
					"edge_type":  string(l.EdgeType),
					"direction":  string(l.Direction),
					"node_id":    l.NodeID,
					"label":      l.Label,
					"confidence": l.Confidence,
				}
			}
			entry["links"] = links
		}
		results[i] = entry
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":            results,
		"total_results":      resp.TotalResults,
		"lexical_enabled":    resp.LexicalEnabled,
		"vector_enabled":     resp.VectorEnabled,
		"lexical_candidates": resp.LexicalCandidates,
		"vector_candidates":  resp.VectorCandidates,
		"degraded":           resp.Degraded,
		"cache_served":       resp.CacheServed,
		"duration_ms":        resp.Duration.Milliseconds(),
	})), nil
}

// handleDeleteRepository handles the delete_repository tool invocation
func (s *Server) handleDeleteRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repository parameter is required", nil)
	}

	if err := s.graph.DeleteByRepository(ctx, repository); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "deletion failed", map[string]interface{}{"error": err.Error()})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository": repository,
		"deleted":    true,
	})), nil
}

// handleResolveSymbol handles the resolve_symbol tool invocation
func (s *Server) handleResolveSymbol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", nil)
	}
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", nil)
	}
	repoRoot, _ := args["repo_root"].(string)

	var parents []string
	if raw, ok := args["parents"].([]interface{}); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				parents = append(parents, s)
			}
		}
	}

	path := symbolpath.Resolve(name, filePath, repoRoot, parents)

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"name":      name,
		"file_path": filePath,
		"name_path": path,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "repository parameter is required", nil)
	}

	status, err := s.storage.GetStatus(ctx, repository)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{"error": err.Error()})
	}

	cacheStats := s.cascade.Stats()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"repository": repository,
		"indexed":    status.Chunks > 0,
		"statistics": map[string]interface{}{
			"chunks":        status.Chunks,
			"nodes":         status.Nodes,
			"edges":         status.Edges,
			"embeddings":    status.Embeddings,
			"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"cache": map[string]interface{}{
			"local_hits":   cacheStats.LocalHits,
			"shared_hits":  cacheStats.SharedHits,
			"misses":       cacheStats.Misses,
			"promotions":   cacheStats.Promotions,
			"shared_fails": cacheStats.SharedFails,
		},
		"embedder": map[string]interface{}{
			"provider":   s.embedder.Provider(),
			"code_model": s.embedder.Model(types.DomainCode),
			"text_model": s.embedder.Model(types.DomainText),
		},
	})), nil
}

// Helper functions

// parseFilters converts the wire filter object into storage filters
func parseFilters(args map[string]interface{}) *storage.SearchFilters {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok {
		return nil
	}

	filters := &storage.SearchFilters{
		FilePattern: getStringDefault(raw, "file_pattern", ""),
		ReturnType:  getStringDefault(raw, "return_type", ""),
		ParamType:   getStringDefault(raw, "param_type", ""),
	}
	filters.Languages = toStringSlice(raw["languages"])
	filters.ChunkTypes = toStringSlice(raw["chunk_types"])
	return filters
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// addChunksTool returns the tool definition for add_chunks
func addChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_chunks",
		Description: "Ingest pre-extracted code chunks into a repository index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier the chunks belong to",
				},
				"repo_root": map[string]interface{}{
					"type":        "string",
					"description": "Repository root path used to derive qualified names",
				},
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Chunk records with pre-extracted calls[] and imports[] metadata",
					"items": map[string]interface{}{
						"type": "object",
					},
				},
				"embed": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, generate CODE-domain embeddings for each chunk",
					"default":     false,
				},
			},
			Required: []string{"repository", "chunks"},
		},
	}
}

// buildGraphTool returns the tool definition for build_graph
func buildGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_graph",
		Description: "Construct the code graph (nodes and call/import edges) for an indexed repository, replacing any prior graph",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier to build the graph for",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Primary language, selects the call/import resolver",
				},
			},
			Required: []string{"repository"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Hybrid lexical + vector search over indexed chunks with RRF fusion",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier to search",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"lexical_enabled": map[string]interface{}{
					"type":        "boolean",
					"description": "Enable the lexical (BM25) retrieval path",
					"default":     true,
				},
				"vector_enabled": map[string]interface{}{
					"type":        "boolean",
					"description": "Enable the vector (cosine similarity) retrieval path",
					"default":     true,
				},
				"lexical_weight": map[string]interface{}{
					"type":        "number",
					"description": "RRF weight for the lexical path",
					"default":     1.0,
				},
				"vector_weight": map[string]interface{}{
					"type":        "number",
					"description": "RRF weight for the vector path",
					"default":     1.0,
				},
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "Embedding domain for the vector path",
					"enum":        []string{"text", "code"},
					"default":     "code",
				},
				"include_links": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach graph-derived call/import links to each result",
					"default":     false,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"languages": map[string]interface{}{
							"type":        "array",
							"description": "Filter by chunk language",
							"items":       map[string]interface{}{"type": "string"},
						},
						"chunk_types": map[string]interface{}{
							"type":        "array",
							"description": "Filter by chunk kind",
							"items": map[string]interface{}{
								"type": "string",
								"enum": []string{"function", "class", "method", "other"},
							},
						},
						"file_pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern for file paths (e.g., 'api/routes/*')",
						},
						"return_type": map[string]interface{}{
							"type":        "string",
							"description": "Substring match against signature return types",
						},
						"param_type": map[string]interface{}{
							"type":        "string",
							"description": "Substring match against signature parameter types",
						},
					},
				},
			},
			Required: []string{"repository", "query"},
		},
	}
}

// deleteRepositoryTool returns the tool definition for delete_repository
func deleteRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_repository",
		Description: "Remove all chunks, nodes, and edges for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier to delete",
				},
			},
			Required: []string{"repository"},
		},
	}
}

// resolveSymbolTool returns the tool definition for resolve_symbol
func resolveSymbolTool() mcp.Tool {
	return mcp.Tool{
		Name:        "resolve_symbol",
		Description: "Compute the dotted qualified path for a symbol from its file location and parent scopes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "File path the symbol is defined in",
				},
				"repo_root": map[string]interface{}{
					"type":        "string",
					"description": "Repository root path",
				},
				"parents": map[string]interface{}{
					"type":        "array",
					"description": "Enclosing scope names, innermost first",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"name", "file_path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index and graph statistics for a repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository identifier",
				},
			},
			Required: []string{"repository"},
		},
	}
}

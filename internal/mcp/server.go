package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codegraph-dev/codegraph/internal/cache"
	"github.com/codegraph-dev/codegraph/internal/embedder"
	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/search"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codegraph"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the database
	DefaultDBPath = "~/.codegraph/index"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	cascade  *cache.Cascade
	graph    *graph.Engine
	search   *search.Engine
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(dbPath string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".codegraph", "index")
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbFile := filepath.Join(dbPath, "codegraph.db")

	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	// The shared cache tier rides on the same database file, so every
	// process serving this index sees the same durable entries
	cascade, err := cache.NewCascade(cache.DefaultLocalSize, cache.NewSQLiteSharedTier(store), cache.DefaultTTL, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		cascade:  cascade,
		graph:    graph.NewEngine(store, cascade, logger),
		search:   search.NewEngine(store, cascade, emb, logger),
		embedder: emb,
		logger:   logger,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	defer func() { _ = s.embedder.Close() }()

	// Opportunistic TTL cleanup of the shared cache tier
	go s.purgeExpiredLoop(ctx)

	return server.ServeStdio(s.mcp)
}

func (s *Server) purgeExpiredLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.storage.CachePurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("cache purge failed", "error", err)
			} else if purged > 0 {
				s.logger.Debug("purged expired cache entries", "count", purged)
			}
		}
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(addChunksTool(), s.handleAddChunks)
	s.mcp.AddTool(buildGraphTool(), s.handleBuildGraph)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(deleteRepositoryTool(), s.handleDeleteRepository)
	s.mcp.AddTool(resolveSymbolTool(), s.handleResolveSymbol)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

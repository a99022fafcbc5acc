package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db    *sql.DB
	retry RetryConfig
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Foreign keys enforce the node->chunk and edge->node invariants
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, retry: DefaultRetryConfig()}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction. Graph construction for one repository
// serializes here: SQLite's single-writer locking makes concurrent builds
// for the same database queue rather than interleave.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := beginWithRetry(ctx, s.db, s.retry)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Chunk operations

const chunkColumns = `id, repository, file_path, chunk_type, name, name_path,
       content, language, signature, start_line, end_line, metadata`

func (s *SQLiteStorage) addChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode chunk metadata: %w", err)
	}

	query := `
		INSERT INTO chunks (` + chunkColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err = q.ExecContext(ctx, query,
		chunk.ID, chunk.Repository, chunk.FilePath, string(chunk.ChunkType),
		chunk.Name, chunk.NamePath, chunk.Content, chunk.Language, chunk.Signature,
		chunk.StartLine, chunk.EndLine, string(meta), now, now)
	if err != nil {
		return fmt.Errorf("failed to add chunk: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AddChunk(ctx context.Context, chunk *types.Chunk) error {
	return s.addChunkWithQuerier(ctx, s.querier(), chunk)
}

func (s *SQLiteStorage) addChunksWithQuerier(ctx context.Context, q querier, chunks []*types.Chunk) error {
	for _, chunk := range chunks {
		if err := s.addChunkWithQuerier(ctx, q, chunk); err != nil {
			return err
		}
	}
	return nil
}

// AddChunks inserts a batch of chunks in one transaction when called on
// the storage directly, or joins the caller's transaction on a Tx.
func (s *SQLiteStorage) AddChunks(ctx context.Context, chunks []*types.Chunk) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.AddChunks(ctx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) updateChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	meta, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode chunk metadata: %w", err)
	}

	query := `
		UPDATE chunks
		SET repository = ?, file_path = ?, chunk_type = ?, name = ?, name_path = ?,
		    content = ?, language = ?, signature = ?, start_line = ?, end_line = ?,
		    metadata = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		chunk.Repository, chunk.FilePath, string(chunk.ChunkType), chunk.Name,
		chunk.NamePath, chunk.Content, chunk.Language, chunk.Signature,
		chunk.StartLine, chunk.EndLine, string(meta), time.Now(), chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) UpdateChunk(ctx context.Context, chunk *types.Chunk) error {
	return s.updateChunkWithQuerier(ctx, s.querier(), chunk)
}

func scanChunk(row interface{ Scan(...interface{}) error }) (*types.Chunk, error) {
	var chunk types.Chunk
	var chunkType, meta string
	var name, namePath, language, signature sql.NullString

	err := row.Scan(
		&chunk.ID, &chunk.Repository, &chunk.FilePath, &chunkType,
		&name, &namePath, &chunk.Content, &language, &signature,
		&chunk.StartLine, &chunk.EndLine, &meta,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	chunk.ChunkType = types.ChunkType(chunkType)
	chunk.Name = name.String
	chunk.NamePath = namePath.String
	chunk.Language = language.String
	chunk.Signature = signature.String
	if err := json.Unmarshal([]byte(meta), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
	}
	return &chunk, nil
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, id string) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	return scanChunk(q.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, q querier, query string, args ...interface{}) ([]*types.Chunk, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) getChunksByFilePathWithQuerier(ctx context.Context, q querier, repository, filePath string) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE repository = ? AND file_path = ? ORDER BY start_line`
	return s.queryChunks(ctx, q, query, repository, filePath)
}

func (s *SQLiteStorage) GetChunksByFilePath(ctx context.Context, repository, filePath string) ([]*types.Chunk, error) {
	return s.getChunksByFilePathWithQuerier(ctx, s.querier(), repository, filePath)
}

func (s *SQLiteStorage) listChunksByRepositoryWithQuerier(ctx context.Context, q querier, repository string) ([]*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE repository = ? ORDER BY file_path, start_line`
	return s.queryChunks(ctx, q, query, repository)
}

func (s *SQLiteStorage) ListChunksByRepository(ctx context.Context, repository string) ([]*types.Chunk, error) {
	return s.listChunksByRepositoryWithQuerier(ctx, s.querier(), repository)
}

func (s *SQLiteStorage) deleteChunkWithQuerier(ctx context.Context, q querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) DeleteChunk(ctx context.Context, id string) error {
	return s.deleteChunkWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) deleteChunksByFilePathWithQuerier(ctx context.Context, q querier, repository, filePath string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE repository = ? AND file_path = ?`, repository, filePath)
	return err
}

func (s *SQLiteStorage) DeleteChunksByFilePath(ctx context.Context, repository, filePath string) error {
	return s.deleteChunksByFilePathWithQuerier(ctx, s.querier(), repository, filePath)
}

func (s *SQLiteStorage) deleteChunksByRepositoryWithQuerier(ctx context.Context, q querier, repository string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE repository = ?`, repository)
	return err
}

func (s *SQLiteStorage) DeleteChunksByRepository(ctx context.Context, repository string) error {
	return s.deleteChunksByRepositoryWithQuerier(ctx, s.querier(), repository)
}

// Node operations

const nodeColumns = `id, repository, node_type, label, chunk_id, file_path, properties`

func (s *SQLiteStorage) createNodeWithQuerier(ctx context.Context, q querier, node *types.Node) error {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	props, err := json.Marshal(node.Properties)
	if err != nil {
		return fmt.Errorf("failed to encode node properties: %w", err)
	}

	query := `
		INSERT INTO nodes (` + nodeColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		node.ID, node.Repository, string(node.NodeType), node.Label,
		node.ChunkID, node.FilePath, string(props), time.Now())
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateNode(ctx context.Context, node *types.Node) error {
	return s.createNodeWithQuerier(ctx, s.querier(), node)
}

func scanNode(row interface{ Scan(...interface{}) error }) (*types.Node, error) {
	var node types.Node
	var nodeType, props string

	err := row.Scan(&node.ID, &node.Repository, &nodeType, &node.Label,
		&node.ChunkID, &node.FilePath, &props)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	node.NodeType = types.NodeType(nodeType)
	if err := json.Unmarshal([]byte(props), &node.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode node properties: %w", err)
	}
	return &node, nil
}

func (s *SQLiteStorage) getNodeWithQuerier(ctx context.Context, q querier, id string) (*types.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`
	return scanNode(q.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStorage) GetNode(ctx context.Context, id string) (*types.Node, error) {
	return s.getNodeWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) getNodeByChunkWithQuerier(ctx context.Context, q querier, chunkID string) (*types.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE chunk_id = ?`
	return scanNode(q.QueryRowContext(ctx, query, chunkID))
}

func (s *SQLiteStorage) GetNodeByChunk(ctx context.Context, chunkID string) (*types.Node, error) {
	return s.getNodeByChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) listNodesByRepositoryWithQuerier(ctx context.Context, q querier, repository string) ([]*types.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE repository = ? ORDER BY label`
	rows, err := q.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	nodes := make([]*types.Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (s *SQLiteStorage) ListNodesByRepository(ctx context.Context, repository string) ([]*types.Node, error) {
	return s.listNodesByRepositoryWithQuerier(ctx, s.querier(), repository)
}

func (s *SQLiteStorage) deleteNodesByRepositoryWithQuerier(ctx context.Context, q querier, repository string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE repository = ?`, repository)
	return err
}

func (s *SQLiteStorage) DeleteNodesByRepository(ctx context.Context, repository string) error {
	return s.deleteNodesByRepositoryWithQuerier(ctx, s.querier(), repository)
}

// Edge operations

func (s *SQLiteStorage) createEdgeWithQuerier(ctx context.Context, q querier, edge *types.Edge) error {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	query := `
		INSERT INTO edges (id, repository, source_node_id, target_node_id, edge_type, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		edge.ID, edge.Repository, edge.SourceNodeID, edge.TargetNodeID,
		string(edge.EdgeType), edge.Confidence, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateEdge(ctx context.Context, edge *types.Edge) error {
	return s.createEdgeWithQuerier(ctx, s.querier(), edge)
}

func (s *SQLiteStorage) listEdgesByNodeWithQuerier(ctx context.Context, q querier, nodeID string) ([]*types.Edge, error) {
	query := `
		SELECT id, repository, source_node_id, target_node_id, edge_type, confidence
		FROM edges
		WHERE source_node_id = ? OR target_node_id = ?
		ORDER BY edge_type, id
	`
	rows, err := q.QueryContext(ctx, query, nodeID, nodeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*types.Edge, 0)
	for rows.Next() {
		var edge types.Edge
		var edgeType string
		err := rows.Scan(&edge.ID, &edge.Repository, &edge.SourceNodeID,
			&edge.TargetNodeID, &edgeType, &edge.Confidence)
		if err != nil {
			return nil, err
		}
		edge.EdgeType = types.EdgeType(edgeType)
		edges = append(edges, &edge)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) ListEdgesByNode(ctx context.Context, nodeID string) ([]*types.Edge, error) {
	return s.listEdgesByNodeWithQuerier(ctx, s.querier(), nodeID)
}

func (s *SQLiteStorage) countEdgesByTypeWithQuerier(ctx context.Context, q querier, repository string) (map[types.EdgeType]int, error) {
	query := `SELECT edge_type, COUNT(*) FROM edges WHERE repository = ? GROUP BY edge_type`
	rows, err := q.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[types.EdgeType]int)
	for rows.Next() {
		var edgeType string
		var count int
		if err := rows.Scan(&edgeType, &count); err != nil {
			return nil, err
		}
		counts[types.EdgeType(edgeType)] = count
	}
	return counts, rows.Err()
}

func (s *SQLiteStorage) CountEdgesByType(ctx context.Context, repository string) (map[types.EdgeType]int, error) {
	return s.countEdgesByTypeWithQuerier(ctx, s.querier(), repository)
}

func (s *SQLiteStorage) deleteEdgesByRepositoryWithQuerier(ctx context.Context, q querier, repository string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM edges WHERE repository = ?`, repository)
	return err
}

func (s *SQLiteStorage) DeleteEdgesByRepository(ctx context.Context, repository string) error {
	return s.deleteEdgesByRepositoryWithQuerier(ctx, s.querier(), repository)
}

// deleteRepositoryWithQuerier removes edges, nodes, and chunks in
// dependency order inside whatever transaction q belongs to.
func (s *SQLiteStorage) deleteRepositoryWithQuerier(ctx context.Context, q querier, repository string) error {
	if err := s.deleteEdgesByRepositoryWithQuerier(ctx, q, repository); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	if err := s.deleteNodesByRepositoryWithQuerier(ctx, q, repository); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	if err := s.deleteChunksByRepositoryWithQuerier(ctx, q, repository); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteRepository(ctx context.Context, repository string) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteRepository(ctx, repository); err != nil {
		return err
	}
	return tx.Commit()
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, emb *Embedding) error {
	if !emb.Domain.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownDomain, emb.Domain)
	}

	query := `
		INSERT INTO embeddings (chunk_id, domain, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, domain) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		emb.ChunkID, string(emb.Domain), emb.Vector, emb.Dimension,
		emb.Provider, emb.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	if emb.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			emb.ID = id
		}
	}
	emb.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), emb)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID string, domain types.EmbeddingDomain) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, domain, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ? AND domain = ?
	`
	var emb Embedding
	var dom string
	err := q.QueryRowContext(ctx, query, chunkID, string(domain)).Scan(
		&emb.ID, &emb.ChunkID, &dom, &emb.Vector, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emb.Domain = types.EmbeddingDomain(dom)
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID string, domain types.EmbeddingDomain) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID, domain)
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, repository, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.querier(), repository, query, limit, filters)
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, repository string, vector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), repository, vector, domain, limit, filters)
}

// Shared cache tier operations

func (s *SQLiteStorage) cachePutWithQuerier(ctx context.Context, q querier, key string, value []byte, expiresAt time.Time) error {
	query := `
		INSERT INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`
	return execWithRetry(ctx, s.retry, func() error {
		_, err := q.ExecContext(ctx, query, key, value, expiresAt, time.Now())
		return err
	})
}

func (s *SQLiteStorage) CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	return s.cachePutWithQuerier(ctx, s.querier(), key, value, expiresAt)
}

func (s *SQLiteStorage) cacheGetWithQuerier(ctx context.Context, q querier, key string) ([]byte, error) {
	var value []byte
	var expiresAt time.Time
	err := q.QueryRowContext(ctx, `SELECT value, expires_at FROM cache_entries WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		// Lazy expiry: treat as a miss and clear the stale row
		_, _ = q.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *SQLiteStorage) CacheGet(ctx context.Context, key string) ([]byte, error) {
	return s.cacheGetWithQuerier(ctx, s.querier(), key)
}

func (s *SQLiteStorage) cacheDeleteByPrefixWithQuerier(ctx context.Context, q querier, prefix string) error {
	// ESCAPE guards prefixes containing LIKE wildcards
	query := `DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`
	return execWithRetry(ctx, s.retry, func() error {
		_, err := q.ExecContext(ctx, query, escapeLikePrefix(prefix)+"%")
		return err
	})
}

func (s *SQLiteStorage) CacheDeleteByPrefix(ctx context.Context, prefix string) error {
	return s.cacheDeleteByPrefixWithQuerier(ctx, s.querier(), prefix)
}

func (s *SQLiteStorage) cachePurgeExpiredWithQuerier(ctx context.Context, q querier) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLiteStorage) CachePurgeExpired(ctx context.Context) (int, error) {
	return s.cachePurgeExpiredWithQuerier(ctx, s.querier())
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, repository string) (*RepositoryStatus, error) {
	status := &RepositoryStatus{Repository: repository}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM chunks WHERE repository = ?`, &status.Chunks},
		{`SELECT COUNT(*) FROM nodes WHERE repository = ?`, &status.Nodes},
		{`SELECT COUNT(*) FROM edges WHERE repository = ?`, &status.Edges},
		{`SELECT COUNT(*) FROM embeddings e JOIN chunks c ON e.chunk_id = c.id WHERE c.repository = ?`, &status.Embeddings},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, repository).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, repository string) (*RepositoryStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), repository)
}

// Transaction implementations: every operation delegates to the internal
// querier-based helper so it runs inside the transaction.

func (t *sqliteTx) AddChunk(ctx context.Context, chunk *types.Chunk) error {
	return t.storage.addChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) AddChunks(ctx context.Context, chunks []*types.Chunk) error {
	return t.storage.addChunksWithQuerier(ctx, t.querier(), chunks)
}

func (t *sqliteTx) UpdateChunk(ctx context.Context, chunk *types.Chunk) error {
	return t.storage.updateChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetChunksByFilePath(ctx context.Context, repository, filePath string) ([]*types.Chunk, error) {
	return t.storage.getChunksByFilePathWithQuerier(ctx, t.querier(), repository, filePath)
}

func (t *sqliteTx) ListChunksByRepository(ctx context.Context, repository string) ([]*types.Chunk, error) {
	return t.storage.listChunksByRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) DeleteChunk(ctx context.Context, id string) error {
	return t.storage.deleteChunkWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) DeleteChunksByFilePath(ctx context.Context, repository, filePath string) error {
	return t.storage.deleteChunksByFilePathWithQuerier(ctx, t.querier(), repository, filePath)
}

func (t *sqliteTx) DeleteChunksByRepository(ctx context.Context, repository string) error {
	return t.storage.deleteChunksByRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) CreateNode(ctx context.Context, node *types.Node) error {
	return t.storage.createNodeWithQuerier(ctx, t.querier(), node)
}

func (t *sqliteTx) GetNode(ctx context.Context, id string) (*types.Node, error) {
	return t.storage.getNodeWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetNodeByChunk(ctx context.Context, chunkID string) (*types.Node, error) {
	return t.storage.getNodeByChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListNodesByRepository(ctx context.Context, repository string) ([]*types.Node, error) {
	return t.storage.listNodesByRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) DeleteNodesByRepository(ctx context.Context, repository string) error {
	return t.storage.deleteNodesByRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) CreateEdge(ctx context.Context, edge *types.Edge) error {
	return t.storage.createEdgeWithQuerier(ctx, t.querier(), edge)
}

func (t *sqliteTx) ListEdgesByNode(ctx context.Context, nodeID string) ([]*types.Edge, error) {
	return t.storage.listEdgesByNodeWithQuerier(ctx, t.querier(), nodeID)
}

func (t *sqliteTx) CountEdgesByType(ctx context.Context, repository string) (map[types.EdgeType]int, error) {
	return t.storage.countEdgesByTypeWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) DeleteEdgesByRepository(ctx context.Context, repository string) error {
	return t.storage.deleteEdgesByRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) DeleteRepository(ctx context.Context, repository string) error {
	return t.storage.deleteRepositoryWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), emb)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID string, domain types.EmbeddingDomain) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID, domain)
}

func (t *sqliteTx) SearchText(ctx context.Context, repository, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, t.querier(), repository, query, limit, filters)
}

func (t *sqliteTx) SearchVector(ctx context.Context, repository string, vector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), repository, vector, domain, limit, filters)
}

func (t *sqliteTx) CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	return t.storage.cachePutWithQuerier(ctx, t.querier(), key, value, expiresAt)
}

func (t *sqliteTx) CacheGet(ctx context.Context, key string) ([]byte, error) {
	return t.storage.cacheGetWithQuerier(ctx, t.querier(), key)
}

func (t *sqliteTx) CacheDeleteByPrefix(ctx context.Context, prefix string) error {
	return t.storage.cacheDeleteByPrefixWithQuerier(ctx, t.querier(), prefix)
}

func (t *sqliteTx) CachePurgeExpired(ctx context.Context) (int, error) {
	return t.storage.cachePurgeExpiredWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetStatus(ctx context.Context, repository string) (*RepositoryStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), repository)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// searchVector performs vector similarity search using cosine similarity.
// It takes a querier so searches run against either the pool or an open
// transaction; the pool is capped at one connection, so querying the pool
// from inside a transaction would deadlock.
func searchVector(ctx context.Context, q querier, repository string, queryVector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDomain, domain)
	}
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, repository, queryVector, domain, limit, filters)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, repository, queryVector, domain, limit, filters)
}

// searchVectorOptimized uses the sqlite-vec extension for SQL-based vector
// similarity search.
//
// vec_distance_cosine returns distance (lower is better); converting to
// 1 - distance keeps "higher is better" across both build modes.
func searchVectorOptimized(ctx context.Context, q querier, repository string, queryVector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(queryVector)

	query := `
		SELECT
			c.id as chunk_id,
			1.0 - vec_distance_cosine(e.vector, ?) as similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.repository = ?
		AND e.domain = ?
	`
	args := []interface{}{queryVectorBlob, repository, string(domain)}

	query, args = applyChunkFilters(query, args, filters)

	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if limit <= 0 {
		return []VectorResult{}, nil
	}
	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// searchVectorFallback computes cosine similarity in Go. Used when the
// sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, q querier, repository string, queryVector []float32, domain types.EmbeddingDomain, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT
			c.id as chunk_id,
			e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.repository = ?
		AND e.domain = ?
	`
	args := []interface{}{repository, string(domain)}

	query, args = applyChunkFilters(query, args, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	return buildVectorResults(candidates, limit), nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, q querier, repository, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, types.ErrEmptyQuery
	}

	sqlQuery := `
		SELECT
			c.id as chunk_id,
			bm25(chunks_fts) as score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.chunk_id = c.id
		WHERE chunks_fts MATCH ?
		AND c.repository = ?
	`
	args := []interface{}{sanitized, repository}

	sqlQuery, args = applyChunkFilters(sqlQuery, args, filters)

	// BM25 is negative, lower is better, so ascending order ranks best first
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTextResults(rows)
}

// applyChunkFilters adds WHERE clause filters shared by both search paths
func applyChunkFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if len(filters.Languages) > 0 {
		query += " AND c.language IN ("
		for i, lang := range filters.Languages {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, lang)
		}
		query += ")"
	}

	if len(filters.ChunkTypes) > 0 && filters.ChunkTypes[0] != "" {
		query += " AND c.chunk_type IN ("
		for i, typ := range filters.ChunkTypes {
			if i > 0 {
				query += ","
			}
			query += "?"
			args = append(args, typ)
		}
		query += ")"
	}

	if filters.FilePattern != "" {
		query += " AND c.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}

	if filters.ReturnType != "" {
		query += " AND c.signature LIKE ?"
		args = append(args, "%-> "+filters.ReturnType+"%")
	}

	if filters.ParamType != "" {
		query += " AND c.signature LIKE ?"
		args = append(args, "%"+filters.ParamType+"%")
	}

	return query, args
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 1000)

	for rows.Next() {
		var chunkID string
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)
		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 {
		limit = len(candidates)
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:    candidates[i].chunkID,
			Similarity: candidates[i].score,
		}
	}
	return results
}

// collectTextResults processes text search results and normalizes scores.
// BM25 scores are negative with lower being better, typically in [-50, 0];
// the normalization maps them into (0, 1] with higher being better.
func collectTextResults(rows *sql.Rows) ([]TextResult, error) {
	results := make([]TextResult, 0)

	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.ChunkID, &result.Score); err != nil {
			return nil, err
		}

		result.Score = 1.0 / (1.0 + math.Abs(result.Score)/50.0)
		results = append(results, result)
	}

	return results, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID string
	score   float64
}

// sortCandidates orders by score descending with chunk ID as a stable
// tie-break so equal-score results rank deterministically.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent injection attacks.
// Escapes special FTS5 operators and characters that could be used for SQL injection.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	replacer := strings.NewReplacer(
		`"`, `\"`, // Quote
		`*`, `\*`, // Wildcard
		`(`, `\(`, // Grouping
		`)`, `\)`, // Grouping
	)
	escaped := replacer.Replace(query)

	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})

	return escaped
}

// escapeLikePrefix escapes LIKE wildcards so a prefix matches literally
func escapeLikePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix)
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

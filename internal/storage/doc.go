// Package storage provides SQLite-backed persistence for chunks, graph
// nodes and edges, embeddings, and the shared cache tier.
//
// The Storage interface is implemented by SQLiteStorage; BeginTx returns a
// Tx that exposes the same operations inside a transaction, so callers
// compose multi-record writes atomically without the store knowing about
// their semantics. DeleteRepository always removes edges before nodes
// before chunks so referential integrity holds at every point.
//
// Two build modes select the driver at compile time:
//
//   - sqlite_vec (CGO): github.com/mattn/go-sqlite3 with the sqlite-vec
//     extension for SQL-level cosine distance
//   - default (pure Go): modernc.org/sqlite with similarity computed in Go
//
// Lexical search runs over an FTS5 table kept in sync by triggers; BM25
// scores are normalized so higher is better in both search paths.
package storage

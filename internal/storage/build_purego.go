//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build: pure Go SQLite with no C toolchain needed. Vector
// similarity is computed in Go over deserialized embeddings, which is
// slower than the sqlite-vec path but keeps cross-compilation trivial.
//
// Build:
//
//	CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName selects the registered database/sql driver
	DriverName = "sqlite"

	// VectorExtensionAvailable gates the SQL vector search path
	VectorExtensionAvailable = false

	// BuildMode is reported by get_status and --version
	BuildMode = "purego"
)

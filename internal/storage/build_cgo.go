//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled when the sqlite_vec tag is set (requires CGO). The cgo driver
// loads the sqlite-vec extension, so vector similarity runs as SQL via
// vec_distance_cosine instead of scanning embeddings into Go.
//
// Build:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName selects the registered database/sql driver
	DriverName = "sqlite3"

	// VectorExtensionAvailable gates the SQL vector search path
	VectorExtensionAvailable = true

	// BuildMode is reported by get_status and --version
	BuildMode = "cgo"
)

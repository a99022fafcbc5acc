// Package types provides shared domain types for the codegraph backend.
//
// The core model is the Chunk: a semantically meaningful unit of source
// code (function, class, method) produced by an external chunking service,
// carrying pre-extracted call and import references in its metadata. Graph
// construction turns indexable chunks into Node records and resolved
// references into Edge records; hybrid search returns SearchResult values
// that fuse lexical and vector rankings.
//
// # Chunks and the graph
//
//	chunk := &types.Chunk{
//	    ID:         "c-1042",
//	    Repository: "acme/api",
//	    FilePath:   "api/routes/auth.py",
//	    ChunkType:  types.ChunkFunction,
//	    Name:       "login",
//	    NamePath:   "routes.auth.login",
//	    Metadata: types.ChunkMetadata{
//	        Calls: []types.CallRef{{Target: "validate_token"}},
//	    },
//	}
//
// Exactly one Node exists per indexable chunk; every Edge references two
// existing Nodes. Cyclic call graphs are represented purely as edge pairs
// between opaque node IDs.
//
// # Type provenance
//
// TypeInfo is a tagged variant distinguishing resolved from heuristic
// information, so downstream consumers branch on Provenance instead of
// checking for absent fields:
//
//	info := types.HeuristicInfo("routes.auth.login", 0.8)
//	if info.Provenance == types.ProvenanceResolved { ... }
//
// # Search results
//
// SearchResult carries the fused score plus nullable per-path scores; a nil
// LexicalScore or VectorScore means that path was disabled or did not rank
// the item.
package types

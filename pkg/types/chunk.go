package types

import "fmt"

// ChunkType represents the kind of source unit a chunk contains
type ChunkType string

const (
	ChunkFunction ChunkType = "function"
	ChunkClass    ChunkType = "class"
	ChunkMethod   ChunkType = "method"
	ChunkOther    ChunkType = "other"
)

// Indexable reports whether chunks of this type become graph nodes
func (t ChunkType) Indexable() bool {
	switch t {
	case ChunkFunction, ChunkClass, ChunkMethod:
		return true
	default:
		return false
	}
}

// CallRef records a call site extracted by the chunking service.
// Target may be a bare name ("login") or a dotted qualified path
// ("routes.auth.login"); resolution handles both.
type CallRef struct {
	Target string `json:"target"`
	Line   int    `json:"line,omitempty"`
}

// ImportRef records an import extracted by the chunking service.
// Path is the imported module path in source notation; Symbol is the
// specific name imported, if any.
type ImportRef struct {
	Path   string `json:"path"`
	Symbol string `json:"symbol,omitempty"`
	Alias  string `json:"alias,omitempty"`
}

// ChunkMetadata carries the pre-extracted references used during graph
// construction.
type ChunkMetadata struct {
	Calls   []CallRef   `json:"calls,omitempty"`
	Imports []ImportRef `json:"imports,omitempty"`
}

// Chunk is a semantically meaningful unit of source code produced by the
// external chunking service. Chunks are immutable once stored; re-indexing
// supersedes them rather than mutating them.
type Chunk struct {
	ID         string
	Repository string
	FilePath   string
	ChunkType  ChunkType
	Name       string
	NamePath   string // dotted qualified path, assigned by the symbol path resolver
	Content    string
	Language   string
	Signature  string
	StartLine  int
	EndLine    int
	Metadata   ChunkMetadata
}

// Validate checks the fields graph construction and search depend on
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Reason: "chunk ID is required"}
	}
	if c.Repository == "" {
		return &ValidationError{Field: "repository", Reason: "repository is required"}
	}
	if c.FilePath == "" {
		return &ValidationError{Field: "file_path", Reason: "file path is required"}
	}
	if c.Content == "" {
		return &ValidationError{Field: "content", Reason: "content cannot be empty"}
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return &ValidationError{Field: "lines", Reason: "line numbers must be positive"}
	}
	if c.StartLine > c.EndLine {
		return &ValidationError{Field: "lines", Reason: fmt.Sprintf("start line %d after end line %d", c.StartLine, c.EndLine)}
	}
	switch c.ChunkType {
	case ChunkFunction, ChunkClass, ChunkMethod, ChunkOther:
	default:
		return &ValidationError{Field: "chunk_type", Reason: fmt.Sprintf("unknown chunk type %q", c.ChunkType)}
	}
	return nil
}

// Contains reports whether c strictly encloses other by line range.
// Equal ranges do not count as containment.
func (c *Chunk) Contains(other *Chunk) bool {
	return c.StartLine < other.StartLine && c.EndLine > other.EndLine
}

// LineCount is the complexity stand-in recorded on node properties
func (c *Chunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

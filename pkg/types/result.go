package types

// EmbeddingDomain selects which embedding space a vector lives in
type EmbeddingDomain string

const (
	DomainText EmbeddingDomain = "text"
	DomainCode EmbeddingDomain = "code"
)

// Valid reports whether the domain is one of the supported spaces
func (d EmbeddingDomain) Valid() bool {
	return d == DomainText || d == DomainCode
}

// LinkDirection orients a graph link relative to the result's node
type LinkDirection string

const (
	LinkOutgoing LinkDirection = "out"
	LinkIncoming LinkDirection = "in"
)

// GraphLink is a graph-derived relationship attached to a search result
type GraphLink struct {
	EdgeType   EdgeType
	Direction  LinkDirection
	NodeID     string
	Label      string // qualified path of the linked node
	Confidence float64
}

// SearchResult is one fused search hit. LexicalScore and VectorScore are
// nil when that path was disabled or did not rank the item.
type SearchResult struct {
	ChunkID      string
	Rank         int // position in the fused result set, 1-based
	FusedScore   float64
	LexicalScore *float64
	VectorScore  *float64

	Repository string
	FilePath   string
	Name       string
	NamePath   string
	ChunkType  ChunkType
	Language   string
	StartLine  int
	EndLine    int
	Content    string

	Links []GraphLink
}

// Validate checks the invariants a hydrated result must satisfy
func (r *SearchResult) Validate() error {
	if r.ChunkID == "" {
		return ErrMissingChunkID
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}

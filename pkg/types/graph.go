package types

import "time"

// NodeType mirrors the chunk type that produced the node
type NodeType string

const (
	NodeFunction NodeType = "function"
	NodeClass    NodeType = "class"
	NodeMethod   NodeType = "method"
)

// NodeTypeForChunk maps an indexable chunk type to its node type
func NodeTypeForChunk(t ChunkType) (NodeType, bool) {
	switch t {
	case ChunkFunction:
		return NodeFunction, true
	case ChunkClass:
		return NodeClass, true
	case ChunkMethod:
		return NodeMethod, true
	default:
		return "", false
	}
}

// NodeProperties carries denormalized chunk attributes on a node
type NodeProperties struct {
	Repository string `json:"repository"`
	Signature  string `json:"signature,omitempty"`
	Complexity int    `json:"complexity,omitempty"`
}

// Node is the graph representation of one indexable chunk. Nodes are
// addressed by opaque IDs; cycles in the call graph are just edge pairs.
type Node struct {
	ID         string
	Repository string
	NodeType   NodeType
	Label      string // qualified name path
	ChunkID    string
	FilePath   string
	Properties NodeProperties
}

// EdgeType classifies a resolved relationship between two nodes
type EdgeType string

const (
	EdgeCalls   EdgeType = "calls"
	EdgeImports EdgeType = "imports"
)

// Edge is a directed, resolved relationship between two nodes.
// Confidence reflects which step of the resolution cascade matched.
type Edge struct {
	ID           string
	Repository   string
	SourceNodeID string
	TargetNodeID string
	EdgeType     EdgeType
	Confidence   float64
}

// GraphStats summarizes one construction run
type GraphStats struct {
	Repository         string
	TotalNodes         int
	TotalEdges         int
	EdgesByType        map[EdgeType]int
	ResolutionAccuracy float64 // resolved calls / total calls seen
	UnresolvedCalls    int
	NodesSkipped       int // chunks whose type is not indexable
	Duration           time.Duration
}

package types

// Provenance tags where a piece of type information came from, so
// consumers branch on the tag rather than on absent fields.
type Provenance string

const (
	// ProvenanceResolved marks information confirmed by an exact match
	// or an external type source.
	ProvenanceResolved Provenance = "resolved"

	// ProvenanceHeuristic marks information inferred from names and
	// file locality.
	ProvenanceHeuristic Provenance = "heuristic"
)

// TypeInfo is a tagged variant describing how a reference was resolved
type TypeInfo struct {
	Provenance Provenance
	Type       string // resolved type or qualified path, when known
	Confidence float64
}

// ResolvedInfo builds a TypeInfo for an exact match
func ResolvedInfo(typ string) TypeInfo {
	return TypeInfo{Provenance: ProvenanceResolved, Type: typ, Confidence: 1.0}
}

// HeuristicInfo builds a TypeInfo for an inferred match
func HeuristicInfo(typ string, confidence float64) TypeInfo {
	return TypeInfo{Provenance: ProvenanceHeuristic, Type: typ, Confidence: confidence}
}

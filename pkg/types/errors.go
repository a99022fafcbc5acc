package types

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed input. It is returned directly to the
// caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Domain errors shared across components
var (
	ErrEmptyQuery       = errors.New("query cannot be empty")
	ErrNoSearchPath     = errors.New("at least one retrieval path must be enabled")
	ErrInvalidRank      = errors.New("rank must be >= 1")
	ErrMissingChunkID   = errors.New("chunk ID is required")
	ErrUnknownDomain    = errors.New("unknown embedding domain")
	ErrUnknownEdgeType  = errors.New("unknown edge type")
	ErrUnknownChunkType = errors.New("unknown chunk type")
)

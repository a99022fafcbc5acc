package cache

import (
	"encoding/json"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// EncodeChunk serializes a chunk for cache storage
func EncodeChunk(chunk *types.Chunk) ([]byte, error) {
	return json.Marshal(chunk)
}

// DecodeChunk deserializes a cached chunk value
func DecodeChunk(value []byte) (*types.Chunk, error) {
	var chunk types.Chunk
	if err := json.Unmarshal(value, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

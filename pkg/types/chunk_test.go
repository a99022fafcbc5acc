package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validChunk() *Chunk {
	return &Chunk{
		ID:         "c-1",
		Repository: "acme/api",
		FilePath:   "api/routes/auth.py",
		ChunkType:  ChunkFunction,
		Name:       "login",
		Content:    "def login(): pass",
		StartLine:  10,
		EndLine:    20,
	}
}

func TestChunkValidate(t *testing.T) {
	assert.NoError(t, validChunk().Validate())

	tests := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"missing id", func(c *Chunk) { c.ID = "" }},
		{"missing repository", func(c *Chunk) { c.Repository = "" }},
		{"missing file path", func(c *Chunk) { c.FilePath = "" }},
		{"empty content", func(c *Chunk) { c.Content = "" }},
		{"zero start line", func(c *Chunk) { c.StartLine = 0 }},
		{"negative end line", func(c *Chunk) { c.EndLine = -1 }},
		{"inverted range", func(c *Chunk) { c.StartLine = 30; c.EndLine = 20 }},
		{"unknown chunk type", func(c *Chunk) { c.ChunkType = "module" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validChunk()
			tt.mutate(c)
			err := c.Validate()
			assert.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestChunkTypeIndexable(t *testing.T) {
	assert.True(t, ChunkFunction.Indexable())
	assert.True(t, ChunkClass.Indexable())
	assert.True(t, ChunkMethod.Indexable())
	assert.False(t, ChunkOther.Indexable())
	assert.False(t, ChunkType("module").Indexable())
}

func TestChunkContains(t *testing.T) {
	outer := &Chunk{StartLine: 1, EndLine: 100}
	inner := &Chunk{StartLine: 10, EndLine: 20}
	equal := &Chunk{StartLine: 1, EndLine: 100}
	overlap := &Chunk{StartLine: 50, EndLine: 150}

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	// Equal ranges never count as containment
	assert.False(t, outer.Contains(equal))
	assert.False(t, outer.Contains(overlap))
}

func TestChunkLineCount(t *testing.T) {
	c := &Chunk{StartLine: 10, EndLine: 20}
	assert.Equal(t, 11, c.LineCount())
}

package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPError(t *testing.T) {
	err := &MCPError{Code: ErrorCodeInvalidParams, Message: "invalid params"}
	assert.Equal(t, "MCP error -32602: invalid params", err.Error())

	wrapped := newMCPError(ErrorCodeInternalError, "boom", map[string]interface{}{"detail": "x"})
	var mcpErr *MCPError
	require.ErrorAs(t, wrapped, &mcpErr)
	assert.Equal(t, ErrorCodeInternalError, mcpErr.Code)
	assert.NotNil(t, mcpErr.Data)
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":   true,
		"count":  float64(7), // JSON numbers arrive as float64
		"weight": 0.25,
		"name":   "auth",
	}

	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.Equal(t, 7, getIntDefault(args, "count", 10))
	assert.Equal(t, 10, getIntDefault(args, "missing", 10))
	assert.InDelta(t, 0.25, getFloatDefault(args, "weight", 1.0), 1e-9)
	assert.InDelta(t, 1.0, getFloatDefault(args, "missing", 1.0), 1e-9)
	assert.Equal(t, "auth", getStringDefault(args, "name", "fallback"))
	assert.Equal(t, "fallback", getStringDefault(args, "missing", "fallback"))
}

func TestParseFilters(t *testing.T) {
	assert.Nil(t, parseFilters(map[string]interface{}{}))

	args := map[string]interface{}{
		"filters": map[string]interface{}{
			"languages":    []interface{}{"python", "go"},
			"chunk_types":  []interface{}{"function"},
			"file_pattern": "api/routes/*",
			"return_type":  "User",
			"param_type":   "Request",
		},
	}

	filters := parseFilters(args)
	require.NotNil(t, filters)
	assert.Equal(t, []string{"python", "go"}, filters.Languages)
	assert.Equal(t, []string{"function"}, filters.ChunkTypes)
	assert.Equal(t, "api/routes/*", filters.FilePattern)
	assert.Equal(t, "User", filters.ReturnType)
	assert.Equal(t, "Request", filters.ParamType)
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(map[string]interface{}{"key": "value"})
	assert.Contains(t, out, `"key": "value"`)
}

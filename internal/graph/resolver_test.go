package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

func node(id, label, filePath string) *types.Node {
	return &types.Node{
		ID:       id,
		NodeType: types.NodeFunction,
		Label:    label,
		FilePath: filePath,
	}
}

func caller(filePath, namePath string) *types.Chunk {
	return &types.Chunk{
		ID:       "caller",
		FilePath: filePath,
		NamePath: namePath,
	}
}

func TestResolveCall_ExactQualifiedMatch(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "routes.auth.login", "api/routes/auth.py"),
		node("n-2", "models.user.login", "api/models/user.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveCall(types.CallRef{Target: "routes.auth.login"}, caller("other.py", "other.f"), idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.Equal(t, types.ProvenanceResolved, match.Info.Provenance)
	assert.InDelta(t, 1.0, match.Info.Confidence, 1e-9)
}

func TestResolveCall_SameFileMatch(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "routes.auth.validate", "api/routes/auth.py"),
		node("n-2", "models.user.validate", "api/models/user.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveCall(types.CallRef{Target: "validate"}, caller("api/routes/auth.py", "routes.auth.login"), idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.Equal(t, types.ProvenanceHeuristic, match.Info.Provenance)
	assert.InDelta(t, 0.8, match.Info.Confidence, 1e-9)
}

func TestResolveCall_GlobalMatch(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "models.user.validate", "api/models/user.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveCall(types.CallRef{Target: "validate"}, caller("elsewhere.py", "elsewhere.f"), idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.InDelta(t, 0.5, match.Info.Confidence, 1e-9)
}

func TestResolveCall_GlobalMatchDeterministic(t *testing.T) {
	// Two global candidates share a bare name; the smaller label wins
	idx := NewSymbolIndex([]*types.Node{
		node("n-2", "z.validate", "z.py"),
		node("n-1", "a.validate", "a.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveCall(types.CallRef{Target: "validate"}, caller("other.py", "other.f"), idx)
	require.True(t, ok)
	assert.Equal(t, "a.validate", match.Node.Label)
}

func TestResolveCall_Unresolved(t *testing.T) {
	idx := NewSymbolIndex(nil)
	r := NewDefaultResolver("")

	_, ok := r.ResolveCall(types.CallRef{Target: "missing"}, caller("f.py", "f.g"), idx)
	assert.False(t, ok)
	_, ok = r.ResolveCall(types.CallRef{Target: ""}, caller("f.py", "f.g"), idx)
	assert.False(t, ok)
}

func TestResolveImport_PathAndSymbol(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "models.user.User", "api/models/user.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveImport(types.ImportRef{Path: "models.user", Symbol: "User"}, caller("f.py", "f.g"), idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.InDelta(t, 0.9, match.Info.Confidence, 1e-9)

	// Slash-style import paths normalize to dots
	match, ok = r.ResolveImport(types.ImportRef{Path: "models/user", Symbol: "User"}, caller("f.py", "f.g"), idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
}

func TestResolveImport_SymbolFallback(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "somewhere.else.User", "x.py"),
	})
	r := NewDefaultResolver("")

	match, ok := r.ResolveImport(types.ImportRef{Path: "models.user", Symbol: "User"}, caller("f.py", "f.g"), idx)
	require.True(t, ok)
	assert.InDelta(t, 0.6, match.Info.Confidence, 1e-9)
}

func TestResolveImport_Unresolved(t *testing.T) {
	idx := NewSymbolIndex(nil)
	r := NewDefaultResolver("")

	_, ok := r.ResolveImport(types.ImportRef{Path: "requests"}, caller("f.py", "f.g"), idx)
	assert.False(t, ok)
	_, ok = r.ResolveImport(types.ImportRef{}, caller("f.py", "f.g"), idx)
	assert.False(t, ok)
}

func TestPythonResolver_SelfCall(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "models.user.User.save", "models/user.py"),
		node("n-2", "other.save", "other.py"),
	})
	r := NewPythonResolver()

	from := caller("models/user.py", "models.user.User.refresh")
	match, ok := r.ResolveCall(types.CallRef{Target: "self.save"}, from, idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.InDelta(t, 0.8, match.Info.Confidence, 1e-9)
}

func TestPythonResolver_SelfCallFallsBackToCascade(t *testing.T) {
	idx := NewSymbolIndex([]*types.Node{
		node("n-1", "helpers.save", "helpers.py"),
	})
	r := NewPythonResolver()

	from := caller("models/user.py", "models.user.User.refresh")
	match, ok := r.ResolveCall(types.CallRef{Target: "self.save"}, from, idx)
	require.True(t, ok)
	assert.Equal(t, "n-1", match.Node.ID)
	assert.InDelta(t, 0.5, match.Info.Confidence, 1e-9)
}

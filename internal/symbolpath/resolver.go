// Package symbolpath computes dotted qualified names for chunks from
// their file location and enclosing scopes.
//
// A qualified path encodes module location, enclosing scopes, and symbol
// name: chunk "login" in api/routes/auth.py resolves to routes.auth.login.
// Resolution is deterministic and total; every chunk receives a non-empty
// path. Collisions between distinct chunks are expected and left to
// callers, who disambiguate with file and line context.
package symbolpath

import (
	"path"
	"sort"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// topLevelPrefixes are conventional source roots stripped from the front
// of a module path. Only the first segment is ever stripped, once.
var topLevelPrefixes = map[string]bool{
	"src": true,
	"lib": true,
	"app": true,
	"api": true,
}

// packageMarkers are file names that stand for the package itself rather
// than a module inside it, compared after stripping the extension.
var packageMarkers = map[string]bool{
	"__init__": true,
	"index":    true,
	"mod":      true,
}

// Resolve returns the dotted qualified path for a chunk. parents is the
// enclosing scope chain innermost-first, as produced by ParentNames; it is
// reversed into outer-to-inner order before joining.
func Resolve(name, filePath, repoRoot string, parents []string) string {
	segments := ModuleSegments(filePath, repoRoot)

	for i := len(parents) - 1; i >= 0; i-- {
		if parents[i] != "" {
			segments = append(segments, parents[i])
		}
	}
	if name != "" {
		segments = append(segments, name)
	}

	if len(segments) == 0 {
		// Totality fallback for a nameless chunk in a marker file at
		// the repository root
		return "main"
	}
	return strings.Join(segments, ".")
}

// ModuleSegments derives the module path segments from a file path
// relative to the repository root.
func ModuleSegments(filePath, repoRoot string) []string {
	rel := filePath
	if repoRoot != "" {
		if r, ok := strings.CutPrefix(rel, strings.TrimSuffix(repoRoot, "/")+"/"); ok {
			rel = r
		}
	}
	rel = strings.TrimPrefix(path.Clean(rel), "/")

	parts := strings.Split(rel, "/")
	if len(parts) > 1 && topLevelPrefixes[parts[0]] {
		parts = parts[1:]
	}

	// Strip the extension, then drop package-marker file names so the
	// path represents the package itself
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, path.Ext(last))
	if packageMarkers[last] {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = last
	}

	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}

// ParentNames returns the names of chunks in candidates that strictly
// enclose target by line range, innermost first. Equal ranges never count
// as containment, so a chunk is never its own parent.
func ParentNames(target *types.Chunk, candidates []*types.Chunk) []string {
	parents := make([]*types.Chunk, 0, 4)
	for _, c := range candidates {
		if c.ID == target.ID || c.FilePath != target.FilePath {
			continue
		}
		if c.Name == "" || !c.ChunkType.Indexable() {
			continue
		}
		if c.Contains(target) {
			parents = append(parents, c)
		}
	}

	// Innermost parent spans the fewest lines
	sort.Slice(parents, func(i, j int) bool {
		li, lj := parents[i].LineCount(), parents[j].LineCount()
		if li != lj {
			return li < lj
		}
		return parents[i].ID < parents[j].ID
	})

	names := make([]string, len(parents))
	for i, p := range parents {
		names[i] = p.Name
	}
	return names
}

// ResolveChunk assigns NamePath on a chunk using its siblings from the
// same file as parent candidates.
func ResolveChunk(chunk *types.Chunk, repoRoot string, siblings []*types.Chunk) string {
	parents := ParentNames(chunk, siblings)
	return Resolve(chunk.Name, chunk.FilePath, repoRoot, parents)
}

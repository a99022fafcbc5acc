package graph

import (
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// Resolution confidence by cascade step
const (
	confidenceExact      = 1.0
	confidenceSameFile   = 0.8
	confidenceGlobal     = 0.5
	confidenceImportPath = 0.9
	confidenceImportName = 0.6
)

// Match is a successful reference resolution
type Match struct {
	Node *types.Node
	Info types.TypeInfo
}

// Resolver resolves call and import references for one language. Engines
// select a resolver at construction time; chunk language strings are never
// inspected at resolution time.
type Resolver interface {
	Language() string
	ResolveCall(ref types.CallRef, from *types.Chunk, idx *SymbolIndex) (Match, bool)
	ResolveImport(ref types.ImportRef, from *types.Chunk, idx *SymbolIndex) (Match, bool)
}

// defaultResolver implements the three-step resolution cascade shared by
// every language: exact qualified match, then unqualified match within the
// same file, then unqualified match anywhere in the repository. The first
// match wins.
type defaultResolver struct {
	language string
}

// NewDefaultResolver returns the language-agnostic cascade resolver
func NewDefaultResolver(language string) Resolver {
	return &defaultResolver{language: language}
}

func (r *defaultResolver) Language() string {
	return r.language
}

func (r *defaultResolver) ResolveCall(ref types.CallRef, from *types.Chunk, idx *SymbolIndex) (Match, bool) {
	return resolveTarget(ref.Target, from, idx)
}

// resolveTarget runs the cascade for a call target, qualified or bare
func resolveTarget(target string, from *types.Chunk, idx *SymbolIndex) (Match, bool) {
	if target == "" {
		return Match{}, false
	}

	if node, ok := idx.ByPath(target); ok {
		return Match{Node: node, Info: types.ResolvedInfo(node.Label)}, true
	}

	name := bareName(target)
	if node, ok := idx.ByFileAndName(from.FilePath, name); ok {
		return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceSameFile)}, true
	}

	if node, ok := idx.ByName(name); ok {
		return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceGlobal)}, true
	}

	return Match{}, false
}

func (r *defaultResolver) ResolveImport(ref types.ImportRef, from *types.Chunk, idx *SymbolIndex) (Match, bool) {
	if ref.Path == "" && ref.Symbol == "" {
		return Match{}, false
	}

	// Imported module paths arrive in source notation; dots are already
	// the separator for most languages, slashes for path-style imports
	modulePath := strings.ReplaceAll(ref.Path, "/", ".")

	if ref.Symbol != "" {
		if node, ok := idx.ByPath(modulePath + "." + ref.Symbol); ok {
			return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceImportPath)}, true
		}
		if node, ok := idx.ByName(ref.Symbol); ok {
			return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceImportName)}, true
		}
		return Match{}, false
	}

	if node, ok := idx.ByPath(modulePath); ok {
		return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceImportPath)}, true
	}
	if node, ok := idx.ByName(bareName(modulePath)); ok {
		return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceImportName)}, true
	}
	return Match{}, false
}

// pythonResolver extends the default cascade with Python-specific call
// normalization: "self.save" and "cls.create" resolve as "save" and
// "create" against the caller's enclosing scope.
type pythonResolver struct {
	defaultResolver
}

// NewPythonResolver returns the Python call/import resolver
func NewPythonResolver() Resolver {
	return &pythonResolver{defaultResolver{language: "python"}}
}

func (r *pythonResolver) ResolveCall(ref types.CallRef, from *types.Chunk, idx *SymbolIndex) (Match, bool) {
	target := ref.Target
	for _, receiver := range []string{"self.", "cls."} {
		if rest, ok := strings.CutPrefix(target, receiver); ok {
			// Try the method against the caller's own scope first
			if from.NamePath != "" {
				scope := from.NamePath
				if i := strings.LastIndexByte(scope, '.'); i >= 0 {
					scope = scope[:i]
				}
				if node, ok := idx.ByPath(scope + "." + bareName(rest)); ok {
					return Match{Node: node, Info: types.HeuristicInfo(node.Label, confidenceSameFile)}, true
				}
			}
			target = rest
			break
		}
	}
	return resolveTarget(target, from, idx)
}

package graph

import (
	"sort"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/types"
)

// SymbolIndex holds the lookup maps resolution runs against. It is built
// once per construction run from that run's nodes and never mutated after.
type SymbolIndex struct {
	byPath        map[string]*types.Node            // qualified path -> node
	byFileAndName map[string]map[string]*types.Node // file path -> bare name -> node
	byName        map[string][]*types.Node          // bare name -> nodes, sorted by label
}

// NewSymbolIndex builds an index over nodes. When two nodes in the same
// scope share a qualified path or bare name, the one with the smaller ID
// wins, keeping lookups deterministic.
func NewSymbolIndex(nodes []*types.Node) *SymbolIndex {
	idx := &SymbolIndex{
		byPath:        make(map[string]*types.Node, len(nodes)),
		byFileAndName: make(map[string]map[string]*types.Node),
		byName:        make(map[string][]*types.Node),
	}

	for _, node := range nodes {
		if existing, ok := idx.byPath[node.Label]; !ok || node.ID < existing.ID {
			idx.byPath[node.Label] = node
		}

		name := bareName(node.Label)
		if name == "" {
			continue
		}

		fileNames := idx.byFileAndName[node.FilePath]
		if fileNames == nil {
			fileNames = make(map[string]*types.Node)
			idx.byFileAndName[node.FilePath] = fileNames
		}
		if existing, ok := fileNames[name]; !ok || node.ID < existing.ID {
			fileNames[name] = node
		}

		idx.byName[name] = append(idx.byName[name], node)
	}

	for name := range idx.byName {
		candidates := idx.byName[name]
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Label != candidates[j].Label {
				return candidates[i].Label < candidates[j].Label
			}
			return candidates[i].ID < candidates[j].ID
		})
	}

	return idx
}

// ByPath looks up a node by its exact qualified path
func (idx *SymbolIndex) ByPath(path string) (*types.Node, bool) {
	node, ok := idx.byPath[path]
	return node, ok
}

// ByFileAndName looks up a node by bare name within one file
func (idx *SymbolIndex) ByFileAndName(filePath, name string) (*types.Node, bool) {
	fileNames, ok := idx.byFileAndName[filePath]
	if !ok {
		return nil, false
	}
	node, ok := fileNames[name]
	return node, ok
}

// ByName returns the first node with the given bare name anywhere in the
// repository, in deterministic label order.
func (idx *SymbolIndex) ByName(name string) (*types.Node, bool) {
	candidates := idx.byName[name]
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// bareName extracts the final segment of a dotted path
func bareName(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

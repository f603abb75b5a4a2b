package depgraph

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

// nodeRecord is the on-disk form of a node.
type nodeRecord struct {
	Parents  []string  `json:"parents"`
	Children []string  `json:"children"`
	Metadata Signature `json:"metadata"`
}

// MarshalJSON encodes the graph as a flat object keyed by path.
func (g *Graph) MarshalJSON() ([]byte, error) {
	records := make(map[string]nodeRecord, g.Len())
	if g != nil {
		for p, n := range g.nodes {
			records[p] = nodeRecord{
				Parents:  sortedCopy(n.parents),
				Children: sortedCopy(n.children),
				Metadata: n.Signature,
			}
		}
	}
	return json.Marshal(records)
}

// UnmarshalJSON decodes a graph. Edges are rebuilt from each node's children
// list; the stored parents list is honored too, so fixtures that only spell
// out one side of an edge still load.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var records map[string]nodeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	nodes := make(map[string]*Node, len(records))
	for p, r := range records {
		nodes[p] = &Node{Path: p, Signature: r.Metadata}
	}
	loaded := &Graph{nodes: nodes}

	for _, p := range slices.Sorted(maps.Keys(records)) {
		r := records[p]
		for _, c := range r.Children {
			child, ok := nodes[c]
			if !ok {
				return fmt.Errorf("%w: child %s of %s", ErrFileNotFound, c, p)
			}
			loaded.link(nodes[p], child)
		}
		for _, parent := range r.Parents {
			pn, ok := nodes[parent]
			if !ok {
				return fmt.Errorf("%w: parent %s of %s", ErrFileNotFound, parent, p)
			}
			loaded.link(pn, nodes[p])
		}
	}

	g.nodes = loaded.nodes
	return nil
}

// Load reads a graph from a JSON file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to parse graph %s: %w", path, err)
	}
	return g, nil
}

// Store writes the graph to path atomically.
func (g *Graph) Store(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp graph file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename graph file: %w", err)
	}
	return nil
}

func sortedCopy(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	slices.Sort(out)
	return out
}

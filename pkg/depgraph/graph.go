// Package depgraph implements the bidirectional file dependency graph used by
// the incremental rebuild engine.
//
// Nodes are stored once in an arena keyed by project-relative path; edges are
// path lists, never pointers between nodes. Every mutation keeps the
// parent/child lists in matched pairs: adding X as a child of Y always adds Y
// as a parent of X.
package depgraph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrFileExists is returned when adding a path already in the graph.
	ErrFileExists = errors.New("file already in graph")

	// ErrFileNotFound is returned when a path (or a referenced child) is absent.
	ErrFileNotFound = errors.New("file not in graph")

	// ErrHasParents is returned when removing a node that still has parents.
	ErrHasParents = errors.New("file has parents")

	// ErrHasChildren is returned when removing a node that still has children.
	ErrHasChildren = errors.New("file has children")

	// ErrCycle is returned when SetChildren would introduce a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// Node is a single file in a Graph. Its edge lists are owned by the graph.
type Node struct {
	Path      string
	Signature Signature

	parents  []string
	children []string
}

// Parents returns the paths of files that depend on this node.
func (n *Node) Parents() []string {
	return slices.Clone(n.parents)
}

// Children returns the paths of files this node depends on.
func (n *Node) Children() []string {
	return slices.Clone(n.children)
}

// Graph maps project-relative paths to nodes.
type Graph struct {
	nodes map[string]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Len returns the number of nodes. A nil graph has length 0.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Has reports whether path is in the graph.
func (g *Graph) Has(path string) bool {
	if g == nil {
		return false
	}
	_, ok := g.nodes[path]
	return ok
}

// Node returns the node for path.
func (g *Graph) Node(path string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.nodes[path]
	return n, ok
}

// Paths returns every path in the graph, sorted.
func (g *Graph) Paths() []string {
	if g == nil {
		return nil
	}
	paths := make([]string, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Parents returns the parents of path, or nil if path is absent.
func (g *Graph) Parents(path string) []string {
	if n, ok := g.Node(path); ok {
		return n.Parents()
	}
	return nil
}

// Children returns the children of path, or nil if path is absent.
func (g *Graph) Children(path string) []string {
	if n, ok := g.Node(path); ok {
		return n.Children()
	}
	return nil
}

// AddFile adds a new node. Children must already be present, so a brand-new
// node never has forward edges to files the graph does not know yet.
func (g *Graph) AddFile(path string, sig Signature, children ...string) error {
	if g.nodes == nil {
		g.nodes = make(map[string]*Node)
	}
	if _, ok := g.nodes[path]; ok {
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	}
	children = dedupe(children)
	for _, c := range children {
		if _, ok := g.nodes[c]; !ok {
			return fmt.Errorf("%w: child %s of %s", ErrFileNotFound, c, path)
		}
	}

	n := &Node{Path: path, Signature: sig}
	g.nodes[path] = n
	for _, c := range children {
		g.link(n, g.nodes[c])
	}
	return nil
}

// RemoveFile deletes a node. Unless the matching clear flag is set, a node
// with parents or children is refused rather than silently orphaning edges.
func (g *Graph) RemoveFile(path string, clearParents, clearChildren bool) error {
	n, ok := g.nodes[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if len(n.parents) > 0 && !clearParents {
		return fmt.Errorf("%w: %s", ErrHasParents, path)
	}
	if len(n.children) > 0 && !clearChildren {
		return fmt.Errorf("%w: %s", ErrHasChildren, path)
	}

	for _, p := range n.parents {
		if pn, ok := g.nodes[p]; ok {
			pn.children = remove(pn.children, path)
		}
	}
	for _, c := range n.children {
		if cn, ok := g.nodes[c]; ok {
			cn.parents = remove(cn.parents, path)
		}
	}
	delete(g.nodes, path)
	return nil
}

// SetChildren replaces the full child set of path.
//
// With preventCycles, a child that already (transitively) depends on path is
// rejected with ErrCycle. Without it, cycles are allowed.
func (g *Graph) SetChildren(path string, children []string, preventCycles bool) error {
	n, ok := g.nodes[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	children = dedupe(children)
	for _, c := range children {
		if _, ok := g.nodes[c]; !ok {
			return fmt.Errorf("%w: child %s of %s", ErrFileNotFound, c, path)
		}
	}

	if preventCycles {
		for _, c := range children {
			if c == path {
				return fmt.Errorf("%w: %s depends on itself", ErrCycle, path)
			}
			rel, err := g.NestedRelationship(c, path)
			if err != nil {
				return err
			}
			if rel == Child || rel == Cyclic {
				return fmt.Errorf("%w: %s already depends on %s", ErrCycle, c, path)
			}
		}
	}

	for _, c := range n.children {
		if cn, ok := g.nodes[c]; ok {
			cn.parents = remove(cn.parents, path)
		}
	}
	n.children = nil
	for _, c := range children {
		g.link(n, g.nodes[c])
	}
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := New()
	if g == nil {
		return out
	}
	for p, n := range g.nodes {
		out.nodes[p] = &Node{
			Path:      n.Path,
			Signature: n.Signature,
			parents:   slices.Clone(n.parents),
			children:  slices.Clone(n.children),
		}
	}
	return out
}

// link adds child as a child of parent and parent as a parent of child.
func (g *Graph) link(parent, child *Node) {
	if !slices.Contains(parent.children, child.Path) {
		parent.children = append(parent.children, child.Path)
	}
	if !slices.Contains(child.parents, parent.Path) {
		child.parents = append(child.parents, parent.Path)
	}
}

func remove(list []string, path string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == path })
}

func dedupe(paths []string) []string {
	if len(paths) < 2 {
		return paths
	}
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

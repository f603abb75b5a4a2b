package depgraph

import (
	"fmt"
	"slices"
)

// Relationship describes how one file relates to another.
type Relationship int

const (
	// Unrelated means neither file reaches the other.
	Unrelated Relationship = iota
	// Parent means the other file depends on this one.
	Parent
	// Child means this file depends on the other one.
	Child
	// Cyclic means each file is both parent and child of the other.
	Cyclic
)

func (r Relationship) String() string {
	switch r {
	case Unrelated:
		return "unrelated"
	case Parent:
		return "parent"
	case Child:
		return "child"
	case Cyclic:
		return "cyclic"
	default:
		return fmt.Sprintf("Relationship(%d)", int(r))
	}
}

// DirectRelationship reports what b is to a using immediate edges only.
func (g *Graph) DirectRelationship(a, b string) (Relationship, error) {
	na, err := g.lookup(a)
	if err != nil {
		return Unrelated, err
	}
	if _, err := g.lookup(b); err != nil {
		return Unrelated, err
	}
	return classify(slices.Contains(na.parents, b), slices.Contains(na.children, b)), nil
}

// NestedRelationship reports what b is to a over the transitive closures of
// a's parents and children.
func (g *Graph) NestedRelationship(a, b string) (Relationship, error) {
	if _, err := g.lookup(a); err != nil {
		return Unrelated, err
	}
	if _, err := g.lookup(b); err != nil {
		return Unrelated, err
	}
	ancestors := g.reach(a, func(n *Node) []string { return n.parents })
	descendants := g.reach(a, func(n *Node) []string { return n.children })
	_, isParent := ancestors[b]
	_, isChild := descendants[b]
	return classify(isParent, isChild), nil
}

// reach returns every node reachable from start along next, excluding start
// unless a cycle leads back to it.
func (g *Graph) reach(start string, next func(*Node) []string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := append([]string(nil), next(g.nodes[start])...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if n, ok := g.nodes[p]; ok {
			queue = append(queue, next(n)...)
		}
	}
	return seen
}

func (g *Graph) lookup(path string) (*Node, error) {
	n, ok := g.Node(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return n, nil
}

func classify(isParent, isChild bool) Relationship {
	switch {
	case isParent && isChild:
		return Cyclic
	case isParent:
		return Parent
	case isChild:
		return Child
	default:
		return Unrelated
	}
}

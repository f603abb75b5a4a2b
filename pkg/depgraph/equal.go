package depgraph

import "slices"

// verdict is the memoized outcome of comparing two nodes.
type verdict int

const (
	unknown verdict = iota + 1 // comparison in progress
	equal
	unequal
)

type nodePair struct {
	a, b string
}

// Equal reports whether g and other have the same path set and, for every
// path, structurally identical reachable subgraphs.
//
// Comparison is coinductive: a pair revisited while still being explored is
// assumed equal, which makes the recursion terminate on cycles.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	if g.Len() == 0 {
		return true
	}
	for p := range g.nodes {
		if _, ok := other.nodes[p]; !ok {
			return false
		}
	}

	memo := make(map[nodePair]verdict, len(g.nodes))
	for _, p := range g.Paths() {
		if !nodesEqual(g, other, g.nodes[p], other.nodes[p], memo) {
			return false
		}
	}
	return true
}

func nodesEqual(ga, gb *Graph, a, b *Node, memo map[nodePair]verdict) bool {
	if a.Path != b.Path || !a.Signature.Equal(b.Signature) ||
		len(a.parents) != len(b.parents) || len(a.children) != len(b.children) {
		return false
	}

	key := nodePair{a.Path, b.Path}
	switch memo[key] {
	case unknown, equal:
		return true
	case unequal:
		return false
	}

	memo[key] = unknown
	ok := edgesEqual(ga, gb, a.children, b.children, memo) &&
		edgesEqual(ga, gb, a.parents, b.parents, memo)
	if ok {
		memo[key] = equal
	} else {
		memo[key] = unequal
	}
	return ok
}

func edgesEqual(ga, gb *Graph, as, bs []string, memo map[nodePair]verdict) bool {
	as = slices.Sorted(slices.Values(as))
	bs = slices.Sorted(slices.Values(bs))
	for i := range as {
		na, okA := ga.nodes[as[i]]
		nb, okB := gb.nodes[bs[i]]
		if !okA || !okB {
			return false
		}
		if !nodesEqual(ga, gb, na, nb, memo) {
			return false
		}
	}
	return true
}

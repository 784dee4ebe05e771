package graph

// UnionFind is a disjoint-set forest over a dense arena of integer-indexed
// nodes, with iterative path compression on Find and union by rank. Callers
// map external identifiers to indices once and operate on the arena, keeping
// the structure free of recursion and pointer aliasing.
type UnionFind struct {
	parent []int
	rank   []int
}

// NewUnionFind creates a forest of n singleton sets
func NewUnionFind(n int) *UnionFind {
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &UnionFind{parent: parent, rank: rank}
}

// Find returns the representative of x's set, compressing the path to the
// root in a second pass
func (u *UnionFind) Find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

// Union merges the sets containing a and b, attaching the shallower tree
// under the deeper one
func (u *UnionFind) Union(a, b int) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

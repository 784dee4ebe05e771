package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFind_Singletons(t *testing.T) {
	uf := NewUnionFind(3)
	assert.Equal(t, 0, uf.Find(0))
	assert.Equal(t, 1, uf.Find(1))
	assert.Equal(t, 2, uf.Find(2))
}

func TestUnionFind_Union(t *testing.T) {
	uf := NewUnionFind(5)
	uf.Union(0, 1)
	uf.Union(1, 2)

	assert.Equal(t, uf.Find(0), uf.Find(2))
	assert.NotEqual(t, uf.Find(0), uf.Find(3))

	// Re-union of the same set is a no-op.
	uf.Union(2, 0)
	assert.Equal(t, uf.Find(0), uf.Find(1))
}

func TestUnionFind_DeepChain(t *testing.T) {
	// A long chain exercises the iterative find and compression.
	const n = 100000
	uf := NewUnionFind(n)
	for i := 1; i < n; i++ {
		uf.Union(i-1, i)
	}

	root := uf.Find(0)
	assert.Equal(t, root, uf.Find(n-1))
	assert.Equal(t, root, uf.Find(n/2))
}

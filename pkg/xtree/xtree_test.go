package xtree

import (
	"sync/atomic"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
)

// Safe octree corner configurations, one bit per configuration index.
var octreeTable = []int{
	1, 1, 1, 1, 1, 1, 0, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 0, 1, 0, 0, 0, 1, 0, 1, 0, 1,
	1, 0, 1, 1, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 0, 0, 1, 1, 0, 0, 0, 1,
	1, 0, 0, 0, 1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 0, 1,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1,
	1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 0, 1, 1, 0, 0, 0, 0, 1, 0, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 1, 0, 1, 1, 0, 0, 0, 1,
	1, 0, 0, 0, 1, 1, 0, 0, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, 0, 0, 1, 1, 0, 0, 1, 0, 0, 0, 1, 1, 0, 1,
	1, 0, 1, 0, 1, 0, 0, 0, 1, 0, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 0, 1, 1, 1, 1, 1, 1,
}

func TestCornerTables(t *testing.T) {
	require.Len(t, cornerTables[3], 256)
	for i, want := range octreeTable {
		assert.Equal(t, want == 1, cornerTables[3][i], "octree configuration %08b", i)
	}
	for i, safe := range cornerTables[2] {
		diagonal := i == 0b0110 || i == 0b1001
		assert.Equal(t, !diagonal, safe, "quadtree configuration %04b", i)
	}
	assert.Len(t, cellEdges[2], 4)
	assert.Len(t, cellEdges[3], 12)
}

func planar(t *testing.T, res float64) region.Region {
	t.Helper()
	r, err := region.New(interval.New(-1, 1), interval.New(-1, 1), interval.Point(0), res)
	require.NoError(t, err)
	return r
}

func cube(t *testing.T, res float64) region.Region {
	t.Helper()
	r, err := region.New(interval.New(-1, 1), interval.New(-1, 1), interval.New(-1, 1), res)
	require.NoError(t, err)
	return r
}

func leaves(n *Node) []*Node {
	switch n.Type {
	case Leaf:
		return []*Node{n}
	case Branch:
		var out []*Node
		for i := range n.children {
			out = append(out, leaves(n.Child(i))...)
		}
		return out
	}
	return nil
}

func TestCircleQuadtree(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()

	s := tree.NewStore()
	for _, size := range []int{1, 4} {
		root, err := Build(eval.NewPool(shapes.Circle(s, 0.5), size), planar(t, 1), 2, nil)
		require.NoError(t, err)
		require.Equal(t, Branch, root.Type)
		assert.Equal(t, 1, root.Level)
		assert.Equal(t, uint8(0), root.Corners())

		ls := leaves(root)
		require.Len(t, ls, 4)
		for i, l := range ls {
			assert.Same(t, l, l.Child(3), "leaves are their own children")
			assert.Equal(t, 2, l.Rank)
			assert.True(t, l.Manifold)
			// Vertices sit where the tangent lines at the crossings meet.
			assert.InDelta(t, 0.5, abs(l.Vertex.X), 0.01, "leaf %d", i)
			assert.InDelta(t, 0.5, abs(l.Vertex.Y), 0.01, "leaf %d", i)
			assert.Equal(t, 0.0, l.Vertex.Z)
		}
	}
}

func TestSphereOctree(t *testing.T) {
	s := tree.NewStore()
	root, err := Build(eval.NewPool(shapes.Sphere(s, 0.5), eval.DefaultPoolSize), cube(t, 1), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, root.Count(Leaf))
	for i := 0; i < 8; i++ {
		c := root.Child(i)
		assert.True(t, c.Corner(7-i), "child %d touches the centre", i)
		assert.Equal(t, 3, c.Rank)
	}
}

func TestFlatSurfaceCollapses(t *testing.T) {
	s := tree.NewStore()
	plane := tree.Sub(s.X(), s.Const(0.1))
	root, err := Build(eval.NewPool(plane, 1), planar(t, 8), 2, nil)
	require.NoError(t, err)

	ls := leaves(root)
	require.NotEmpty(t, ls)
	assert.Less(t, len(ls), 16, "a straight line merges leaves")
	for _, l := range ls {
		assert.InDelta(t, 0.1, l.Vertex.X, 0.01)
		assert.Equal(t, 1, l.Rank)
	}
}

func TestUnambiguousRoots(t *testing.T) {
	s := tree.NewStore()
	far := shapes.Move(shapes.Circle(s, 0.5), 10, 0, 0)
	root, err := Build(eval.NewPool(far, 4), planar(t, 4), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, Empty, root.Type)
	assert.Same(t, root, root.Child(2))

	inside := shapes.Circle(s, 10)
	root, err = Build(eval.NewPool(inside, 4), planar(t, 4), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, Full, root.Type)
	assert.True(t, root.Corner(3))
}

func TestAbort(t *testing.T) {
	s := tree.NewStore()
	var abort atomic.Bool
	abort.Store(true)
	_, err := Build(eval.NewPool(shapes.Sphere(s, 0.5), 8), cube(t, 4), 3, &abort)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestAbortDuringBuild(t *testing.T) {
	s := tree.NewStore()
	pool := eval.NewPool(shapes.Sphere(s, 0.5), 8)
	r := cube(t, 16)

	var nodes atomic.Int64
	visit = func() { nodes.Add(1) }
	defer func() { visit = nil }()
	_, err := Build(pool, r, 3, nil)
	require.NoError(t, err)
	full := nodes.Load()
	require.Greater(t, full, int64(100))

	var abort atomic.Bool
	nodes.Store(0)
	visit = func() {
		if nodes.Add(1) == 20 {
			abort.Store(true)
		}
	}
	_, err = Build(pool, r, 3, &abort)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Less(t, nodes.Load(), full/2, "nodes are skipped once the flag is raised")
}

func TestQEFCorner(t *testing.T) {
	var q qef
	q.add(v3.Vec{X: 1}, v3.Vec{X: 1})
	q.add(v3.Vec{Y: 2}, v3.Vec{Y: 1})
	q.add(v3.Vec{Z: 3}, v3.Vec{Z: 1})
	v, rank, err := q.solve(v3.Vec{})
	assert.Equal(t, 3, rank)
	assert.InDelta(t, 1, v.X, 1e-9)
	assert.InDelta(t, 2, v.Y, 1e-9)
	assert.InDelta(t, 3, v.Z, 1e-9)
	assert.InDelta(t, 0, err, 1e-9)

	// Parallel normals leave the other axes at the mass point.
	var p qef
	p.add(v3.Vec{X: 1, Y: 0}, v3.Vec{X: 1})
	p.add(v3.Vec{X: 1, Y: 4}, v3.Vec{X: 1})
	v, rank, _ = p.solve(v3.Vec{})
	assert.Equal(t, 1, rank)
	assert.InDelta(t, 1, v.X, 1e-9)
	assert.InDelta(t, 2, v.Y, 1e-9)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "leaf", Leaf.String())
	assert.Equal(t, "Type(9)", Type(9).String())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

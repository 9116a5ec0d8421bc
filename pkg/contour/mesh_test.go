package contour

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/kernel"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
	"github.com/chazu/frep/pkg/xtree"
)

func cube(t *testing.T, res float64) region.Region {
	t.Helper()
	r, err := region.New(interval.New(-1, 1), interval.New(-1, 1), interval.New(-1, 1), res)
	require.NoError(t, err)
	return r
}

// closed reports whether every directed edge is matched by its reverse.
func closed(m *kernel.Mesh) bool {
	edges := map[[2]uint32]int{}
	for i := 0; i < m.TriangleCount(); i++ {
		idx := m.Indices[3*i : 3*i+3]
		for j := 0; j < 3; j++ {
			edges[[2]uint32{idx[j], idx[(j+1)%3]}]++
		}
	}
	for e, n := range edges {
		if edges[[2]uint32{e[1], e[0]}] != n {
			return false
		}
	}
	return true
}

func TestSphereCoarse(t *testing.T) {
	s := tree.NewStore()
	m, err := RenderMesh(shapes.Sphere(s, 0.5), cube(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 8, m.VertexCount())
	assert.Equal(t, 12, m.TriangleCount())
	assert.True(t, closed(m))
	assert.Greater(t, m.Volume(), 0.0, "outward winding")
}

func TestSphereFine(t *testing.T) {
	s := tree.NewStore()
	m, err := RenderMesh(shapes.Sphere(s, 0.5), cube(t, 8))
	require.NoError(t, err)
	require.False(t, m.IsEmpty())
	assert.True(t, closed(m))
	assert.InEpsilon(t, 4.0/3*math.Pi*0.125, m.Volume(), 0.05)

	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(uint32(i))
		assert.InDelta(t, 0.5, v.Length(), 0.04)
		n := [3]float32{m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]}
		// Gradient normals of a sphere point away from the centre.
		dot := float64(n[0])*v.X + float64(n[1])*v.Y + float64(n[2])*v.Z
		assert.Greater(t, dot, 0.0)
	}

	lo, hi := m.Bounds()
	assert.InDelta(t, -0.5, lo.X, 0.05)
	assert.InDelta(t, 0.5, hi.Z, 0.05)
}

func TestBoxKeepsCorners(t *testing.T) {
	s := tree.NewStore()
	box := shapes.Box(s, [3]float64{-0.42, -0.33, -0.27}, [3]float64{0.38, 0.29, 0.31})
	m, err := RenderMesh(box, cube(t, 6))
	require.NoError(t, err)
	assert.True(t, closed(m))
	assert.InEpsilon(t, 0.8*0.62*0.58, m.Volume(), 0.02)

	lo, hi := m.Bounds()
	assert.InDelta(t, -0.42, lo.X, 0.01)
	assert.InDelta(t, 0.31, hi.Z, 0.01)
}

func TestEmptyMesh(t *testing.T) {
	s := tree.NewStore()
	m, err := RenderMesh(shapes.Move(shapes.Sphere(s, 0.2), 5, 0, 0), cube(t, 4))
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
}

func TestWrongDimsPanics(t *testing.T) {
	s := tree.NewStore()
	pool := eval.NewPool(shapes.Circle(s, 0.5), 1)
	root, err := xtree.Build(pool, plane(t, 1), 2, nil)
	require.NoError(t, err)
	assert.Panics(t, func() { MeshFromXTree(root, pool.Get(0)) })
}

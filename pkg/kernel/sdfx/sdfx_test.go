package sdfx

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/frep/pkg/kernel"
	"github.com/chazu/frep/pkg/kernel/frep"
	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
)

func mesh(t *testing.T, k kernel.Kernel, s kernel.Solid) *kernel.Mesh {
	t.Helper()
	m, err := k.ToMesh(s)
	require.NoError(t, err)
	require.False(t, m.IsEmpty())
	require.Equal(t, len(m.Vertices), len(m.Normals))
	require.Equal(t, 3*m.TriangleCount(), len(m.Indices))
	return m
}

func TestBox(t *testing.T) {
	k := New(64)
	box := k.Box(100, 50, 25)
	lo, hi := box.BoundingBox()
	for i, want := range [3]float64{100, 50, 25} {
		assert.InDelta(t, 0, lo[i], 0.01)
		assert.InDelta(t, want, hi[i], 0.01)
	}
	m := mesh(t, k, box)
	assert.InEpsilon(t, 100*50*25.0, math.Abs(m.Volume()), 0.05)
}

func TestDifferenceAddsTriangles(t *testing.T) {
	k := New(64)
	box := k.Box(100, 100, 100)
	hole := k.Translate(k.Cylinder(120, 20, 32), 50, 50, 50)
	plain := mesh(t, k, box)
	holed := mesh(t, k, k.Difference(box, hole))
	assert.Greater(t, holed.TriangleCount(), plain.TriangleCount())
	assert.Less(t, math.Abs(holed.Volume()), math.Abs(plain.Volume()))
}

func TestTranslateAndRotate(t *testing.T) {
	k := New()
	lo, hi := k.Translate(k.Sphere(5), 100, 200, 300).BoundingBox()
	assert.InDelta(t, 95, lo[0], 0.5)
	assert.InDelta(t, 305, hi[2], 0.5)

	lo, hi = k.Rotate(k.Box(100, 10, 10), 0, 0, 90).BoundingBox()
	assert.InDelta(t, 10, hi[0]-lo[0], 1)
	assert.InDelta(t, 100, hi[1]-lo[1], 1)
}

func TestForeignSolid(t *testing.T) {
	k := New()
	_, err := k.ToMesh(frep.New().Sphere(1))
	assert.ErrorIs(t, err, kernel.ErrForeignSolid)

	_, ok := SDF(k.Sphere(1))
	assert.True(t, ok)
}

func TestTreeAdapter(t *testing.T) {
	s := tree.NewStore()
	f := FromTree(tree.Sqrt(s.X()), kernel.Box3{Max: [3]float64{1, 1, 1}})
	assert.InDelta(t, 2, f.Evaluate(v3.Vec{X: 4}), 1e-12)
	assert.True(t, math.IsInf(f.Evaluate(v3.Vec{X: -4}), 1), "NaN reads as outside")
	assert.Equal(t, v3.Vec{X: 1, Y: 1, Z: 1}, f.BoundingBox().Max)
}

// The marching cubes mesh of a tree agrees with dual contouring of the
// same tree.
func TestReferenceAgreesWithDualContouring(t *testing.T) {
	fk := frep.New(frep.WithMeshCells(48))
	shape := fk.Difference(fk.Sphere(1), fk.Translate(fk.Box(0.6, 0.6, 0.6), -0.3, -0.3, -0.3))
	tr := shape.(*frep.Solid)

	ref, err := Mesh(tr.Tree, tr.Box, 96)
	require.NoError(t, err)
	dc, err := fk.ToMesh(shape)
	require.NoError(t, err)

	want := 4*math.Pi/3 - 0.6*0.6*0.6
	assert.InEpsilon(t, want, math.Abs(ref.Volume()), 0.03)
	assert.InEpsilon(t, math.Abs(ref.Volume()), dc.Volume(), 0.03)
}

func TestMeshRejectsEmptyBox(t *testing.T) {
	s := tree.NewStore()
	_, err := Mesh(shapes.Sphere(s, 1), kernel.Box3{Min: [3]float64{1, 0, 0}}, 16)
	assert.Error(t, err)
}

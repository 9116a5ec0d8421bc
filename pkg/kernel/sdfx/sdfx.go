// Package sdfx bridges expression trees to github.com/deadsy/sdfx. A tree
// can be handed to sdfx as an sdf.SDF3 and meshed with its marching cubes
// renderer, which serves as the reference for dual contouring. Kernel is
// the same kernel.Kernel built directly on sdfx primitives.
package sdfx

import (
	"fmt"
	"math"
	"sync"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/kernel"
	"github.com/chazu/frep/pkg/tree"
)

var _ kernel.Kernel = (*Kernel)(nil)

// DefaultMeshCells is the marching cubes resolution along the longest side.
const DefaultMeshCells = 200

// Tree adapts an expression tree to sdf.SDF3. Evaluate is safe for
// concurrent use.
type Tree struct {
	mu sync.Mutex
	e  *eval.Evaluator
	bb sdf.Box3
}

var _ sdf.SDF3 = (*Tree)(nil)

// FromTree wraps t with the given bounds.
func FromTree(t tree.Tree, b kernel.Box3) *Tree {
	return &Tree{e: eval.New(t), bb: box3(b)}
}

// Evaluate returns the tree's value at p. NaN reads as outside.
func (t *Tree) Evaluate(p v3.Vec) float64 {
	t.mu.Lock()
	v := t.e.Eval(p.X, p.Y, p.Z)
	t.mu.Unlock()
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// BoundingBox returns the bounds given to FromTree.
func (t *Tree) BoundingBox() sdf.Box3 { return t.bb }

func box3(b kernel.Box3) sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
		Max: v3.Vec{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
	}
}

// Mesh runs marching cubes over t inside b, padded by two cells on every
// side. Vertices are not shared between triangles.
func Mesh(t tree.Tree, b kernel.Box3, cells int) (*kernel.Mesh, error) {
	if b.Empty() {
		return nil, fmt.Errorf("sdfx: empty bounding box %v", b)
	}
	size := 0.0
	for i := range 3 {
		size = max(size, b.Max[i]-b.Min[i])
	}
	pad := 2 * size / float64(cells)
	for i := range 3 {
		b.Min[i] -= pad
		b.Max[i] += pad
	}
	return toMesh(FromTree(t, b), cells), nil
}

func toMesh(s sdf.SDF3, cells int) *kernel.Mesh {
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, len(triangles)*9),
		Normals:  make([]float32, 0, len(triangles)*9),
		Indices:  make([]uint32, 0, len(triangles)*3),
	}
	for _, tri := range triangles {
		n := tri.Normal()
		a := m.AddVertex(tri[0], n)
		b := m.AddVertex(tri[1], n)
		c := m.AddVertex(tri[2], n)
		m.AddTriangle(a, b, c)
	}
	return m
}

// solid wraps an sdf.SDF3.
type solid struct {
	s sdf.SDF3
}

func (s *solid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	return [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}, [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
}

// SDF returns the sdfx function behind a Solid built by Kernel.
func SDF(s kernel.Solid) (sdf.SDF3, bool) {
	w, ok := s.(*solid)
	if !ok {
		return nil, false
	}
	return w.s, true
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	f, ok := SDF(s)
	if !ok {
		panic(kernel.ErrForeignSolid)
	}
	return f
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &solid{s: s}
}

func must(s sdf.SDF3, err error) kernel.Solid {
	if err != nil {
		panic(fmt.Sprintf("sdfx: %v", err))
	}
	return wrap(s)
}

// Kernel builds solids from sdfx primitives.
type Kernel struct {
	cells int
}

// New returns a kernel meshing at DefaultMeshCells, or at cells if given.
func New(cells ...int) *Kernel {
	k := &Kernel{cells: DefaultMeshCells}
	if len(cells) > 0 && cells[0] > 0 {
		k.cells = cells[0]
	}
	return k
}

// Box creates a box with its minimum corner at the origin. sdf.Box3D is
// centred, so it is shifted by half its size.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx: box: %v", err))
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})))
}

// Cylinder creates a centred Z-aligned cylinder; segments is ignored.
func (k *Kernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	return must(sdf.Cylinder3D(height, radius, 0))
}

func (k *Kernel) Sphere(radius float64) kernel.Solid {
	return must(sdf.Sphere3D(radius))
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return wrap(sdf.Transform3D(unwrap(s), sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})))
}

// Rotate turns s by Euler angles in degrees, about X first.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	rad := math.Pi / 180
	m := sdf.RotateZ(z * rad).Mul(sdf.RotateY(y * rad)).Mul(sdf.RotateX(x * rad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh meshes s by marching cubes with flat normals.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	f, ok := SDF(s)
	if !ok {
		return nil, kernel.ErrForeignSolid
	}
	return toMesh(f, k.cells), nil
}

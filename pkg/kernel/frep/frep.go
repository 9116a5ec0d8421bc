// Package frep implements kernel.Kernel on expression trees. Solids are
// implicit functions; ToMesh samples them with dual contouring over their
// bounding box.
package frep

import (
	"fmt"
	"math"

	"github.com/npillmayer/schuko/tracing"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/frep/pkg/contour"
	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/kernel"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.kernel")
}

var _ kernel.Kernel = (*Kernel)(nil)

// DefaultMeshCells is the number of samples along the longest side of a
// solid's bounding box.
const DefaultMeshCells = 64

// margin pads the meshing region, in cells, so that surfaces on the
// bounding box are still crossed by sample edges.
const margin = 2

// Solid is a tree together with a conservative bounding box.
type Solid struct {
	Tree tree.Tree
	Box  kernel.Box3
}

// BoundingBox returns the conservative bounding box.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	return s.Box.Min, s.Box.Max
}

// Option configures a Kernel.
type Option func(*options)

type options struct {
	cells int
	store *tree.Store
}

// WithMeshCells sets the sampling density of ToMesh.
func WithMeshCells(n int) Option {
	return func(o *options) {
		o.cells = n
	}
}

// WithStore builds solids in s instead of a private store.
func WithStore(s *tree.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// Kernel builds solids in one tree store.
type Kernel struct {
	store *tree.Store
	cells int
}

// New returns a kernel with its own store unless WithStore is given.
func New(opts ...Option) *Kernel {
	o := options{cells: DefaultMeshCells}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = tree.NewStore()
	}
	return &Kernel{store: o.store, cells: max(1, o.cells)}
}

// Store returns the store solids are built in.
func (k *Kernel) Store() *tree.Store { return k.store }

// Wrap turns an arbitrary tree with known bounds into a Solid.
func (k *Kernel) Wrap(t tree.Tree, b kernel.Box3) *Solid {
	if t.Store() != k.store {
		panic(kernel.ErrForeignSolid)
	}
	return &Solid{Tree: t, Box: b}
}

func unwrap(s kernel.Solid) *Solid {
	f, ok := s.(*Solid)
	if !ok {
		panic(kernel.ErrForeignSolid)
	}
	return f
}

// Box creates a box with its minimum corner at the origin.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	b := kernel.Box3{Max: [3]float64{x, y, z}}
	return &Solid{Tree: shapes.Box(k.store, b.Min, b.Max), Box: b}
}

// Cylinder creates a Z-aligned cylinder centred on the origin. The
// surface is exact, so segments is ignored.
func (k *Kernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	t := shapes.Move(shapes.Cylinder(k.store, radius, height), 0, 0, -height/2)
	return &Solid{Tree: t, Box: kernel.Box3{
		Min: [3]float64{-radius, -radius, -height / 2},
		Max: [3]float64{radius, radius, height / 2},
	}}
}

// Sphere creates a sphere centred on the origin.
func (k *Kernel) Sphere(radius float64) kernel.Solid {
	return &Solid{Tree: shapes.Sphere(k.store, radius), Box: kernel.Box3{
		Min: [3]float64{-radius, -radius, -radius},
		Max: [3]float64{radius, radius, radius},
	}}
}

func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &Solid{Tree: shapes.Union(sa.Tree, sb.Tree), Box: sa.Box.Union(sb.Box)}
}

func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &Solid{Tree: shapes.Difference(sa.Tree, sb.Tree), Box: sa.Box}
}

func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	return &Solid{Tree: shapes.Intersection(sa.Tree, sb.Tree), Box: sa.Box.Intersect(sb.Box)}
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	f := unwrap(s)
	b := f.Box
	for i, d := range [3]float64{x, y, z} {
		b.Min[i] += d
		b.Max[i] += d
	}
	return &Solid{Tree: shapes.Move(f.Tree, x, y, z), Box: b}
}

// Rotate turns s by Euler angles in degrees, about X first, then Y, then Z.
// The new box bounds the rotated corners of the old one.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	f := unwrap(s)
	rad := math.Pi / 180
	m := eval.RotateZ(z * rad).Mul(eval.RotateY(y * rad)).Mul(eval.RotateX(x * rad))
	var pts [8][3]float64
	for i, c := range f.Box.Corners() {
		p := m.Apply(v3.Vec{X: c[0], Y: c[1], Z: c[2]})
		pts[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return &Solid{Tree: shapes.Rotate(f.Tree, x, y, z), Box: kernel.Around(pts[:]...)}
}

// Region returns the sampling region ToMesh uses for s.
func (k *Kernel) Region(s kernel.Solid) (region.Region, error) {
	b := unwrap(s).Box
	if b.Empty() {
		return region.Region{}, fmt.Errorf("frep: empty bounding box %v", b)
	}
	size := 0.0
	for i := range 3 {
		size = max(size, b.Max[i]-b.Min[i])
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return region.Region{}, fmt.Errorf("frep: bounding box %v: %w", b, region.ErrSpan)
	}
	res := float64(k.cells) / size
	pad := margin / res
	axis := func(i int) interval.Interval {
		return interval.New(b.Min[i]-pad, b.Max[i]+pad)
	}
	return region.New(axis(0), axis(1), axis(2), res)
}

// ToMesh meshes s by dual contouring over its padded bounding box.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	f, ok := s.(*Solid)
	if !ok {
		return nil, kernel.ErrForeignSolid
	}
	r, err := k.Region(f)
	if err != nil {
		return nil, err
	}
	m, err := contour.RenderMesh(f.Tree, r)
	if err != nil {
		return nil, fmt.Errorf("frep: mesh: %w", err)
	}
	tracer().Debugf("frep: meshed %d triangles over %d voxels", m.TriangleCount(), r.Voxels())
	return m, nil
}

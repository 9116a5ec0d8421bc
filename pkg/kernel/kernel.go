// Package kernel defines the solid modeling interface shared by the
// meshing backends. The frep backend builds expression trees and meshes
// them by dual contouring; the sdfx backend is the marching-cubes
// reference it is checked against.
package kernel

import "errors"

// ErrForeignSolid is returned when a Solid from one backend is handed to
// another.
var ErrForeignSolid = errors.New("kernel: solid belongs to another backend")

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns a conservative axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds and meshes solids. Boxes have their minimum corner at the
// origin; cylinders and spheres are centred on it.
type Kernel interface {
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid
	Sphere(radius float64) Solid

	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	ToMesh(s Solid) (*Mesh, error)
}

// Box3 is an axis-aligned box given by two corners.
type Box3 struct {
	Min, Max [3]float64
}

// Union returns the smallest box holding b and o.
func (b Box3) Union(o Box3) Box3 {
	for i := range 3 {
		b.Min[i] = min(b.Min[i], o.Min[i])
		b.Max[i] = max(b.Max[i], o.Max[i])
	}
	return b
}

// Intersect returns the overlap of b and o. The result may be empty.
func (b Box3) Intersect(o Box3) Box3 {
	for i := range 3 {
		b.Min[i] = max(b.Min[i], o.Min[i])
		b.Max[i] = min(b.Max[i], o.Max[i])
	}
	return b
}

// Empty reports whether the box has no volume on some axis.
func (b Box3) Empty() bool {
	for i := range 3 {
		if b.Min[i] > b.Max[i] {
			return true
		}
	}
	return false
}

// Corners returns the eight corners of the box; corner i takes Max on
// every axis whose bit is set in i (bit 0 for X).
func (b Box3) Corners() [8][3]float64 {
	var out [8][3]float64
	for i := range 8 {
		for a := range 3 {
			if i&(1<<a) != 0 {
				out[i][a] = b.Max[a]
			} else {
				out[i][a] = b.Min[a]
			}
		}
	}
	return out
}

// Around returns the bounding box of a set of points.
func Around(pts ...[3]float64) Box3 {
	if len(pts) == 0 {
		return Box3{}
	}
	b := Box3{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.Union(Box3{Min: p, Max: p})
	}
	return b
}

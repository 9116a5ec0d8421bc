// Package shapes builds common implicit solids as expression trees.
// Every shape is negative inside, positive outside and zero on the surface.
package shapes

import (
	"math"

	"github.com/chazu/frep/pkg/tree"
)

// Circle is x² + y² - r², a disc in the XY plane.
func Circle(s *tree.Store, r float64) tree.Tree {
	return tree.Sub(tree.Add(tree.Square(s.X()), tree.Square(s.Y())), s.Const(r*r))
}

// Sphere is x² + y² + z² - r².
func Sphere(s *tree.Store, r float64) tree.Tree {
	sq := tree.Add(tree.Add(tree.Square(s.X()), tree.Square(s.Y())), tree.Square(s.Z()))
	return tree.Sub(sq, s.Const(r*r))
}

// Rectangle is the axis-aligned 2D rectangle [xmin, xmax] x [ymin, ymax].
func Rectangle(s *tree.Store, xmin, xmax, ymin, ymax float64) tree.Tree {
	x, y := s.X(), s.Y()
	return tree.Max(
		tree.Max(tree.Sub(s.Const(xmin), x), tree.Sub(x, s.Const(xmax))),
		tree.Max(tree.Sub(s.Const(ymin), y), tree.Sub(y, s.Const(ymax))))
}

// Box is the axis-aligned box between lo and hi.
func Box(s *tree.Store, lo, hi [3]float64) tree.Tree {
	z := s.Z()
	slab := tree.Max(tree.Sub(s.Const(lo[2]), z), tree.Sub(z, s.Const(hi[2])))
	return tree.Max(Rectangle(s, lo[0], hi[0], lo[1], hi[1]), slab)
}

// Cylinder is a Z-aligned cylinder of radius r from z = 0 to z = h.
func Cylinder(s *tree.Store, r, h float64) tree.Tree {
	z := s.Z()
	caps := tree.Max(tree.Neg(z), tree.Sub(z, s.Const(h)))
	return tree.Max(Circle(s, r), caps)
}

// Union is the minimum of its arguments.
func Union(a tree.Tree, rest ...tree.Tree) tree.Tree {
	for _, b := range rest {
		a = tree.Min(a, b)
	}
	return a
}

// Intersection is the maximum of its arguments.
func Intersection(a tree.Tree, rest ...tree.Tree) tree.Tree {
	for _, b := range rest {
		a = tree.Max(a, b)
	}
	return a
}

// Difference removes every b from a.
func Difference(a tree.Tree, b ...tree.Tree) tree.Tree {
	for _, c := range b {
		a = tree.Max(a, tree.Neg(c))
	}
	return a
}

// Move translates t by (dx, dy, dz).
func Move(t tree.Tree, dx, dy, dz float64) tree.Tree {
	s := t.Store()
	return tree.Remap(t,
		tree.Sub(s.X(), s.Const(dx)),
		tree.Sub(s.Y(), s.Const(dy)),
		tree.Sub(s.Z(), s.Const(dz)))
}

// Scale stretches t about the origin. Factors must be non-zero.
func Scale(t tree.Tree, sx, sy, sz float64) tree.Tree {
	s := t.Store()
	return tree.Remap(t,
		tree.Div(s.X(), s.Const(sx)),
		tree.Div(s.Y(), s.Const(sy)),
		tree.Div(s.Z(), s.Const(sz)))
}

// Rotate turns t by Euler angles in degrees, applied about X, then Y, then Z.
func Rotate(t tree.Tree, ax, ay, az float64) tree.Tree {
	// The inverse rotation maps world coordinates back into t's frame.
	m := rotation(ax, ay, az)
	s := t.Store()
	coord := func(row int) tree.Tree {
		// Transpose of an orthonormal matrix is its inverse.
		return s.Affine(m[0][row], m[1][row], m[2][row], 0)
	}
	return tree.Remap(t, coord(0), coord(1), coord(2))
}

func rotation(ax, ay, az float64) [3][3]float64 {
	rad := math.Pi / 180
	sx, cx := math.Sincos(ax * rad)
	sy, cy := math.Sincos(ay * rad)
	sz, cz := math.Sincos(az * rad)
	rx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	ry := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	rz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return mul3(rz, mul3(ry, rx))
}

func mul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// Menger builds a Menger sponge of the given depth filling [-1.5, 1.5]³.
// It is a deep, heavily shared tree and a good stress test.
func Menger(s *tree.Store, depth int) tree.Tree {
	cube := Box(s, [3]float64{-1.5, -1.5, -1.5}, [3]float64{1.5, 1.5, 1.5})

	var hole tree.Tree
	for _, axes := range [][2]int{{0, 1}, {1, 2}, {0, 2}} {
		lo := [3]float64{-math.Inf(1), -math.Inf(1), -math.Inf(1)}
		hi := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		for _, a := range axes {
			lo[a], hi[a] = -0.5, 0.5
		}
		bar := Box(s, lo, hi)
		if hole.IsValid() {
			hole = Union(hole, bar)
		} else {
			hole = bar
		}
	}

	holes := hole
	for i := 1; i < depth; i++ {
		n := int(math.Pow(3, float64(i)))
		period := 3 / float64(n)
		small := Scale(hole, 1/float64(n), 1/float64(n), 1/float64(n))
		for axis := 0; axis < 3; axis++ {
			small = tile(small, axis, n, period)
		}
		holes = Union(holes, small)
	}
	return Difference(cube, holes)
}

// tile repeats t n times along one axis with the given period, centred on
// the sponge.
func tile(t tree.Tree, axis, n int, period float64) tree.Tree {
	var out tree.Tree
	for j := 0; j < n; j++ {
		var d [3]float64
		d[axis] = -1.5 + period*(float64(j)+0.5)
		m := Move(t, d[0], d[1], d[2])
		if out.IsValid() {
			out = Union(out, m)
		} else {
			out = m
		}
	}
	return out
}

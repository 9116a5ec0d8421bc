package eval

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/chazu/frep/pkg/interval"
)

// Matrix is a row-major 4x4 affine transform. The bottom row is expected to
// be 0 0 0 1.
type Matrix [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Translate returns a translation by (dx, dy, dz).
func Translate(dx, dy, dz float64) Matrix {
	m := Identity()
	m[0][3], m[1][3], m[2][3] = dx, dy, dz
	return m
}

// Scale returns an axis-aligned scaling.
func Scale(sx, sy, sz float64) Matrix {
	m := Identity()
	m[0][0], m[1][1], m[2][2] = sx, sy, sz
	return m
}

// RotateX returns a rotation of a radians about the X axis.
func RotateX(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{{1, 0, 0, 0}, {0, c, -s, 0}, {0, s, c, 0}, {0, 0, 0, 1}}
}

// RotateY returns a rotation of a radians about the Y axis.
func RotateY(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{{c, 0, s, 0}, {0, 1, 0, 0}, {-s, 0, c, 0}, {0, 0, 0, 1}}
}

// RotateZ returns a rotation of a radians about the Z axis.
func RotateZ(a float64) Matrix {
	s, c := math.Sincos(a)
	return Matrix{{c, -s, 0, 0}, {s, c, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Mul returns m * n, the transform that applies n first.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// Apply transforms a point.
func (m Matrix) Apply(p v3.Vec) v3.Vec {
	return v3.Vec{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// ApplyTranspose applies the transpose of the linear part, which maps a
// gradient taken after the transform back to the input frame.
func (m Matrix) ApplyTranspose(g v3.Vec) v3.Vec {
	return v3.Vec{
		X: m[0][0]*g.X + m[1][0]*g.Y + m[2][0]*g.Z,
		Y: m[0][1]*g.X + m[1][1]*g.Y + m[2][1]*g.Z,
		Z: m[0][2]*g.X + m[1][2]*g.Y + m[2][2]*g.Z,
	}
}

func (m Matrix) applyInterval(x, y, z interval.Interval) (interval.Interval, interval.Interval, interval.Interval) {
	row := func(r int) interval.Interval {
		return interval.Add(
			interval.Add(interval.Scale(x, m[r][0]), interval.Scale(y, m[r][1])),
			interval.Add(interval.Scale(z, m[r][2]), interval.Point(m[r][3])))
	}
	return row(0), row(1), row(2)
}

// IsIdentity reports whether m is exactly the identity.
func (m Matrix) IsIdentity() bool { return m == Identity() }

// Inverse returns m⁻¹, or an error for singular transforms.
func (m Matrix) Inverse() (Matrix, error) {
	a := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a.Set(i, j, m[i][j])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Matrix{}, fmt.Errorf("eval: invert transform: %w", err)
	}
	var out Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

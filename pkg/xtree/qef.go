package xtree

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"
)

// qef accumulates the quadratic error function |A x - B|² for a set of
// surface crossings with unit normals, stored as AᵀA, AᵀB and BᵀB, plus
// the mass point (mean crossing) used to regularise the solve.
type qef struct {
	ata   [3][3]float64
	atb   [3]float64
	btb   float64
	mass  v3.Vec
	count float64
}

func (q *qef) add(p, n v3.Vec) {
	ns := [3]float64{n.X, n.Y, n.Z}
	d := n.Dot(p)
	for i := range ns {
		for j := range ns {
			q.ata[i][j] += ns[i] * ns[j]
		}
		q.atb[i] += ns[i] * d
	}
	q.btb += d * d
	q.mass = q.mass.Add(p)
	q.count++
}

// merge adds o's error terms. The mass point is only taken over when
// withMass is set, so low-rank crossings do not drag a sharp vertex.
func (q *qef) merge(o qef, withMass bool) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			q.ata[i][j] += o.ata[i][j]
		}
		q.atb[i] += o.atb[i]
	}
	q.btb += o.btb
	if withMass {
		q.mass = q.mass.Add(o.mass)
		q.count += o.count
	}
}

// solve minimises the error about the mass point using a truncated
// pseudo-inverse of AᵀA. It returns the vertex, the number of eigenvalues
// kept and the residual error. A non-finite result falls back to the
// given point.
func (q *qef) solve(fallback v3.Vec) (v3.Vec, int, float64) {
	center := fallback
	if q.count > 0 {
		center = q.mass.MulScalar(1 / q.count)
	}

	sym := mat.NewSymDense(3, []float64{
		q.ata[0][0], q.ata[0][1], q.ata[0][2],
		q.ata[1][0], q.ata[1][1], q.ata[1][2],
		q.ata[2][0], q.ata[2][1], q.ata[2][2],
	})
	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return center, 0, math.Inf(1)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var pinv [3][3]float64
	rank := 0
	for k, l := range vals {
		if math.Abs(l) < eigenvalueCutoff {
			continue
		}
		rank++
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				pinv[i][j] += vecs.At(i, k) * vecs.At(j, k) / l
			}
		}
	}

	c := [3]float64{center.X, center.Y, center.Z}
	var r, x [3]float64
	for i := 0; i < 3; i++ {
		r[i] = q.atb[i]
		for j := 0; j < 3; j++ {
			r[i] -= q.ata[i][j] * c[j]
		}
	}
	for i := 0; i < 3; i++ {
		x[i] = c[i]
		for j := 0; j < 3; j++ {
			x[i] += pinv[i][j] * r[j]
		}
	}

	v := v3.Vec{X: x[0], Y: x[1], Z: x[2]}
	if !finite(v) {
		return fallback, rank, math.Inf(1)
	}
	return v, rank, q.error(x)
}

// error evaluates xᵀAᵀAx - 2xᵀAᵀB + BᵀB.
func (q *qef) error(x [3]float64) float64 {
	e := q.btb
	for i := 0; i < 3; i++ {
		e -= 2 * x[i] * q.atb[i]
		for j := 0; j < 3; j++ {
			e += x[i] * q.ata[i][j] * x[j]
		}
	}
	return e
}

package xtree

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/frep/pkg/eval"
)

const (
	// searchCount is the number of bisection steps used to locate a
	// surface crossing on a cell edge.
	searchCount = 8

	// eigenvalueCutoff drops QEF eigenvalues below it when building the
	// pseudo-inverse, which also fixes the vertex rank.
	eigenvalueCutoff = 0.1
)

// leaf samples the cell's corners and, if the surface crosses it, places
// the feature vertex.
func (n *Node) leaf(e *eval.Evaluator) {
	count := 1 << n.dims
	for i := 0; i < count; i++ {
		p := n.Pos(i)
		e.Set(p.X, p.Y, p.Z, i)
	}
	for i, v := range e.Values(count) {
		if v < 0 {
			n.corners |= 1 << i
		}
	}

	switch n.corners {
	case 0:
		n.Type = Empty
		return
	case 1<<count - 1:
		n.Type = Full
		return
	}
	n.Type = Leaf
	n.Manifold = cornerSafe(n.dims, n.corners)

	var f eval.Feature
	for _, edge := range cellEdges[n.dims] {
		in, out := edge[0], edge[1]
		if n.Corner(in) == n.Corner(out) {
			continue
		}
		if !n.Corner(in) {
			in, out = out, in
		}
		p := searchEdge(e, n.Pos(in), n.Pos(out))
		_, g := e.Deriv(p.X, p.Y, p.Z)
		if n.dims == 2 {
			g.Z = 0
		}
		if !finite(g) || g.Length() == 0 {
			continue
		}
		if !f.Push(g) {
			n.Manifold = false
		}
		n.q.add(p, g.Normalize())
	}
	n.Vertex, n.Rank, _ = n.q.solve(n.center())
}

// searchEdge bisects the segment from a filled point to an empty one.
func searchEdge(e *eval.Evaluator, in, out v3.Vec) v3.Vec {
	for i := 0; i < searchCount; i++ {
		mid := in.Add(out).MulScalar(0.5)
		if e.Eval(mid.X, mid.Y, mid.Z) < 0 {
			in = mid
		} else {
			out = mid
		}
	}
	return in.Add(out).MulScalar(0.5)
}

func (n *Node) center() v3.Vec {
	return n.Pos(0).Add(n.Pos(1<<n.dims - 1)).MulScalar(0.5)
}

func finite(v v3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

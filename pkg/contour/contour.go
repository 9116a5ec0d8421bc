// Package contour extracts boundaries from adaptive spatial trees with dual
// contouring: one vertex per ambiguous leaf, joined across every
// sign-changing edge shared by neighbouring leaves.
//
// In 2D the result is a set of polylines; in 3D an indexed triangle mesh.
// Both walks mirror the tree: a cell pass recurses into children and then
// visits the faces and edges between them, so cells of different sizes
// are joined without cracks.
package contour

import (
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/tree"
	"github.com/chazu/frep/pkg/xtree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.contour")
}

// Contours is the 2D boundary of a shape. Every loop in Loops is closed and
// repeats its first point at the end; loops wind counter-clockwise around
// filled areas and clockwise around holes. Chains that could not be closed,
// typically where the shape leaves the region, are kept in Open.
type Contours struct {
	Loops [][]v2.Vec
	Open  [][]v2.Vec
}

// Render builds a quadtree of t over the planar region r and contours it.
func Render(t tree.Tree, r region.Region) (*Contours, error) {
	root, err := xtree.Build(eval.NewPool(t, eval.DefaultPoolSize), r, 2, nil)
	if err != nil {
		return nil, err
	}
	return FromXTree(root), nil
}

// FromXTree contours a prebuilt quadtree.
func FromXTree(root *xtree.Node) *Contours {
	if root.Dims() != 2 {
		panic("contour: FromXTree needs a quadtree")
	}
	var w walker2
	w.cell(root)
	c := stitch(w.segments)
	tracer().Debugf("contour: %d segments, %d loops, %d open chains", len(w.segments), len(c.Loops), len(c.Open))
	return c
}

type segment struct{ a, b v2.Vec }

type walker2 struct {
	segments []segment
}

func (w *walker2) cell(c *xtree.Node) {
	if c.Type != xtree.Branch {
		return
	}
	for i := 0; i < 4; i++ {
		w.cell(c.Child(i))
	}
	const x, y = region.AxisX, region.AxisY
	w.edge(c.Child(0), c.Child(x), x)
	w.edge(c.Child(y), c.Child(x|y), x)
	w.edge(c.Child(0), c.Child(y), y)
	w.edge(c.Child(x), c.Child(x|y), y)
}

// edge joins a and b, which touch across a boundary perpendicular to axis
// with a on the lower side.
func (w *walker2) edge(a, b *xtree.Node, axis int) {
	if a.Type == xtree.Leaf && b.Type == xtree.Leaf {
		// The smaller cell owns the finest piece of the shared boundary;
		// its two corners on that boundary decide crossing and winding.
		var crossed, filled bool
		if a.Level < b.Level {
			crossed = a.Corner(axis) != a.Corner(3)
			filled = a.Corner(axis)
		} else {
			crossed = b.Corner(0) != b.Corner(3^axis)
			filled = b.Corner(0)
		}
		if !crossed {
			return
		}
		if filled != (axis == region.AxisX) {
			w.add(a, b)
		} else {
			w.add(b, a)
		}
		return
	}
	if a.Type == xtree.Branch || b.Type == xtree.Branch {
		w.edge(a.Child(axis), b.Child(0), axis)
		w.edge(a.Child(3), b.Child(3^axis), axis)
	}
}

func (w *walker2) add(a, b *xtree.Node) {
	w.segments = append(w.segments, segment{
		a: v2.Vec{X: a.Vertex.X, Y: a.Vertex.Y},
		b: v2.Vec{X: b.Vertex.X, Y: b.Vertex.Y},
	})
}

func less(a, b v2.Vec) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// stitch joins oriented segments end to start. Walks begin at chain heads
// (points with no incoming segment) before anything else and otherwise at
// the smallest remaining start point, so the output depends only on the
// set of segments.
func stitch(segs []segment) *Contours {
	next := map[v2.Vec][]v2.Vec{}
	incoming := map[v2.Vec]int{}
	for _, s := range segs {
		if s.a == s.b {
			continue
		}
		next[s.a] = append(next[s.a], s.b)
		incoming[s.b]++
	}
	starts := make([]v2.Vec, 0, len(next))
	for p, ends := range next {
		starts = append(starts, p)
		sort.Slice(ends, func(i, j int) bool { return less(ends[i], ends[j]) })
	}
	sort.Slice(starts, func(i, j int) bool { return less(starts[i], starts[j]) })

	pick := func() (v2.Vec, bool) {
		first, found := v2.Vec{}, false
		for _, p := range starts {
			if len(next[p]) == 0 {
				continue
			}
			if incoming[p] == 0 {
				return p, true
			}
			if !found {
				first, found = p, true
			}
		}
		return first, found
	}

	c := &Contours{}
	for {
		start, ok := pick()
		if !ok {
			break
		}
		line := []v2.Vec{start}
		for cur := start; ; {
			ends := next[cur]
			if len(ends) == 0 {
				break
			}
			to := ends[0]
			next[cur] = ends[1:]
			incoming[to]--
			line = append(line, to)
			if to == start {
				break
			}
			cur = to
		}
		if len(line) > 2 && line[len(line)-1] == start {
			c.Loops = append(c.Loops, line)
		} else {
			c.Open = append(c.Open, line)
		}
	}
	return c
}

// Package xtree builds adaptive quadtrees and octrees over an implicit
// surface.
//
// Cells whose interval bound is strictly positive or strictly negative are
// marked Empty or Full and never subdivided. Ambiguous cells are split until
// they reach single voxels, which become leaves holding a vertex placed by
// minimising a quadratic error function over the surface crossings on the
// cell's edges. Branches whose leaves describe the same topology as the
// coarse cell are merged back into one leaf when the merged vertex fits
// well enough.
package xtree

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/region"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.xtree")
}

// ErrAborted is returned by Build when the abort flag was raised during
// construction. The partial tree is discarded.
var ErrAborted = errors.New("xtree: build aborted")

// Type tags a node.
type Type int

const (
	Empty Type = iota
	Full
	Branch
	Leaf
)

func (t Type) String() string {
	switch t {
	case Empty:
		return "empty"
	case Full:
		return "full"
	case Branch:
		return "branch"
	case Leaf:
		return "leaf"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Node is one cell of the tree. Children and corners are indexed by axis
// bits: bit region.AxisX set means the upper half (or upper corner) along X.
type Node struct {
	X, Y, Z interval.Interval

	Type Type
	// Level is 0 for cells built at voxel size and one more than the
	// deepest child for branches and collapsed leaves.
	Level int
	// Vertex is the feature vertex of a leaf.
	Vertex v3.Vec
	// Rank is the number of independent normals behind Vertex: 1 for a
	// face, 2 for an edge, 3 for a corner.
	Rank int
	// Manifold is false when the leaf's corners or normals describe more
	// than one surface sheet.
	Manifold bool

	dims     int
	corners  uint8
	children []*Node
	q        qef
}

// Dims returns 2 for quadtree nodes and 3 for octree nodes.
func (n *Node) Dims() int { return n.dims }

// Child returns child i of a branch. Any other node returns itself, which
// lets traversals treat a coarse cell as covering all of its sub-cells.
func (n *Node) Child(i int) *Node {
	if n.Type == Branch {
		return n.children[i]
	}
	return n
}

// Corner reports whether corner i lies inside the shape.
func (n *Node) Corner(i int) bool { return n.corners&(1<<i) != 0 }

// Corners returns the corner bit mask.
func (n *Node) Corners() uint8 { return n.corners }

// Pos returns the position of corner i.
func (n *Node) Pos(i int) v3.Vec {
	p := v3.Vec{X: n.X.Lo, Y: n.Y.Lo, Z: n.Z.Lo}
	if i&region.AxisX != 0 {
		p.X = n.X.Hi
	}
	if i&region.AxisY != 0 {
		p.Y = n.Y.Hi
	}
	if i&region.AxisZ != 0 {
		p.Z = n.Z.Hi
	}
	return p
}

// Count returns the number of nodes of type t in the subtree.
func (n *Node) Count(t Type) int {
	c := 0
	if n.Type == t {
		c++
	}
	for _, ch := range n.children {
		c += ch.Count(t)
	}
	return c
}

// Build renders a tree of dims (2 or 3) dimensions over r. The region is
// padded to a power-of-two size first. When the pool holds an evaluator
// per root child, the root's children are built concurrently. abort may be
// nil; otherwise it is polled at every node.
func Build(pool *eval.Pool, r region.Region, dims int, abort *atomic.Bool) (*Node, error) {
	r = r.PowerOfTwo(dims)
	b := &builder{dims: dims, abort: abort}
	view := r.View()

	var root *Node
	if pool.Size() >= 1<<dims && view.CanSplitEven(dims) {
		root = b.buildParallel(pool, view)
	} else {
		root = b.build(pool.Get(0), view)
	}
	if b.aborted() {
		return nil, ErrAborted
	}
	tracer().Debugf("xtree: %dD build over %d voxels, %d leaves", dims, r.Voxels(), root.Count(Leaf))
	return root, nil
}

type builder struct {
	dims  int
	abort *atomic.Bool
}

// visit, when set, is called for every node the builder enters.
var visit func()

func (b *builder) aborted() bool {
	return b.abort != nil && b.abort.Load()
}

func (b *builder) newNode(s region.Subregion) *Node {
	return &Node{X: s.X.Bounds, Y: s.Y.Bounds, Z: s.Z.Bounds, dims: b.dims}
}

// classify sets Empty or Full from an interval bound and reports whether
// the cell was decided.
func (n *Node) classify(iv interval.Interval) bool {
	switch {
	case iv.Lo > 0:
		n.Type = Empty
	case iv.Hi < 0:
		n.Type = Full
		n.corners = 1<<(1<<n.dims) - 1
	default:
		return false
	}
	return true
}

func (b *builder) build(e *eval.Evaluator, s region.Subregion) *Node {
	n := b.newNode(s)
	if b.aborted() {
		return n
	}
	if visit != nil {
		visit()
	}
	if n.classify(e.EvalInterval(n.X, n.Y, n.Z)) {
		return n
	}
	if !s.CanSplitEven(b.dims) {
		n.leaf(e)
		return n
	}

	e.Push()
	subs := s.SplitEven(b.dims)
	n.children = make([]*Node, len(subs))
	for i, sub := range subs {
		n.children[i] = b.build(e, sub)
	}
	e.Pop()
	n.Type = Branch
	n.collapse()
	return n
}

func (b *builder) buildParallel(pool *eval.Pool, s region.Subregion) *Node {
	n := b.newNode(s)
	if n.classify(pool.Get(0).EvalInterval(n.X, n.Y, n.Z)) {
		return n
	}
	subs := s.SplitEven(b.dims)
	n.children = make([]*Node, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub region.Subregion) {
			defer wg.Done()
			n.children[i] = b.build(pool.Get(i), sub)
		}(i, sub)
	}
	wg.Wait()
	n.Type = Branch
	n.collapse()
	return n
}

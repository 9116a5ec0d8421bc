package contour

import (
	"github.com/chazu/frep/pkg/eval"
	"github.com/chazu/frep/pkg/kernel"
	"github.com/chazu/frep/pkg/region"
	"github.com/chazu/frep/pkg/tree"
	"github.com/chazu/frep/pkg/xtree"
)

var axes = [3]int{region.AxisX, region.AxisY, region.AxisZ}

// around returns the two axes following a in cyclic X, Y, Z order, so
// that a, q, r form a right-handed frame.
func around(a int) (q, r int) {
	switch a {
	case region.AxisX:
		return region.AxisY, region.AxisZ
	case region.AxisY:
		return region.AxisZ, region.AxisX
	}
	return region.AxisX, region.AxisY
}

// RenderMesh builds an octree of t over r and meshes it.
func RenderMesh(t tree.Tree, r region.Region) (*kernel.Mesh, error) {
	pool := eval.NewPool(t, eval.DefaultPoolSize)
	root, err := xtree.Build(pool, r, 3, nil)
	if err != nil {
		return nil, err
	}
	return MeshFromXTree(root, pool.Get(0)), nil
}

// MeshFromXTree meshes a prebuilt octree. e supplies vertex normals and
// must evaluate the tree the octree was built from.
func MeshFromXTree(root *xtree.Node, e *eval.Evaluator) *kernel.Mesh {
	if root.Dims() != 3 {
		panic("contour: MeshFromXTree needs an octree")
	}
	w := walker3{e: e, mesh: &kernel.Mesh{}, index: map[*xtree.Node]uint32{}}
	w.cell(root)
	tracer().Debugf("contour: mesh with %d vertices, %d triangles", w.mesh.VertexCount(), w.mesh.TriangleCount())
	return w.mesh
}

type walker3 struct {
	e     *eval.Evaluator
	mesh  *kernel.Mesh
	index map[*xtree.Node]uint32
}

func (w *walker3) cell(c *xtree.Node) {
	if c.Type != xtree.Branch {
		return
	}
	for i := 0; i < 8; i++ {
		w.cell(c.Child(i))
	}
	for _, a := range axes {
		for i := 0; i < 8; i++ {
			if i&a == 0 {
				w.face(c.Child(i), c.Child(i|a), a)
			}
		}
	}
	for _, a := range axes {
		q, r := around(a)
		for _, t := range [2]int{0, a} {
			var cells [4]*xtree.Node
			for k := range cells {
				cells[k] = c.Child(t | pick(k&1 != 0, q) | pick(k&2 != 0, r))
			}
			w.edge(cells, a)
		}
	}
}

func pick(set bool, bit int) int {
	if set {
		return bit
	}
	return 0
}

// face visits the boundary between a and b, which touch across a plane
// perpendicular to axis a with cell lo on the lower side.
func (w *walker3) face(lo, hi *xtree.Node, a int) {
	if lo.Type != xtree.Branch && hi.Type != xtree.Branch {
		return
	}
	for i := 0; i < 8; i++ {
		if i&a == 0 {
			w.face(lo.Child(i|a), hi.Child(i), a)
		}
	}
	// Edges inside the face run along the two axes other than a.
	for _, e := range axes {
		if e == a {
			continue
		}
		q, r := around(e)
		o := q ^ r ^ a
		for _, t := range [2]int{0, e} {
			var cells [4]*xtree.Node
			for k := range cells {
				upper := func(bit int) bool {
					if bit == q {
						return k&1 != 0
					}
					return k&2 != 0
				}
				parent := lo
				if upper(a) {
					parent = hi
				}
				cells[k] = parent.Child(t | pick(!upper(a), a) | pick(upper(o), o))
			}
			w.edge(cells, e)
		}
	}
}

// edge visits the four cells around an edge along axis a. Cell k sits on
// the upper side of the edge along q when bit 0 of k is set and along r
// when bit 1 is set.
func (w *walker3) edge(cells [4]*xtree.Node, a int) {
	q, r := around(a)
	leaves, branch := true, false
	for _, c := range cells {
		leaves = leaves && c.Type == xtree.Leaf
		branch = branch || c.Type == xtree.Branch
	}

	if branch {
		for _, t := range [2]int{0, a} {
			var sub [4]*xtree.Node
			for k, c := range cells {
				sub[k] = c.Child(t | pick(k&1 == 0, q) | pick(k&2 == 0, r))
			}
			w.edge(sub, a)
		}
		return
	}
	if !leaves {
		return
	}

	// The smallest cell holds the finest copy of the edge.
	k := 0
	for i, c := range cells {
		if c.Level < cells[k].Level {
			k = i
		}
	}
	base := pick(k&1 == 0, q) | pick(k&2 == 0, r)
	lower, upper := cells[k].Corner(base), cells[k].Corner(base|a)
	if lower == upper {
		return
	}

	// Walking 0, 1, 3, 2 circles the edge counter-clockwise seen from +a,
	// which points the quad along +a: out of the solid when the lower end
	// is filled.
	order := [4]int{0, 1, 3, 2}
	if !lower {
		order = [4]int{2, 3, 1, 0}
	}
	var v [4]uint32
	for i, o := range order {
		v[i] = w.vertex(cells[o])
	}
	w.triangle(v[0], v[1], v[2])
	w.triangle(v[0], v[2], v[3])
}

func (w *walker3) vertex(n *xtree.Node) uint32 {
	if i, ok := w.index[n]; ok {
		return i
	}
	p := n.Vertex
	_, g := w.e.Deriv(p.X, p.Y, p.Z)
	if l := g.Length(); l > 0 {
		g = g.MulScalar(1 / l)
	}
	i := w.mesh.AddVertex(p, g)
	w.index[n] = i
	return i
}

func (w *walker3) triangle(a, b, c uint32) {
	if a == b || b == c || a == c {
		return
	}
	w.mesh.AddTriangle(a, b, c)
}

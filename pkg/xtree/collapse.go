package xtree

// CollapseError is the largest merged QEF residual for which a branch of
// leaves is replaced by a single leaf.
const CollapseError = 1e-8

var (
	cellEdges    = [4][][2]int{2: edgesOf(2), 3: edgesOf(3)}
	cornerTables = [4][]bool{2: cornerTable(2), 3: cornerTable(3)}
)

// edgesOf lists the cell edges of a dims-dimensional cell as corner pairs.
func edgesOf(dims int) [][2]int {
	var out [][2]int
	for a := 1; a < 1<<dims; a <<= 1 {
		for i := 0; i < 1<<dims; i++ {
			if i&a == 0 {
				out = append(out, [2]int{i, i | a})
			}
		}
	}
	return out
}

// cornerTable marks every corner configuration whose filled corners form
// one edge-connected group and whose empty corners form another, which is
// the condition for a single vertex to represent the cell.
func cornerTable(dims int) []bool {
	n := 1 << dims
	out := make([]bool, 1<<n)
	for mask := range out {
		parent := make([]int, n)
		for i := range parent {
			parent[i] = i
		}
		var find func(int) int
		find = func(i int) int {
			if parent[i] != i {
				parent[i] = find(parent[i])
			}
			return parent[i]
		}
		filled := func(i int) bool { return mask&(1<<i) != 0 }

		for _, e := range cellEdges[dims] {
			if filled(e[0]) == filled(e[1]) {
				parent[find(e[0])] = find(e[1])
			}
		}
		crossings := map[[2]int]bool{}
		for _, e := range cellEdges[dims] {
			if filled(e[0]) != filled(e[1]) {
				a, b := find(e[0]), find(e[1])
				if a > b {
					a, b = b, a
				}
				crossings[[2]int{a, b}] = true
			}
		}
		out[mask] = len(crossings) <= 1
	}
	return out
}

func cornerSafe(dims int, corners uint8) bool {
	return cornerTables[dims][corners]
}

// leafTopology checks that the signs sampled by the children at the
// midpoints of the cell's edges and faces, and at its centre, each agree
// with at least one coarse corner of that edge, face or cell.
func (n *Node) leafTopology() bool {
	points := 1
	for i := 0; i < n.dims; i++ {
		points *= 3
	}
	for p := 0; p < points; p++ {
		mid, hi := 0, 0
		for a, t := 0, p; a < n.dims; a, t = a+1, t/3 {
			switch t % 3 {
			case 1:
				mid |= 1 << a
			case 2:
				hi |= 1 << a
			}
		}
		if mid == 0 {
			continue
		}
		s := n.children[hi].Corner(mid | hi)
		ok := false
		for sub := mid; ; sub = (sub - 1) & mid {
			if n.Corner(hi|sub) == s {
				ok = true
				break
			}
			if sub == 0 {
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// collapse finishes a branch once its children are built: uniform
// children merge into Empty or Full, and a branch of manifold leaves is
// merged into one leaf when that keeps the topology and the fit.
func (n *Node) collapse() {
	empty, full := true, true
	for i, c := range n.children {
		if c.Corner(i) {
			n.corners |= 1 << i
		}
		n.Level = max(n.Level, c.Level+1)
		empty = empty && c.Type == Empty
		full = full && c.Type == Full
	}
	switch {
	case empty:
		n.Type, n.children = Empty, nil
		return
	case full:
		n.Type, n.children = Full, nil
		return
	}

	leaves, rank := 0, 0
	for _, c := range n.children {
		switch c.Type {
		case Branch:
			return
		case Leaf:
			if !c.Manifold {
				return
			}
			leaves++
			rank = max(rank, c.Rank)
		}
	}
	if leaves == 0 || !cornerSafe(n.dims, n.corners) || !n.leafTopology() {
		return
	}

	var q qef
	for _, c := range n.children {
		if c.Type == Leaf {
			q.merge(c.q, c.Rank == rank)
		}
	}
	v, r, err := q.solve(n.center())
	if err > CollapseError {
		return
	}
	n.Type = Leaf
	n.Vertex, n.Rank, n.Manifold = v, r, true
	n.q = q
	n.children = nil
}

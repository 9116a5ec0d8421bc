// Package eval evaluates expression trees over points, batches of points and
// boxes.
//
// An Evaluator flattens a tree into a tape of clauses once and then runs the
// tape against its own scratch buffers, so a single Evaluator must only be
// used by one goroutine at a time. Pool keeps several independent copies for
// parallel work over the same tree.
package eval

import (
	"math"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/npillmayer/schuko/tracing"

	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/tree"
)

func tracer() tracing.Trace {
	return tracing.Select("frep.eval")
}

// BatchSize is the number of points evaluated by one Values or Derivs call.
const BatchSize = 256

// clause is one instruction of the tape.
type clause struct {
	op   tree.Opcode
	out  int
	a, b int // argument slots, -1 when unused
	coef [4]float64
}

// Evaluator runs a flattened tree.
type Evaluator struct {
	root    int
	x, y, z int

	prelude []clause   // location-agnostic clauses, rerun when variables change
	tapes   [][]clause // tapes[0] is the full tape; later entries are pruned copies

	f          [][]float64 // values per slot
	dx, dy, dz [][]float64 // spatial derivatives per slot
	iv         []interval.Interval

	vars     map[tree.ID]int // variable identity -> slot
	varOrder []tree.ID
	deps     map[int][]int // variable slot -> prelude clause indices
	dirty    map[int]bool  // variable slots rebound since the last refresh

	m     Matrix
	ident bool

	// output buffers for Derivs after the transform is undone
	ox, oy, oz []float64
}

// New flattens t into an Evaluator.
func New(t tree.Tree) *Evaluator {
	nodes := t.Store().Flatten(t.ID())
	slots := make(map[tree.ID]int, len(nodes))
	for i, n := range nodes {
		slots[n.ID] = i
	}

	e := &Evaluator{
		root:  slots[t.ID()],
		x:     -1,
		y:     -1,
		z:     -1,
		f:     make([][]float64, len(nodes)),
		dx:    make([][]float64, len(nodes)),
		dy:    make([][]float64, len(nodes)),
		dz:    make([][]float64, len(nodes)),
		iv:    make([]interval.Interval, len(nodes)),
		vars:  make(map[tree.ID]int),
		deps:  make(map[int][]int),
		dirty: make(map[int]bool),
		m:     Identity(),
		ident: true,
		ox:    make([]float64, BatchSize),
		oy:    make([]float64, BatchSize),
		oz:    make([]float64, BatchSize),
	}
	for i := range nodes {
		e.f[i] = make([]float64, BatchSize)
		e.dx[i] = make([]float64, BatchSize)
		e.dy[i] = make([]float64, BatchSize)
		e.dz[i] = make([]float64, BatchSize)
	}

	// varsOf tracks which variable slots each prelude clause depends on.
	varsOf := make(map[int][]int)
	var main []clause
	for i, n := range nodes {
		switch n.Op {
		case tree.OpVarX:
			e.x = i
			fill(e.dx[i], 1)
		case tree.OpVarY:
			e.y = i
			fill(e.dy[i], 1)
		case tree.OpVarZ:
			e.z = i
			fill(e.dz[i], 1)
		case tree.OpConst:
			e.setConst(i, n.Value)
		case tree.OpVar:
			e.vars[n.ID] = i
			e.varOrder = append(e.varOrder, n.ID)
			e.setConst(i, n.Value)
			varsOf[i] = []int{i}
		default:
			c := clause{op: n.Op, out: i, a: -1, b: -1, coef: n.Coef}
			if n.LHS != tree.NoID {
				c.a = slots[n.LHS]
			}
			if n.RHS != tree.NoID {
				c.b = slots[n.RHS]
			}
			if n.Flags&tree.LocationAgnostic != 0 {
				idx := len(e.prelude)
				e.prelude = append(e.prelude, c)
				vs := mergeSlots(varsOf[c.a], varsOf[c.b])
				varsOf[i] = vs
				for _, v := range vs {
					e.deps[v] = append(e.deps[v], idx)
				}
			} else {
				main = append(main, c)
			}
		}
	}
	// Coordinates that the tree never reads still need somewhere to live.
	e.x, e.y, e.z = e.ensureSlot(e.x, 0), e.ensureSlot(e.y, 1), e.ensureSlot(e.z, 2)
	e.tapes = [][]clause{main}
	sort.Slice(e.varOrder, func(i, j int) bool { return e.varOrder[i] < e.varOrder[j] })

	for _, c := range e.prelude {
		e.runPrelude(c)
	}
	tracer().Debugf("evaluator: %d slots, %d clauses, %d prelude, %d vars",
		len(nodes), len(main), len(e.prelude), len(e.vars))
	return e
}

func mergeSlots(a, b []int) []int {
	out := append([]int(nil), a...)
	for _, v := range b {
		found := false
		for _, w := range out {
			found = found || w == v
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

func (e *Evaluator) ensureSlot(slot, axis int) int {
	if slot >= 0 {
		return slot
	}
	slot = len(e.f)
	e.f = append(e.f, make([]float64, BatchSize))
	d := [3][]float64{make([]float64, BatchSize), make([]float64, BatchSize), make([]float64, BatchSize)}
	fill(d[axis], 1)
	e.dx, e.dy, e.dz = append(e.dx, d[0]), append(e.dy, d[1]), append(e.dz, d[2])
	e.iv = append(e.iv, interval.Interval{})
	return slot
}

func fill(s []float64, v float64) {
	for i := range s {
		s[i] = v
	}
}

func (e *Evaluator) setConst(slot int, v float64) {
	fill(e.f[slot], v)
	e.iv[slot] = interval.Point(v)
}

func (e *Evaluator) arg(slot int) float64 {
	if slot < 0 {
		return 0
	}
	return e.f[slot][0]
}

func (e *Evaluator) runPrelude(c clause) {
	e.setConst(c.out, tree.Apply(c.op, e.arg(c.a), e.arg(c.b)))
}

// refresh reruns the prelude clauses that depend on rebound variables.
func (e *Evaluator) refresh() {
	if len(e.dirty) == 0 {
		return
	}
	var todo []int
	seen := make(map[int]bool)
	for v := range e.dirty {
		for _, idx := range e.deps[v] {
			if !seen[idx] {
				seen[idx] = true
				todo = append(todo, idx)
			}
		}
	}
	sort.Ints(todo)
	for _, idx := range todo {
		e.runPrelude(e.prelude[idx])
	}
	clear(e.dirty)
}

// Clone returns an independent copy sharing the immutable tape. The copy
// starts with no pruning applied.
func (e *Evaluator) Clone() *Evaluator {
	c := *e
	c.tapes = [][]clause{e.tapes[0]}
	c.f = cloneRows(e.f)
	c.dx, c.dy, c.dz = cloneRows(e.dx), cloneRows(e.dy), cloneRows(e.dz)
	c.iv = append([]interval.Interval(nil), e.iv...)
	c.vars = make(map[tree.ID]int, len(e.vars))
	for k, v := range e.vars {
		c.vars[k] = v
	}
	c.dirty = make(map[int]bool)
	for k := range e.dirty {
		c.dirty[k] = true
	}
	c.ox, c.oy, c.oz = make([]float64, BatchSize), make([]float64, BatchSize), make([]float64, BatchSize)
	return &c
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// --- Transform --------------------------------------------------------------

// SetMatrix sets the transform applied to every input point.
func (e *Evaluator) SetMatrix(m Matrix) {
	e.m = m
	e.ident = m.IsIdentity()
}

// Matrix returns the current input transform.
func (e *Evaluator) Matrix() Matrix { return e.m }

// --- Variables --------------------------------------------------------------

// SetVar rebinds a variable. It reports false when the tree has no such
// variable.
func (e *Evaluator) SetVar(id tree.ID, v float64) bool {
	slot, ok := e.vars[id]
	if !ok {
		return false
	}
	if e.f[slot][0] != v {
		e.setConst(slot, v)
		e.dirty[slot] = true
	}
	return true
}

// UpdateVars rebinds every known variable in vars and reports whether any
// value changed.
func (e *Evaluator) UpdateVars(vars map[tree.ID]float64) bool {
	changed := false
	for id, v := range vars {
		if slot, ok := e.vars[id]; ok && e.f[slot][0] != v {
			e.SetVar(id, v)
			changed = true
		}
	}
	return changed
}

// Vars returns the current binding of every variable.
func (e *Evaluator) Vars() map[tree.ID]float64 {
	out := make(map[tree.ID]float64, len(e.vars))
	for id, slot := range e.vars {
		out[id] = e.f[slot][0]
	}
	return out
}

// --- Point and batch evaluation ----------------------------------------------

// Set stores point i of the next batch, applying the transform.
func (e *Evaluator) Set(x, y, z float64, i int) {
	if !e.ident {
		p := e.m.Apply(v3.Vec{X: x, Y: y, Z: z})
		x, y, z = p.X, p.Y, p.Z
	}
	e.SetRaw(x, y, z, i)
}

// SetRaw stores point i without applying the transform.
func (e *Evaluator) SetRaw(x, y, z float64, i int) {
	e.f[e.x][i], e.f[e.y][i], e.f[e.z][i] = x, y, z
}

// Eval returns the value at a single point.
func (e *Evaluator) Eval(x, y, z float64) float64 {
	e.Set(x, y, z, 0)
	return e.Values(1)[0]
}

// Values evaluates the first count points set with Set. The returned slice
// is owned by the Evaluator and overwritten by the next call.
func (e *Evaluator) Values(count int) []float64 {
	e.refresh()
	for _, c := range e.tape() {
		e.valueClause(c, count)
	}
	return e.f[e.root][:count]
}

func (e *Evaluator) tape() []clause { return e.tapes[len(e.tapes)-1] }

func (e *Evaluator) valueClause(c clause, count int) {
	out := e.f[c.out][:count]
	if c.op == tree.OpAffine {
		xs, ys, zs := e.f[e.x], e.f[e.y], e.f[e.z]
		for i := range out {
			out[i] = c.coef[0]*xs[i] + c.coef[1]*ys[i] + c.coef[2]*zs[i] + c.coef[3]
		}
		return
	}
	a := e.f[c.a]
	var b []float64
	if c.b >= 0 {
		b = e.f[c.b]
	}
	switch c.op {
	case tree.OpAdd:
		for i := range out {
			out[i] = a[i] + b[i]
		}
	case tree.OpSub:
		for i := range out {
			out[i] = a[i] - b[i]
		}
	case tree.OpMul:
		for i := range out {
			out[i] = a[i] * b[i]
		}
	case tree.OpMin:
		for i := range out {
			out[i] = math.Min(a[i], b[i])
		}
	case tree.OpMax:
		for i := range out {
			out[i] = math.Max(a[i], b[i])
		}
	case tree.OpSquare:
		for i := range out {
			out[i] = a[i] * a[i]
		}
	case tree.OpDummyA:
		copy(out, a[:count])
	case tree.OpDummyB:
		copy(out, b[:count])
	default:
		if b == nil {
			for i := range out {
				out[i] = tree.Apply(c.op, a[i], 0)
			}
		} else {
			for i := range out {
				out[i] = tree.Apply(c.op, a[i], b[i])
			}
		}
	}
}

// partials returns d(out)/d(a) and d(out)/d(b) for one element.
func partials(op tree.Opcode, a, b, v float64) (float64, float64) {
	switch op {
	case tree.OpAdd:
		return 1, 1
	case tree.OpSub:
		return 1, -1
	case tree.OpMul:
		return b, a
	case tree.OpDiv:
		return 1 / b, -a / (b * b)
	case tree.OpMin:
		if a < b {
			return 1, 0
		}
		return 0, 1
	case tree.OpMax:
		if a > b {
			return 1, 0
		}
		return 0, 1
	case tree.OpAtan2:
		d := a*a + b*b
		return b / d, -a / d
	case tree.OpPow:
		return b * math.Pow(a, b-1), 0
	case tree.OpNthRoot:
		return v / (b * a), 0
	case tree.OpMod:
		return 1, 0
	case tree.OpNanFill:
		if math.IsNaN(a) {
			return 0, 1
		}
		return 1, 0
	case tree.OpDummyA:
		return 1, 0
	case tree.OpDummyB:
		return 0, 1
	case tree.OpSquare:
		return 2 * a, 0
	case tree.OpSqrt:
		if v > 0 {
			return 0.5 / v, 0
		}
		return 0, 0
	case tree.OpNeg:
		return -1, 0
	case tree.OpAbs:
		if a < 0 {
			return -1, 0
		}
		return 1, 0
	case tree.OpSin:
		return math.Cos(a), 0
	case tree.OpCos:
		return -math.Sin(a), 0
	case tree.OpTan:
		c := math.Cos(a)
		return 1 / (c * c), 0
	case tree.OpAsin:
		return 1 / math.Sqrt(1-a*a), 0
	case tree.OpAcos:
		return -1 / math.Sqrt(1-a*a), 0
	case tree.OpAtan:
		return 1 / (1 + a*a), 0
	case tree.OpExp:
		return v, 0
	}
	panic("eval: no derivative for " + op.String())
}

// combine adds pa*da + pb*db, skipping terms with a zero partial so that a
// non-finite derivative on an unused branch does not leak through.
func combine(pa, da, pb, db float64) float64 {
	var out float64
	if pa != 0 {
		out += pa * da
	}
	if pb != 0 {
		out += pb * db
	}
	return out
}

// Derivs evaluates values and spatial gradients for the first count points.
// Gradients are expressed in the frame of the points passed to Set. The
// slices are owned by the Evaluator.
func (e *Evaluator) Derivs(count int) (v, dx, dy, dz []float64) {
	e.refresh()
	for _, c := range e.tape() {
		e.valueClause(c, count)
		out := c.out
		if c.op == tree.OpAffine {
			for i := 0; i < count; i++ {
				e.dx[out][i], e.dy[out][i], e.dz[out][i] = c.coef[0], c.coef[1], c.coef[2]
			}
			continue
		}
		for i := 0; i < count; i++ {
			var bv, bx, by, bz float64
			if c.b >= 0 {
				bv, bx, by, bz = e.f[c.b][i], e.dx[c.b][i], e.dy[c.b][i], e.dz[c.b][i]
			}
			pa, pb := partials(c.op, e.f[c.a][i], bv, e.f[out][i])
			e.dx[out][i] = combine(pa, e.dx[c.a][i], pb, bx)
			e.dy[out][i] = combine(pa, e.dy[c.a][i], pb, by)
			e.dz[out][i] = combine(pa, e.dz[c.a][i], pb, bz)
		}
	}

	r := e.root
	if e.ident {
		return e.f[r][:count], e.dx[r][:count], e.dy[r][:count], e.dz[r][:count]
	}
	for i := 0; i < count; i++ {
		g := e.m.ApplyTranspose(v3.Vec{X: e.dx[r][i], Y: e.dy[r][i], Z: e.dz[r][i]})
		e.ox[i], e.oy[i], e.oz[i] = g.X, g.Y, g.Z
	}
	return e.f[r][:count], e.ox[:count], e.oy[:count], e.oz[:count]
}

// Deriv returns the value and gradient at a single point.
func (e *Evaluator) Deriv(x, y, z float64) (float64, v3.Vec) {
	e.Set(x, y, z, 0)
	v, dx, dy, dz := e.Derivs(1)
	return v[0], v3.Vec{X: dx[0], Y: dy[0], Z: dz[0]}
}

// VarGradient returns the partial derivative of the value at a point with
// respect to every variable in the tree.
func (e *Evaluator) VarGradient(x, y, z float64) map[tree.ID]float64 {
	e.Set(x, y, z, 0)
	e.Values(1)

	n := len(e.varOrder)
	jac := make(map[int][]float64)
	for k, id := range e.varOrder {
		row := make([]float64, n)
		row[k] = 1
		jac[e.vars[id]] = row
	}
	zero := make([]float64, n)
	get := func(slot int) []float64 {
		if slot < 0 {
			return zero
		}
		if r, ok := jac[slot]; ok {
			return r
		}
		return zero
	}
	step := func(c clause) {
		if c.op == tree.OpAffine {
			return
		}
		var bv float64
		if c.b >= 0 {
			bv = e.f[c.b][0]
		}
		pa, pb := partials(c.op, e.f[c.a][0], bv, e.f[c.out][0])
		ja, jb := get(c.a), get(c.b)
		row := make([]float64, n)
		for k := range row {
			row[k] = combine(pa, ja[k], pb, jb[k])
		}
		jac[c.out] = row
	}
	for _, c := range e.prelude {
		step(c)
	}
	for _, c := range e.tape() {
		step(c)
	}

	out := make(map[tree.ID]float64, n)
	root := get(e.root)
	for k, id := range e.varOrder {
		out[id] = root[k]
	}
	return out
}

// --- Interval evaluation and pruning ------------------------------------------

// EvalInterval returns a range containing every value over the box.
func (e *Evaluator) EvalInterval(x, y, z interval.Interval) interval.Interval {
	if !e.ident {
		x, y, z = e.m.applyInterval(x, y, z)
	}
	e.refresh()
	e.iv[e.x], e.iv[e.y], e.iv[e.z] = x, y, z
	for _, c := range e.tape() {
		if c.op == tree.OpAffine {
			k := c.coef
			e.iv[c.out] = interval.Add(
				interval.Add(interval.Scale(x, k[0]), interval.Scale(y, k[1])),
				interval.Add(interval.Scale(z, k[2]), interval.Point(k[3])))
			continue
		}
		var b interval.Interval
		if c.b >= 0 {
			b = e.iv[c.b]
		}
		e.iv[c.out] = tree.ApplyInterval(c.op, e.iv[c.a], b)
	}
	return e.iv[e.root]
}

// Push prunes the tape using the most recent EvalInterval: a Min or Max
// whose argument ranges do not overlap keeps only the winning branch.
// Every Push must be matched by a Pop.
func (e *Evaluator) Push() {
	e.prune(func(op tree.Opcode, a, b int) tree.Opcode {
		ia, ib := e.iv[a], e.iv[b]
		switch {
		case op == tree.OpMin && ia.Hi < ib.Lo, op == tree.OpMax && ia.Lo > ib.Hi:
			return tree.OpDummyA
		case op == tree.OpMin && ib.Hi < ia.Lo, op == tree.OpMax && ib.Lo > ia.Hi:
			return tree.OpDummyB
		}
		return op
	})
}

// Specialize prunes the tape for the point most recently evaluated with
// Eval or Values. Ties keep both branches. Undo it with Pop.
func (e *Evaluator) Specialize() {
	e.prune(func(op tree.Opcode, a, b int) tree.Opcode {
		va, vb := e.f[a][0], e.f[b][0]
		switch {
		case op == tree.OpMin && va < vb, op == tree.OpMax && va > vb:
			return tree.OpDummyA
		case op == tree.OpMin && vb < va, op == tree.OpMax && vb > va:
			return tree.OpDummyB
		}
		return op
	})
}

func (e *Evaluator) prune(decide func(op tree.Opcode, a, b int) tree.Opcode) {
	cur := e.tape()
	active := make([]bool, len(e.f))
	active[e.root] = true
	keep := make([]clause, len(cur))
	n := 0
	for i := len(cur) - 1; i >= 0; i-- {
		c := cur[i]
		if !active[c.out] {
			continue
		}
		if c.op == tree.OpMin || c.op == tree.OpMax {
			c.op = decide(c.op, c.a, c.b)
		}
		switch c.op {
		case tree.OpDummyA:
			active[c.a] = true
		case tree.OpDummyB:
			active[c.b] = true
		default:
			if c.a >= 0 {
				active[c.a] = true
			}
			if c.b >= 0 {
				active[c.b] = true
			}
		}
		n++
		keep[len(cur)-n] = c
	}
	e.tapes = append(e.tapes, keep[len(cur)-n:])
}

// Pop undoes the most recent Push or Specialize.
func (e *Evaluator) Pop() {
	if len(e.tapes) == 1 {
		panic("eval: Pop without Push")
	}
	e.tapes = e.tapes[:len(e.tapes)-1]
}

// Utilization is the fraction of the full tape still active after pruning.
func (e *Evaluator) Utilization() float64 {
	if len(e.tapes[0]) == 0 {
		return 1
	}
	return float64(len(e.tape())) / float64(len(e.tapes[0]))
}

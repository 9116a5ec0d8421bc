// Package tree implements the expression graph of an implicit surface.
//
// Nodes live in an arena (Store) and are referred to by integer IDs, so
// structurally identical subexpressions are shared instead of duplicated.
// Constants are deduplicated by value, operations by (opcode, lhs, rhs), and
// a small set of algebraic simplifications (identities, affine folding,
// constant folding) runs as nodes are constructed. Variables are the one
// exception to deduplication: every OpVar node is a distinct identity whose
// value can be rebound later without rebuilding the graph.
package tree

import (
	"fmt"
	"math"
	"sync"
)

// ID is a handle to a node inside a Store. The zero ID is never a node.
type ID uint32

// NoID is the absent-child marker.
const NoID ID = 0

// Flags carry derived properties of a node.
type Flags uint8

const (
	// Collapsed marks subtrees that contain no OpAffine node.
	Collapsed Flags = 1 << iota
	// LocationAgnostic marks subtrees that depend only on constants and
	// variables, never on x, y or z.
	LocationAgnostic
)

// Node is a read-only copy of an arena entry.
type Node struct {
	ID    ID
	Op    Opcode
	LHS   ID
	RHS   ID
	Value float64    // OpConst and OpVar
	Coef  [4]float64 // OpAffine: a, b, c, d
	Rank  int
	Flags Flags
}

type opKey struct {
	op       Opcode
	lhs, rhs ID
}

// Store is a deduplicating node arena. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	nodes   []Node
	consts  map[uint64]ID
	ops     map[opKey]ID
	affines map[[4]float64]ID
	axes    [3]ID
}

// NewStore returns an empty arena with the three coordinate leaves
// preallocated.
func NewStore() *Store {
	s := &Store{
		nodes:   make([]Node, 1, 64),
		consts:  make(map[uint64]ID),
		ops:     make(map[opKey]ID),
		affines: make(map[[4]float64]ID),
	}
	for i, op := range []Opcode{OpVarX, OpVarY, OpVarZ} {
		s.axes[i] = s.appendLocked(Node{Op: op, Flags: Collapsed})
	}
	return s
}

func (s *Store) appendLocked(n Node) ID {
	n.ID = ID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	return n.ID
}

// Len returns the number of nodes in the arena.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes) - 1
}

// Node returns a copy of the node behind id.
func (s *Store) Node(id ID) Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeLocked(id)
}

func (s *Store) nodeLocked(id ID) Node {
	if id == NoID || int(id) >= len(s.nodes) {
		panic(fmt.Sprintf("tree: invalid node id %d", id))
	}
	return s.nodes[id]
}

func (s *Store) tree(id ID) Tree { return Tree{store: s, id: id} }

// X returns the x coordinate leaf.
func (s *Store) X() Tree { return s.tree(s.axes[0]) }

// Y returns the y coordinate leaf.
func (s *Store) Y() Tree { return s.tree(s.axes[1]) }

// Z returns the z coordinate leaf.
func (s *Store) Z() Tree { return s.tree(s.axes[2]) }

// Const returns the unique constant node for v. All NaNs share one node.
func (s *Store) Const(v float64) Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree(s.constLocked(v))
}

func (s *Store) constLocked(v float64) ID {
	if math.IsNaN(v) {
		v = math.NaN()
	}
	v += 0 // -0 and +0 share a node
	key := math.Float64bits(v)
	if id, ok := s.consts[key]; ok {
		return id
	}
	id := s.appendLocked(Node{Op: OpConst, Value: v, Flags: Collapsed | LocationAgnostic})
	s.consts[key] = id
	return id
}

// Var returns a new variable node with initial value v. Variables are
// never shared: each call yields a distinct identity.
func (s *Store) Var(v float64) Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree(s.appendLocked(Node{Op: OpVar, Value: v, Flags: Collapsed | LocationAgnostic}))
}

// SetValue changes the stored value of a variable node. Evaluators built
// earlier keep their own bindings; see eval.Evaluator.SetVar.
func (s *Store) SetValue(v Tree, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.store != s || s.nodeLocked(v.id).Op != OpVar {
		panic("tree: SetValue on a non-variable node")
	}
	s.nodes[v.id].Value = value
}

// Affine returns the node a*x + b*y + c*z + d. Degenerate combinations
// reduce to a constant or a bare coordinate.
func (s *Store) Affine(a, b, c, d float64) Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree(s.affineLocked([4]float64{a, b, c, d}))
}

func (s *Store) affineLocked(k [4]float64) ID {
	for i := range k {
		k[i] += 0
	}
	switch k {
	case [4]float64{0, 0, 0, k[3]}:
		return s.constLocked(k[3])
	case [4]float64{1, 0, 0, 0}:
		return s.axes[0]
	case [4]float64{0, 1, 0, 0}:
		return s.axes[1]
	case [4]float64{0, 0, 1, 0}:
		return s.axes[2]
	}
	if id, ok := s.affines[k]; ok {
		return id
	}
	id := s.appendLocked(Node{Op: OpAffine, Coef: k, Rank: 1})
	s.affines[k] = id
	return id
}

// affineOf reports the coefficients of nodes that can take part in affine
// folding: OpAffine nodes, coordinate leaves and constants.
func (s *Store) affineOf(n Node) ([4]float64, bool) {
	switch n.Op {
	case OpAffine:
		return n.Coef, true
	case OpVarX:
		return [4]float64{1, 0, 0, 0}, true
	case OpVarY:
		return [4]float64{0, 1, 0, 0}, true
	case OpVarZ:
		return [4]float64{0, 0, 1, 0}, true
	case OpConst:
		return [4]float64{0, 0, 0, n.Value}, true
	}
	return [4]float64{}, false
}

// Op returns the node for op applied to a and b. For unary opcodes b must be
// the zero Tree. Construction simplifies where it can; see the package doc.
func (s *Store) Op(op Opcode, a, b Tree) Tree {
	switch op.Args() {
	case 1:
		if a.store != s || b.store != nil {
			panic(fmt.Sprintf("tree: %s takes one argument from this store", op))
		}
	case 2:
		if a.store != s || b.store != s {
			panic(fmt.Sprintf("tree: %s takes two arguments from this store", op))
		}
	default:
		panic(fmt.Sprintf("tree: %s is not an operation", op))
	}
	if op == OpDummyA || op == OpDummyB {
		panic("tree: dummy opcodes are reserved for evaluator tapes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree(s.opLocked(op, a.id, b.id))
}

func (s *Store) opLocked(op Opcode, a, b ID) ID {
	na := s.nodeLocked(a)
	var nb Node
	if b != NoID {
		nb = s.nodeLocked(b)
	}

	if op == OpPow || op == OpNthRoot {
		if nb.Op != OpConst || nb.Value != math.Trunc(nb.Value) || (op == OpNthRoot && nb.Value <= 0) {
			panic(fmt.Sprintf("tree: %s needs an integral constant exponent", op))
		}
	}

	// Constant folding.
	if na.Op == OpConst && (b == NoID || nb.Op == OpConst) {
		return s.constLocked(Apply(op, na.Value, nb.Value))
	}

	if id, ok := s.identityLocked(op, na, nb); ok {
		return id
	}
	if id, ok := s.foldAffineLocked(op, na, nb); ok {
		return id
	}

	if op.Commutative() && a > b {
		a, b = b, a
		na, nb = nb, na
	}
	key := opKey{op, a, b}
	if id, ok := s.ops[key]; ok {
		return id
	}

	n := Node{Op: op, LHS: a, RHS: b, Rank: na.Rank + 1, Flags: na.Flags}
	if b != NoID {
		n.Rank = max(na.Rank, nb.Rank) + 1
		n.Flags &= nb.Flags
	}
	id := s.appendLocked(n)
	s.ops[key] = id
	return id
}

func isConst(n Node, v float64) bool {
	return n.Op == OpConst && n.Value == v
}

func (s *Store) identityLocked(op Opcode, a, b Node) (ID, bool) {
	switch op {
	case OpAdd:
		if isConst(a, 0) {
			return b.ID, true
		}
		if isConst(b, 0) {
			return a.ID, true
		}
	case OpSub:
		if isConst(b, 0) {
			return a.ID, true
		}
		if isConst(a, 0) {
			return s.opLocked(OpNeg, b.ID, NoID), true
		}
	case OpMul:
		if isConst(a, 1) {
			return b.ID, true
		}
		if isConst(b, 1) {
			return a.ID, true
		}
		if isConst(a, 0) || isConst(b, 0) {
			return s.constLocked(0), true
		}
	case OpDiv:
		if isConst(b, 1) {
			return a.ID, true
		}
	case OpNeg:
		if a.Op == OpNeg {
			return a.LHS, true
		}
	}
	return NoID, false
}

// foldAffineLocked merges linear combinations into a single OpAffine node.
// Plain coordinates only fold when the other side is affine or constant, so
// that x*y and similar products keep their structure.
func (s *Store) foldAffineLocked(op Opcode, a, b Node) (ID, bool) {
	ka, okA := s.affineOf(a)
	kb, okB := s.affineOf(b)
	scale := func(k [4]float64, f float64) [4]float64 {
		return [4]float64{k[0] * f, k[1] * f, k[2] * f, k[3] * f}
	}
	switch op {
	case OpNeg:
		if okA {
			return s.affineLocked(scale(ka, -1)), true
		}
	case OpAdd, OpSub:
		if !okA || !okB {
			return NoID, false
		}
		if op == OpSub {
			kb = scale(kb, -1)
		}
		return s.affineLocked([4]float64{ka[0] + kb[0], ka[1] + kb[1], ka[2] + kb[2], ka[3] + kb[3]}), true
	case OpMul:
		if okA && b.Op == OpConst {
			return s.affineLocked(scale(ka, b.Value)), true
		}
		if okB && a.Op == OpConst {
			return s.affineLocked(scale(kb, a.Value)), true
		}
	case OpDiv:
		if okA && b.Op == OpConst && b.Value != 0 {
			return s.affineLocked(scale(ka, 1/b.Value)), true
		}
	}
	return NoID, false
}

// Flatten returns every node reachable from root, children before parents,
// with root last.
func (s *Store) Flatten(root ID) []Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[ID]bool)
	var out []Node
	var visit func(id ID)
	visit = func(id ID) {
		if id == NoID || seen[id] {
			return
		}
		seen[id] = true
		n := s.nodeLocked(id)
		visit(n.LHS)
		visit(n.RHS)
		out = append(out, n)
	}
	visit(root)
	return out
}

package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tree is a handle to one node of a Store. The zero Tree is invalid.
// Trees are plain values; copying one never copies the graph.
type Tree struct {
	store *Store
	id    ID
}

// IsValid reports whether t refers to a node.
func (t Tree) IsValid() bool { return t.store != nil && t.id != NoID }

// Store returns the arena that owns t.
func (t Tree) Store() *Store { return t.store }

// ID returns the node handle. For variables this is the identity used to
// rebind their value.
func (t Tree) ID() ID { return t.id }

func (t Tree) node() Node { return t.store.Node(t.id) }

// Op returns the node's opcode.
func (t Tree) Op() Opcode { return t.node().Op }

// Value returns the value of a Const or Var node.
func (t Tree) Value() float64 { return t.node().Value }

// Coefficients returns a, b, c, d of an Affine node.
func (t Tree) Coefficients() [4]float64 { return t.node().Coef }

// Rank is the height of the node above the leaves.
func (t Tree) Rank() int { return t.node().Rank }

// Flags returns the node's derived properties.
func (t Tree) Flags() Flags { return t.node().Flags }

// LHS returns the first argument, or the zero Tree for leaves.
func (t Tree) LHS() Tree {
	if n := t.node(); n.LHS != NoID {
		return t.store.tree(n.LHS)
	}
	return Tree{}
}

// RHS returns the second argument, or the zero Tree.
func (t Tree) RHS() Tree {
	if n := t.node(); n.RHS != NoID {
		return t.store.tree(n.RHS)
	}
	return Tree{}
}

// Const returns a constant from t's store.
func (t Tree) Const(v float64) Tree { return t.store.Const(v) }

func (t Tree) String() string {
	if !t.IsValid() {
		return "<invalid>"
	}
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Tree) write(sb *strings.Builder) {
	n := t.node()
	switch n.Op {
	case OpConst:
		sb.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
	case OpVarX, OpVarY, OpVarZ:
		sb.WriteString(n.Op.String())
	case OpVar:
		fmt.Fprintf(sb, "var#%d", n.ID)
	case OpAffine:
		fmt.Fprintf(sb, "(affine %g %g %g %g)", n.Coef[0], n.Coef[1], n.Coef[2], n.Coef[3])
	default:
		sb.WriteString("(")
		sb.WriteString(n.Op.String())
		sb.WriteString(" ")
		t.LHS().write(sb)
		if n.RHS != NoID {
			sb.WriteString(" ")
			t.RHS().write(sb)
		}
		sb.WriteString(")")
	}
}

// Vars returns the variable nodes reachable from t in ascending ID order.
func (t Tree) Vars() []Tree {
	var out []Tree
	for _, n := range t.store.Flatten(t.id) {
		if n.Op == OpVar {
			out = append(out, t.store.tree(n.ID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Uses reports which coordinates t depends on, as written. An affine
// node counts for every axis with a non-zero coefficient.
func (t Tree) Uses() (x, y, z bool) {
	for _, n := range t.store.Flatten(t.id) {
		switch n.Op {
		case OpVarX:
			x = true
		case OpVarY:
			y = true
		case OpVarZ:
			z = true
		case OpAffine:
			x = x || n.Coef[0] != 0
			y = y || n.Coef[1] != 0
			z = z || n.Coef[2] != 0
		}
	}
	return x, y, z
}

// --- Constructors -----------------------------------------------------------

func unary(op Opcode, a Tree) Tree { return a.store.Op(op, a, Tree{}) }

func binary(op Opcode, a, b Tree) Tree { return a.store.Op(op, a, b) }

func Square(a Tree) Tree { return unary(OpSquare, a) }
func Sqrt(a Tree) Tree { return unary(OpSqrt, a) }
func Neg(a Tree) Tree { return unary(OpNeg, a) }
func Abs(a Tree) Tree { return unary(OpAbs, a) }
func Sin(a Tree) Tree { return unary(OpSin, a) }
func Cos(a Tree) Tree { return unary(OpCos, a) }
func Tan(a Tree) Tree { return unary(OpTan, a) }
func Asin(a Tree) Tree { return unary(OpAsin, a) }
func Acos(a Tree) Tree { return unary(OpAcos, a) }
func Atan(a Tree) Tree { return unary(OpAtan, a) }
func Exp(a Tree) Tree { return unary(OpExp, a) }
func Add(a, b Tree) Tree { return binary(OpAdd, a, b) }
func Mul(a, b Tree) Tree { return binary(OpMul, a, b) }
func Min(a, b Tree) Tree { return binary(OpMin, a, b) }
func Max(a, b Tree) Tree { return binary(OpMax, a, b) }
func Sub(a, b Tree) Tree { return binary(OpSub, a, b) }
func Div(a, b Tree) Tree { return binary(OpDiv, a, b) }
func Atan2(y, x Tree) Tree { return binary(OpAtan2, y, x) }
func Mod(a, b Tree) Tree { return binary(OpMod, a, b) }

// NanFill returns a where it is a number and b where a is NaN.
func NanFill(a, b Tree) Tree { return binary(OpNanFill, a, b) }

// Pow raises a to an integral power.
func Pow(a Tree, n int) Tree { return binary(OpPow, a, a.Const(float64(n))) }

// NthRoot returns the real n-th root of a, n > 0.
func NthRoot(a Tree, n int) Tree { return binary(OpNthRoot, a, a.Const(float64(n))) }

package tree

import (
	"math"

	"github.com/chazu/frep/pkg/interval"
)

// Opcode identifies the kind of a tree node.
type Opcode int

const (
	OpInvalid Opcode = iota

	OpConst
	OpVarX
	OpVarY
	OpVarZ
	OpVar

	OpSquare
	OpSqrt
	OpNeg
	OpAbs
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpExp

	OpAdd
	OpMul
	OpMin
	OpMax
	OpSub
	OpDiv
	OpAtan2
	OpPow
	OpNthRoot
	OpMod
	OpNanFill

	// OpAffine is a*x + b*y + c*z + d with the coefficients stored on the node.
	OpAffine

	// OpDummyA and OpDummyB pass through one argument. They only appear on
	// pruned evaluator tapes.
	OpDummyA
	OpDummyB

	lastOpcode
)

var opcodeNames = [...]string{
	OpInvalid: "invalid",
	OpConst:   "const",
	OpVarX:    "x",
	OpVarY:    "y",
	OpVarZ:    "z",
	OpVar:     "var",
	OpSquare:  "square",
	OpSqrt:    "sqrt",
	OpNeg:     "neg",
	OpAbs:     "abs",
	OpSin:     "sin",
	OpCos:     "cos",
	OpTan:     "tan",
	OpAsin:    "asin",
	OpAcos:    "acos",
	OpAtan:    "atan",
	OpExp:     "exp",
	OpAdd:     "add",
	OpMul:     "mul",
	OpMin:     "min",
	OpMax:     "max",
	OpSub:     "sub",
	OpDiv:     "div",
	OpAtan2:   "atan2",
	OpPow:     "pow",
	OpNthRoot: "nth-root",
	OpMod:     "mod",
	OpNanFill: "nanfill",
	OpAffine:  "affine",
	OpDummyA:  "dummy-a",
	OpDummyB:  "dummy-b",
}

func (op Opcode) String() string {
	if op < 0 || op >= lastOpcode {
		return "invalid"
	}
	return opcodeNames[op]
}

// ParseOpcode looks an opcode up by its String form.
func ParseOpcode(s string) (Opcode, bool) {
	for op := OpConst; op < lastOpcode; op++ {
		if opcodeNames[op] == s {
			return op, true
		}
	}
	return OpInvalid, false
}

// Args returns the number of child arguments the opcode takes.
func (op Opcode) Args() int {
	switch {
	case op >= OpConst && op <= OpVar, op == OpAffine:
		return 0
	case op >= OpSquare && op <= OpExp:
		return 1
	case op >= OpAdd && op <= OpNanFill, op == OpDummyA, op == OpDummyB:
		return 2
	}
	return -1
}

// Commutative reports whether swapping the arguments leaves the result unchanged.
func (op Opcode) Commutative() bool {
	return op == OpAdd || op == OpMul || op == OpMin || op == OpMax
}

// Apply evaluates a non-leaf opcode on scalar arguments. b is ignored for
// unary opcodes.
func Apply(op Opcode, a, b float64) float64 {
	switch op {
	case OpSquare:
		return a * a
	case OpSqrt:
		return math.Sqrt(a)
	case OpNeg:
		return -a
	case OpAbs:
		return math.Abs(a)
	case OpSin:
		return math.Sin(a)
	case OpCos:
		return math.Cos(a)
	case OpTan:
		return math.Tan(a)
	case OpAsin:
		return math.Asin(a)
	case OpAcos:
		return math.Acos(a)
	case OpAtan:
		return math.Atan(a)
	case OpExp:
		return math.Exp(a)
	case OpAdd:
		return a + b
	case OpMul:
		return a * b
	case OpMin:
		return math.Min(a, b)
	case OpMax:
		return math.Max(a, b)
	case OpSub:
		return a - b
	case OpDiv:
		return a / b
	case OpAtan2:
		return math.Atan2(a, b)
	case OpPow:
		return math.Pow(a, b)
	case OpNthRoot:
		return interval.Root(a, int(b))
	case OpMod:
		m := math.Mod(a, b)
		if m < 0 {
			m += math.Abs(b)
		}
		return m
	case OpNanFill:
		if math.IsNaN(a) {
			return b
		}
		return a
	case OpDummyA:
		return a
	case OpDummyB:
		return b
	}
	panic("tree: Apply on leaf opcode " + op.String())
}

// ApplyInterval is the interval counterpart of Apply.
func ApplyInterval(op Opcode, a, b interval.Interval) interval.Interval {
	switch op {
	case OpSquare:
		return interval.Square(a)
	case OpSqrt:
		return interval.Sqrt(a)
	case OpNeg:
		return interval.Neg(a)
	case OpAbs:
		return interval.Abs(a)
	case OpSin:
		return interval.Sin(a)
	case OpCos:
		return interval.Cos(a)
	case OpTan:
		return interval.Tan(a)
	case OpAsin:
		return interval.Asin(a)
	case OpAcos:
		return interval.Acos(a)
	case OpAtan:
		return interval.Atan(a)
	case OpExp:
		return interval.Exp(a)
	case OpAdd:
		return interval.Add(a, b)
	case OpMul:
		return interval.Mul(a, b)
	case OpMin:
		return interval.Min(a, b)
	case OpMax:
		return interval.Max(a, b)
	case OpSub:
		return interval.Sub(a, b)
	case OpDiv:
		return interval.Div(a, b)
	case OpAtan2:
		return interval.Atan2(a, b)
	case OpPow:
		return interval.Pow(a, int(b.Lo))
	case OpNthRoot:
		return interval.NthRoot(a, int(b.Lo))
	case OpMod:
		return interval.Mod(a, b)
	case OpNanFill:
		return interval.NanFill(a, b)
	case OpDummyA:
		return a
	case OpDummyB:
		return b
	}
	panic("tree: ApplyInterval on leaf opcode " + op.String())
}

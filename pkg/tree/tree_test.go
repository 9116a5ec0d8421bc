package tree

import (
	"math"
	"testing"
)

func TestOpcodeArgs(t *testing.T) {
	tests := []struct {
		op   Opcode
		args int
	}{
		{OpConst, 0}, {OpVarX, 0}, {OpVar, 0}, {OpAffine, 0},
		{OpSquare, 1}, {OpExp, 1}, {OpNeg, 1},
		{OpAdd, 2}, {OpNanFill, 2}, {OpAtan2, 2},
		{OpInvalid, -1},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.Args(); got != tt.args {
				t.Errorf("%s.Args() = %d, want %d", tt.op, got, tt.args)
			}
		})
	}
}

func TestParseOpcode(t *testing.T) {
	for op := OpConst; op < lastOpcode; op++ {
		got, ok := ParseOpcode(op.String())
		if !ok || got != op {
			t.Errorf("ParseOpcode(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := ParseOpcode("frobnicate"); ok {
		t.Error("ParseOpcode accepted an unknown name")
	}
}

func TestDeduplication(t *testing.T) {
	s := NewStore()
	x, y := s.X(), s.Y()

	if s.Const(1.5) != s.Const(1.5) {
		t.Error("equal constants are distinct nodes")
	}
	a := Mul(x, y)
	b := Mul(x, y)
	if a.ID() != b.ID() {
		t.Errorf("x*y built twice: %d != %d", a.ID(), b.ID())
	}
	if c := Mul(y, x); c.ID() != a.ID() {
		t.Errorf("commutative operands not canonicalized: %s vs %s", c, a)
	}
	if Sub(x, y).ID() == Sub(y, x).ID() {
		t.Error("x-y and y-x share a node")
	}

	v1, v2 := s.Var(1), s.Var(1)
	if v1.ID() == v2.ID() {
		t.Error("variables must never be deduplicated")
	}
}

func TestIdentities(t *testing.T) {
	s := NewStore()
	v := s.Var(3)
	zero, one := s.Const(0), s.Const(1)

	tests := []struct {
		name string
		got  Tree
		want Tree
	}{
		{"v+0", Add(v, zero), v},
		{"0+v", Add(zero, v), v},
		{"v-0", Sub(v, zero), v},
		{"v*1", Mul(v, one), v},
		{"1*v", Mul(one, v), v},
		{"v*0", Mul(v, zero), zero},
		{"v/1", Div(v, one), v},
		{"--v", Neg(Neg(v)), v},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.ID() != tt.want.ID() {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}

	if n := Sub(zero, v); n.Op() != OpNeg || n.LHS().ID() != v.ID() {
		t.Errorf("0-v = %s, want (neg v)", n)
	}
}

func TestConstantFolding(t *testing.T) {
	s := NewStore()
	got := Add(Mul(s.Const(2), s.Const(3)), Sqrt(s.Const(16)))
	if got.Op() != OpConst || got.Value() != 10 {
		t.Errorf("got %s, want 10", got)
	}
	if p := Pow(s.Const(2), 10); p.Value() != 1024 {
		t.Errorf("2^10 = %s", p)
	}
	if n := Sqrt(s.Const(-1)); !math.IsNaN(n.Value()) {
		t.Errorf("sqrt(-1) folded to %s, want NaN", n)
	}
}

func TestAffineFolding(t *testing.T) {
	s := NewStore()
	x, y, z := s.X(), s.Y(), s.Z()

	// 2x + 3y - z + 1, then halved.
	e := Add(Sub(Add(Mul(x, s.Const(2)), Mul(s.Const(3), y)), z), s.Const(1))
	if e.Op() != OpAffine {
		t.Fatalf("got %s, want an affine node", e)
	}
	if k := e.Coefficients(); k != [4]float64{2, 3, -1, 1} {
		t.Errorf("coefficients = %v", k)
	}
	h := Div(e, s.Const(2))
	if k := h.Coefficients(); k != [4]float64{1, 1.5, -0.5, 0.5} {
		t.Errorf("halved coefficients = %v", k)
	}
	if n := Neg(h); n.Coefficients() != [4]float64{-1, -1.5, 0.5, -0.5} {
		t.Errorf("negated coefficients = %v", n.Coefficients())
	}

	// Cancelling terms reduce to plain leaves.
	if got := Sub(Add(x, y), y); got.ID() != x.ID() {
		t.Errorf("(x+y)-y = %s, want x", got)
	}
	if got := Sub(Add(x, s.Const(4)), x); got.Op() != OpConst || got.Value() != 4 {
		t.Errorf("(x+4)-x = %s, want 4", got)
	}

	// Products of coordinates keep their structure.
	if got := Mul(x, y); got.Op() != OpMul {
		t.Errorf("x*y = %s, want a mul node", got)
	}
}

func TestFlags(t *testing.T) {
	s := NewStore()
	v := s.Var(2)
	agnostic := Sin(Mul(v, s.Const(3)))
	if agnostic.Flags()&LocationAgnostic == 0 {
		t.Errorf("%s should be location agnostic", agnostic)
	}
	spatial := Add(agnostic, Square(s.X()))
	if spatial.Flags()&LocationAgnostic != 0 {
		t.Errorf("%s depends on x", spatial)
	}
	if spatial.Flags()&Collapsed == 0 {
		t.Errorf("%s has no affine node", spatial)
	}
	if a := Add(s.X(), s.Const(1)); a.Flags()&Collapsed != 0 {
		t.Errorf("%s is affine, not collapsed", a)
	}
	if spatial.Rank() <= agnostic.Rank() {
		t.Errorf("rank %d <= %d", spatial.Rank(), agnostic.Rank())
	}
}

func TestPowRequiresIntegralExponent(t *testing.T) {
	s := NewStore()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-integral exponent")
		}
	}()
	s.Op(OpPow, s.X(), s.Const(0.5))
}

func TestMismatchedStoresPanic(t *testing.T) {
	a, b := NewStore(), NewStore()
	defer func() {
		if recover() == nil {
			t.Error("expected panic when mixing stores")
		}
	}()
	Add(a.X(), b.X())
}

func TestSetValueAndVars(t *testing.T) {
	s := NewStore()
	v1, v2 := s.Var(1), s.Var(2)
	e := Add(Mul(v2, s.X()), v1)
	vars := e.Vars()
	if len(vars) != 2 || vars[0].ID() != v1.ID() || vars[1].ID() != v2.ID() {
		t.Fatalf("Vars() = %v", vars)
	}
	s.SetValue(v1, 7)
	if v1.Value() != 7 {
		t.Errorf("value = %g, want 7", v1.Value())
	}
}

func TestRemap(t *testing.T) {
	s := NewStore()
	x, y, z := s.X(), s.Y(), s.Z()
	circle := Sub(Add(Square(x), Square(y)), s.Const(1))

	// Shift by (2, 0, 0): x -> x - 2.
	moved := Remap(circle, Sub(x, s.Const(2)), y, z)
	if moved.ID() == circle.ID() {
		t.Fatal("remap returned the original tree")
	}
	if got := Remap(circle, x, y, z); got.ID() != circle.ID() {
		t.Errorf("identity remap produced a new node: %s", got)
	}
	want := "(sub (add (square y) (square (affine 1 0 0 -2))) 1)"
	if moved.String() != want {
		t.Errorf("remapped = %s, want %s", moved, want)
	}

	// Affine nodes expand in terms of the new coordinates.
	plane := Add(x, s.Const(1))
	swapped := Remap(plane, y, x, z)
	if k := swapped.Coefficients(); k != [4]float64{0, 1, 0, 1} {
		t.Errorf("swapped plane = %s", swapped)
	}
}

func TestConcurrentConstruction(t *testing.T) {
	s := NewStore()
	done := make(chan Tree, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- Add(Square(s.X()), Square(s.Y()))
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		if got := <-done; got.ID() != first.ID() {
			t.Errorf("concurrent builds diverged: %d vs %d", got.ID(), first.ID())
		}
	}
}

func TestUses(t *testing.T) {
	s := NewStore()
	tests := []struct {
		name    string
		tree    Tree
		x, y, z bool
	}{
		{"const", s.Const(1), false, false, false},
		{"circle", Add(Square(s.X()), Square(s.Y())), true, true, false},
		{"affine", Sub(s.Z(), s.Const(0.5)), false, false, true},
		{"cancelled", Add(s.Y(), Mul(s.Z(), s.Const(0))), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, z := tt.tree.Uses()
			if x != tt.x || y != tt.y || z != tt.z {
				t.Errorf("Uses() = %v %v %v, want %v %v %v", x, y, z, tt.x, tt.y, tt.z)
			}
		})
	}
}

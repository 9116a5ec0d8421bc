package eval

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/frep/pkg/interval"
	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
)

func TestPointEvaluation(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()

	s := tree.NewStore()
	e := New(shapes.Circle(s, 1))
	assert.Equal(t, -1.0, e.Eval(0, 0, 0))
	assert.Equal(t, 0.0, e.Eval(1, 0, 0))
	assert.Equal(t, 1.0, e.Eval(1, 1, 5))
}

func TestLeafRoots(t *testing.T) {
	s := tree.NewStore()
	assert.Equal(t, 2.5, New(s.X()).Eval(2.5, 0, 0))
	assert.Equal(t, 7.0, New(s.Const(7)).Eval(1, 2, 3))
	assert.Equal(t, -4.0, New(s.Var(-4)).Eval(1, 2, 3))
	assert.Equal(t, 3.0, New(s.Affine(1, 1, 1, 0)).Eval(1, 1, 1))
}

func TestBatchMatchesPoints(t *testing.T) {
	s := tree.NewStore()
	x, y, z := s.X(), s.Y(), s.Z()
	f := tree.Add(tree.Sin(tree.Mul(x, y)), tree.Div(tree.Exp(z), tree.Add(tree.Square(x), s.Const(1))))
	e := New(f)
	ref := New(f)

	for i := 0; i < BatchSize; i++ {
		e.Set(float64(i)/50, -float64(i)/70, float64(i%7)/3, i)
	}
	vs := append([]float64(nil), e.Values(BatchSize)...)
	for i := 0; i < BatchSize; i++ {
		want := ref.Eval(float64(i)/50, -float64(i)/70, float64(i%7)/3)
		require.InDelta(t, want, vs[i], 1e-12, "point %d", i)
	}
}

func TestDerivatives(t *testing.T) {
	s := tree.NewStore()
	x, y, z := s.X(), s.Y(), s.Z()

	tests := []struct {
		name string
		f    tree.Tree
		at   v3.Vec
		want v3.Vec
	}{
		{"sphere", shapes.Sphere(s, 1), v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: 2, Y: 4, Z: 6}},
		{"affine", s.Affine(2, -1, 0.5, 3), v3.Vec{X: 9, Y: 9, Z: 9}, v3.Vec{X: 2, Y: -1, Z: 0.5}},
		{"product", tree.Mul(x, y), v3.Vec{X: 3, Y: 4}, v3.Vec{X: 4, Y: 3}},
		{"quotient", tree.Div(x, y), v3.Vec{X: 1, Y: 2}, v3.Vec{X: 0.5, Y: -0.25}},
		{"min picks lower", tree.Min(tree.Mul(x, y), z), v3.Vec{X: 1, Y: 1, Z: 5}, v3.Vec{X: 1, Y: 1}},
		{"sqrt", tree.Sqrt(tree.Mul(x, y)), v3.Vec{X: 4, Y: 1}, v3.Vec{X: 0.25, Y: 1}},
		{"sin", tree.Sin(tree.Mul(x, y)), v3.Vec{X: 0, Y: 1}, v3.Vec{X: 1, Y: 0}},
		{"atan2", tree.Atan2(y, tree.Mul(x, z)), v3.Vec{X: 1, Y: 1, Z: 1}, v3.Vec{X: -0.5, Y: 0.5, Z: -0.5}},
		{"pow", tree.Pow(tree.Mul(x, y), 3), v3.Vec{X: 2, Y: 1}, v3.Vec{X: 12, Y: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g := New(tt.f).Deriv(tt.at.X, tt.at.Y, tt.at.Z)
			assert.InDelta(t, tt.want.X, g.X, 1e-9)
			assert.InDelta(t, tt.want.Y, g.Y, 1e-9)
			assert.InDelta(t, tt.want.Z, g.Z, 1e-9)
		})
	}
}

func TestIntervalContainsSamples(t *testing.T) {
	s := tree.NewStore()
	f := shapes.Difference(shapes.Sphere(s, 1), shapes.Box(s, [3]float64{0, 0, 0}, [3]float64{1, 1, 1}))
	e := New(f)
	box := [3]interval.Interval{interval.New(-0.3, 0.4), interval.New(0.1, 0.9), interval.New(-1, -0.2)}
	out := e.EvalInterval(box[0], box[1], box[2])
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			for k := 0; k <= 10; k++ {
				p := [3]float64{}
				for a, n := range []int{i, j, k} {
					p[a] = box[a].Lo + box[a].Width()*float64(n)/10
				}
				v := e.Eval(p[0], p[1], p[2])
				require.True(t, out.Lo <= v && v <= out.Hi, "%v at %v outside %v", v, p, out)
			}
		}
	}
}

func TestPushPrunesDisjointBranches(t *testing.T) {
	s := tree.NewStore()
	left := shapes.Move(shapes.Circle(s, 1), -5, 0, 0)
	right := shapes.Move(shapes.Circle(s, 1), 5, 0, 0)
	e := New(shapes.Union(left, right))
	ref := New(shapes.Union(left, right))

	e.EvalInterval(interval.New(4, 6), interval.New(-1, 1), interval.Point(0))
	e.Push()
	assert.Less(t, e.Utilization(), 1.0)
	for _, x := range []float64{4, 4.5, 5, 5.5, 6} {
		assert.Equal(t, ref.Eval(x, 0.5, 0), e.Eval(x, 0.5, 0))
	}
	e.Pop()
	assert.Equal(t, 1.0, e.Utilization())
	assert.Equal(t, ref.Eval(-5, 0, 0), e.Eval(-5, 0, 0))

	// Overlapping ranges keep both branches.
	e.EvalInterval(interval.New(-6, 6), interval.New(-1, 1), interval.Point(0))
	e.Push()
	assert.Equal(t, 1.0, e.Utilization())
	e.Pop()
}

func TestSpecialize(t *testing.T) {
	s := tree.NewStore()
	f := tree.Max(s.X(), s.Y())
	e := New(f)
	e.Eval(3, 1, 0)
	e.Specialize()
	assert.Equal(t, 5.0, e.Eval(5, 100, 0), "specialized to the x branch")
	e.Pop()
	assert.Equal(t, 100.0, e.Eval(5, 100, 0))
}

func TestPopWithoutPushPanics(t *testing.T) {
	s := tree.NewStore()
	e := New(s.X())
	assert.Panics(t, func() { e.Pop() })
}

func TestMatrix(t *testing.T) {
	s := tree.NewStore()
	e := New(s.X())
	e.SetMatrix(Translate(1, 0, 0))
	assert.Equal(t, 1.0, e.Eval(0, 0, 0))

	e = New(shapes.Sphere(s, 1))
	e.SetMatrix(Scale(2, 1, 1))
	v, g := e.Deriv(1, 0, 0)
	assert.Equal(t, 3.0, v) // (2*1)² - 1
	assert.InDelta(t, 8.0, g.X, 1e-12)

	iv := e.EvalInterval(interval.New(0, 1), interval.Point(0), interval.Point(0))
	assert.Equal(t, interval.New(-1, 3), iv)

	m := RotateZ(math.Pi / 3).Mul(Translate(1, 2, 3))
	inv, err := m.Inverse()
	require.NoError(t, err)
	p := inv.Apply(m.Apply(v3.Vec{X: 0.3, Y: -0.7, Z: 2}))
	assert.InDelta(t, 0.3, p.X, 1e-12)
	assert.InDelta(t, -0.7, p.Y, 1e-12)
	assert.InDelta(t, 2, p.Z, 1e-12)

	_, err = Scale(0, 1, 1).Inverse()
	assert.Error(t, err)
}

func TestVariables(t *testing.T) {
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()

	s := tree.NewStore()
	a, b := s.Var(2), s.Var(1)
	f := tree.Add(tree.Mul(s.X(), tree.Sin(a)), b)
	e := New(f)

	assert.InDelta(t, 3*math.Sin(2)+1, e.Eval(3, 0, 0), 1e-12)
	require.True(t, e.SetVar(a.ID(), 0))
	assert.InDelta(t, 1, e.Eval(3, 0, 0), 1e-12)
	assert.False(t, e.SetVar(s.X().ID(), 4), "x is not a variable")

	assert.False(t, e.UpdateVars(map[tree.ID]float64{a.ID(): 0, b.ID(): 1}))
	assert.True(t, e.UpdateVars(map[tree.ID]float64{b.ID(): 5}))
	assert.Equal(t, map[tree.ID]float64{a.ID(): 0, b.ID(): 5}, e.Vars())

	grad := e.VarGradient(3, 0, 0)
	assert.InDelta(t, 3*math.Cos(0), grad[a.ID()], 1e-12)
	assert.InDelta(t, 1, grad[b.ID()], 1e-12)

	// Rebinding does not touch the store or other evaluators.
	other := New(f)
	assert.InDelta(t, 3*math.Sin(2)+1, other.Eval(3, 0, 0), 1e-12)
}

func TestLocationAgnosticRoot(t *testing.T) {
	s := tree.NewStore()
	v := s.Var(3)
	e := New(tree.Mul(v, v))
	assert.Equal(t, 9.0, e.Eval(0, 0, 0))
	e.SetVar(v.ID(), 4)
	assert.Equal(t, 16.0, e.Eval(0, 0, 0))
	iv := e.EvalInterval(interval.New(-1, 1), interval.New(-1, 1), interval.New(-1, 1))
	assert.Equal(t, interval.Point(16), iv)
}

func TestNumericDomainErrors(t *testing.T) {
	s := tree.NewStore()
	e := New(tree.Sqrt(s.X()))
	assert.True(t, math.IsNaN(e.Eval(-1, 0, 0)))
	e = New(tree.NanFill(tree.Sqrt(s.X()), s.Const(-7)))
	assert.Equal(t, -7.0, e.Eval(-1, 0, 0))
	e = New(tree.Div(s.Const(1), s.X()))
	assert.True(t, math.IsInf(e.Eval(0, 0, 0), 1))
}

func TestCloneIsIndependent(t *testing.T) {
	s := tree.NewStore()
	v := s.Var(1)
	e := New(tree.Add(s.X(), v))
	c := e.Clone()
	c.SetVar(v.ID(), 10)
	assert.Equal(t, 1.0, e.Eval(0, 0, 0))
	assert.Equal(t, 10.0, c.Eval(0, 0, 0))
}

func TestPool(t *testing.T) {
	s := tree.NewStore()
	v := s.Var(1)
	p := NewPool(tree.Mul(s.X(), v), DefaultPoolSize)
	require.Equal(t, DefaultPoolSize, p.Size())
	assert.True(t, p.UpdateVars(map[tree.ID]float64{v.ID(): 2}))
	p.SetMatrix(Translate(1, 0, 0))

	done := make(chan float64, p.Size())
	for i := 0; i < p.Size(); i++ {
		go func(e *Evaluator) { done <- e.Eval(1, 0, 0) }(p.Get(i))
	}
	for i := 0; i < p.Size(); i++ {
		assert.Equal(t, 4.0, <-done)
	}
}

func TestMengerSponge(t *testing.T) {
	s := tree.NewStore()
	e := New(shapes.Menger(s, 2))
	assert.Greater(t, e.Eval(0, 0, 0), 0.0, "centre is hollow")
	assert.Less(t, e.Eval(1.4, 1.4, 1.4), 0.0, "corner is solid")
	assert.Greater(t, e.Eval(1, 1, 0), 0.0, "second-level hole")
	assert.Greater(t, e.Eval(2, 0, 0), 0.0, "outside")
}

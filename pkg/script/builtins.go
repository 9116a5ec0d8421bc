package script

import (
	"fmt"
	"math"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/frep/pkg/shapes"
	"github.com/chazu/frep/pkg/tree"
)

// sexpShape carries a tree through the interpreter.
type sexpShape struct {
	t tree.Tree
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("#<shape %d>", s.t.ID())
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// session is the state one evaluation builds up.
type session struct {
	store  *tree.Store
	params map[string]tree.Tree
	parts  []Part
}

func (s *session) result() *Result {
	return &Result{Store: s.store, Parts: s.parts, Params: s.params}
}

func (s *session) shape(t tree.Tree) zygo.Sexp { return &sexpShape{t: t} }

// toFloat64 extracts a number.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", s.SexpString(nil))
}

// toTree accepts a shape or a number.
func (s *session) toTree(x zygo.Sexp) (tree.Tree, error) {
	if sh, ok := x.(*sexpShape); ok {
		return sh.t, nil
	}
	f, err := toFloat64(x)
	if err != nil {
		return tree.Tree{}, fmt.Errorf("expected shape or number, got %s", x.SexpString(nil))
	}
	return s.store.Const(f), nil
}

func (s *session) toTrees(name string, args []zygo.Sexp) ([]tree.Tree, error) {
	out := make([]tree.Tree, len(args))
	for i, a := range args {
		t, err := s.toTree(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
		out[i] = t
	}
	return out, nil
}

func arity(name string, args []zygo.Sexp, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		switch {
		case hi < 0:
			return fmt.Errorf("%s needs at least %d arguments, got %d", name, lo, len(args))
		case lo == hi:
			return fmt.Errorf("%s needs %d arguments, got %d", name, lo, len(args))
		}
		return fmt.Errorf("%s needs %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return nil
}

type userFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// treeFunc adapts a function over trees with a fixed arity range.
func (s *session) treeFunc(lo, hi int, f func(ts []tree.Tree) tree.Tree) userFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, lo, hi); err != nil {
			return zygo.SexpNull, err
		}
		ts, err := s.toTrees(name, args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return s.shape(f(ts)), nil
	}
}

func fold(op func(a, b tree.Tree) tree.Tree) func([]tree.Tree) tree.Tree {
	return func(ts []tree.Tree) tree.Tree {
		out := ts[0]
		for _, t := range ts[1:] {
			out = op(out, t)
		}
		return out
	}
}

func unary(op func(tree.Tree) tree.Tree) func([]tree.Tree) tree.Tree {
	return func(ts []tree.Tree) tree.Tree { return op(ts[0]) }
}

func binary(op func(a, b tree.Tree) tree.Tree) func([]tree.Tree) tree.Tree {
	return func(ts []tree.Tree) tree.Tree { return op(ts[0], ts[1]) }
}

// move shifts t by d, which holds two or three offsets.
func (s *session) move(t tree.Tree, d []tree.Tree) tree.Tree {
	z := s.store.Z()
	if len(d) == 3 {
		z = tree.Sub(z, d[2])
	}
	return tree.Remap(t, tree.Sub(s.store.X(), d[0]), tree.Sub(s.store.Y(), d[1]), z)
}

func (s *session) dist2(ts ...tree.Tree) tree.Tree {
	return fold(tree.Add)(mapTrees(ts, tree.Square))
}

func mapTrees(ts []tree.Tree, f func(tree.Tree) tree.Tree) []tree.Tree {
	out := make([]tree.Tree, len(ts))
	for i, t := range ts {
		out[i] = f(t)
	}
	return out
}

// slab is the interval lo <= v <= hi as max(lo - v, v - hi).
func slab(v, lo, hi tree.Tree) tree.Tree {
	return tree.Max(tree.Sub(lo, v), tree.Sub(v, hi))
}

// register installs the shape vocabulary. Every numeric argument may also
// be a shape, so parameters flow into primitives.
func (s *session) register(env *zygo.Zlisp) {
	st := s.store

	env.AddFunction("x", s.treeFunc(0, 0, func([]tree.Tree) tree.Tree { return st.X() }))
	env.AddFunction("y", s.treeFunc(0, 0, func([]tree.Tree) tree.Tree { return st.Y() }))
	env.AddFunction("z", s.treeFunc(0, 0, func([]tree.Tree) tree.Tree { return st.Z() }))

	// (param "name" value)
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return zygo.SexpNull, err
		}
		pname, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: name: %w", err)
		}
		if _, dup := s.params[pname]; dup {
			return zygo.SexpNull, fmt.Errorf("param: %q declared twice", pname)
		}
		v, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: value: %w", err)
		}
		s.params[pname] = st.Var(v)
		return s.shape(s.params[pname]), nil
	})

	// (part "name" shape)
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return zygo.SexpNull, err
		}
		pname, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		t, err := s.toTree(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: %w", err)
		}
		for _, p := range s.parts {
			if p.Name == pname {
				return zygo.SexpNull, fmt.Errorf("part: %q declared twice", pname)
			}
		}
		s.parts = append(s.parts, Part{Name: pname, Shape: t})
		return s.shape(t), nil
	})

	// (make-shape (fn [x y z] ...)) calls the function once with the
	// coordinate shapes.
	env.AddFunction("make_shape", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity("make-shape", args, 1, 1); err != nil {
			return zygo.SexpNull, err
		}
		fn, ok := args[0].(*zygo.SexpFunction)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("make-shape: expected function, got %s", args[0].SexpString(nil))
		}
		out, err := env.Apply(fn, []zygo.Sexp{s.shape(st.X()), s.shape(st.Y()), s.shape(st.Z())})
		if err != nil {
			return zygo.SexpNull, err
		}
		t, err := s.toTree(out)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("make-shape: result: %w", err)
		}
		return s.shape(t), nil
	})

	// Arithmetic. sub and div follow Lisp: one argument negates or
	// inverts, more subtract or divide the rest from the first.
	env.AddFunction("add", s.treeFunc(1, -1, fold(tree.Add)))
	env.AddFunction("mul", s.treeFunc(1, -1, fold(tree.Mul)))
	env.AddFunction("min", s.treeFunc(1, -1, fold(tree.Min)))
	env.AddFunction("max", s.treeFunc(1, -1, fold(tree.Max)))
	env.AddFunction("sub", s.treeFunc(1, -1, func(ts []tree.Tree) tree.Tree {
		if len(ts) == 1 {
			return tree.Neg(ts[0])
		}
		return tree.Sub(ts[0], fold(tree.Add)(ts[1:]))
	}))
	env.AddFunction("div", s.treeFunc(1, -1, func(ts []tree.Tree) tree.Tree {
		if len(ts) == 1 {
			return tree.Div(st.Const(1), ts[0])
		}
		return tree.Div(ts[0], fold(tree.Mul)(ts[1:]))
	}))

	for name, op := range map[string]func(tree.Tree) tree.Tree{
		"neg": tree.Neg, "square": tree.Square, "sqrt": tree.Sqrt, "abs": tree.Abs,
		"sin": tree.Sin, "cos": tree.Cos, "tan": tree.Tan,
		"asin": tree.Asin, "acos": tree.Acos, "exp": tree.Exp,
	} {
		env.AddFunction(name, s.treeFunc(1, 1, unary(op)))
	}
	env.AddFunction("atan", s.treeFunc(1, 2, func(ts []tree.Tree) tree.Tree {
		if len(ts) == 2 {
			return tree.Atan2(ts[0], ts[1])
		}
		return tree.Atan(ts[0])
	}))
	env.AddFunction("atan2", s.treeFunc(2, 2, binary(tree.Atan2)))
	// mod stays the interpreter's integer modulo.
	env.AddFunction("fmod", s.treeFunc(2, 2, binary(tree.Mod)))
	env.AddFunction("nanfill", s.treeFunc(2, 2, binary(tree.NanFill)))

	integral := func(op func(tree.Tree, int) tree.Tree, positive bool) userFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if err := arity(name, args, 2, 2); err != nil {
				return zygo.SexpNull, err
			}
			t, err := s.toTree(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			n, err := toInt(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: exponent: %w", name, err)
			}
			if positive && n <= 0 {
				return zygo.SexpNull, fmt.Errorf("%s: root must be positive, got %d", name, n)
			}
			return s.shape(op(t, n)), nil
		}
	}
	env.AddFunction("pow", integral(tree.Pow, false))
	env.AddFunction("nth_root", integral(tree.NthRoot, true))

	// CSG.
	env.AddFunction("union", s.treeFunc(1, -1, fold(tree.Min)))
	env.AddFunction("intersection", s.treeFunc(1, -1, fold(tree.Max)))
	env.AddFunction("difference", s.treeFunc(1, -1, func(ts []tree.Tree) tree.Tree {
		return shapes.Difference(ts[0], ts[1:]...)
	}))

	// Primitives: (circle r [cx cy]), (sphere r [cx cy cz]),
	// (rectangle xmin xmax ymin ymax), (box xmin ymin zmin xmax ymax zmax),
	// (cylinder r h).
	env.AddFunction("circle", s.treeFunc(1, 3, func(ts []tree.Tree) tree.Tree {
		c := tree.Sub(s.dist2(st.X(), st.Y()), tree.Square(ts[0]))
		if len(ts) == 3 {
			c = s.move(c, ts[1:])
		}
		return c
	}))
	env.AddFunction("sphere", s.treeFunc(1, 4, func(ts []tree.Tree) tree.Tree {
		c := tree.Sub(s.dist2(st.X(), st.Y(), st.Z()), tree.Square(ts[0]))
		if len(ts) > 1 {
			c = s.move(c, ts[1:])
		}
		return c
	}))
	env.AddFunction("rectangle", s.treeFunc(4, 4, func(ts []tree.Tree) tree.Tree {
		return tree.Max(slab(st.X(), ts[0], ts[1]), slab(st.Y(), ts[2], ts[3]))
	}))
	env.AddFunction("box", s.treeFunc(6, 6, func(ts []tree.Tree) tree.Tree {
		return fold(tree.Max)([]tree.Tree{
			slab(st.X(), ts[0], ts[3]),
			slab(st.Y(), ts[1], ts[4]),
			slab(st.Z(), ts[2], ts[5]),
		})
	}))
	env.AddFunction("cylinder", s.treeFunc(2, 2, func(ts []tree.Tree) tree.Tree {
		disc := tree.Sub(s.dist2(st.X(), st.Y()), tree.Square(ts[0]))
		return tree.Max(disc, slab(st.Z(), st.Const(0), ts[1]))
	}))

	// Transforms: (move s dx dy [dz]), (scale s sx sy [sz]),
	// (rotate s ax ay az) with angles in degrees.
	env.AddFunction("move", s.treeFunc(3, 4, func(ts []tree.Tree) tree.Tree {
		return s.move(ts[0], ts[1:])
	}))
	env.AddFunction("scale", s.treeFunc(3, 4, func(ts []tree.Tree) tree.Tree {
		z := st.Z()
		if len(ts) == 4 {
			z = tree.Div(z, ts[3])
		}
		return tree.Remap(ts[0], tree.Div(st.X(), ts[1]), tree.Div(st.Y(), ts[2]), z)
	}))
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, 4, 4); err != nil {
			return zygo.SexpNull, err
		}
		t, err := s.toTree(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		var a [3]float64
		for i := range a {
			if a[i], err = toFloat64(args[i+1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: angle %d: %w", i+1, err)
			}
		}
		return s.shape(shapes.Rotate(t, a[0], a[1], a[2])), nil
	})
}

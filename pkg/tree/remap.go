package tree

// Remap rebuilds t with the coordinate leaves replaced by x, y and z.
// Shared subexpressions are rebuilt once. All four trees must come from the
// same store.
func Remap(t, x, y, z Tree) Tree {
	s := t.store
	if x.store != s || y.store != s || z.store != s {
		panic("tree: Remap across stores")
	}
	memo := make(map[ID]Tree)
	for _, n := range s.Flatten(t.id) {
		var out Tree
		switch n.Op {
		case OpVarX:
			out = x
		case OpVarY:
			out = y
		case OpVarZ:
			out = z
		case OpConst, OpVar:
			out = s.tree(n.ID)
		case OpAffine:
			k := n.Coef
			out = Add(Add(Mul(x, s.Const(k[0])), Mul(y, s.Const(k[1]))),
				Add(Mul(z, s.Const(k[2])), s.Const(k[3])))
		default:
			var rhs Tree
			if n.RHS != NoID {
				rhs = memo[n.RHS]
			}
			out = s.Op(n.Op, memo[n.LHS], rhs)
		}
		memo[n.ID] = out
	}
	return memo[t.id]
}

package eval

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Feature collects the unit directions (epsilons) along which a surface is
// approached at a vertex, together with the gradient observed there. It is
// used to decide whether one smooth vertex can represent the surface
// patches meeting in a cell.
type Feature struct {
	// Deriv is the most recent gradient attached to the feature.
	Deriv v3.Vec

	// Strict enables the half-space test for two or more epsilons: a new
	// direction is compatible only if some plane through two stored
	// epsilons keeps every direction, the new one included, on one side.
	// Without it, any non-opposing direction is accepted once two
	// epsilons are present.
	Strict bool

	eps []v3.Vec
}

const dotTolerance = 1e-12

// Epsilons returns the stored unit directions.
func (f *Feature) Epsilons() []v3.Vec {
	return append([]v3.Vec(nil), f.eps...)
}

// IsCompatible reports whether e could be pushed. Zero-length directions
// are never compatible.
func (f *Feature) IsCompatible(e v3.Vec) bool {
	if e.Length() == 0 {
		return false
	}
	e = e.Normalize()

	switch len(f.eps) {
	case 0:
		return true
	case 1:
		return e.Dot(f.eps[0]) > -1+dotTolerance
	}
	for _, p := range f.eps {
		if p == e {
			return true
		}
	}
	if !f.Strict {
		return true
	}
	return f.separable(e)
}

// separable looks for a plane, spanned by the normal of two stored
// epsilons, that has the candidate and every stored epsilon strictly on
// the same side.
func (f *Feature) separable(e v3.Vec) bool {
	all := append(f.Epsilons(), e)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			n := all[i].Cross(all[j])
			if n.Length() == 0 {
				continue
			}
			if sameSide(all, n, i, j) || sameSide(all, n.Neg(), i, j) {
				return true
			}
		}
	}
	return false
}

func sameSide(all []v3.Vec, n v3.Vec, i, j int) bool {
	for k, p := range all {
		if k == i || k == j {
			continue
		}
		if p.Dot(n) <= 0 {
			return false
		}
	}
	return true
}

// Push adds e if it is compatible and not already present, reporting
// whether the feature accepted it.
func (f *Feature) Push(e v3.Vec) bool {
	if !f.IsCompatible(e) {
		return false
	}
	e = e.Normalize()
	for _, p := range f.eps {
		if p == e {
			return true
		}
	}
	f.eps = append(f.eps, e)
	return true
}

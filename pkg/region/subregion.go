package region

import "github.com/chazu/frep/pkg/interval"

// SubAxis is a contiguous run of samples of a parent Axis.
type SubAxis struct {
	Bounds interval.Interval
	Values []float64
	// Min is the index of the first sample in the parent axis.
	Min int
}

// Size returns the number of samples.
func (a SubAxis) Size() int { return len(a.Values) }

// split halves the axis. The lower half gets the smaller share when the
// sample count is odd.
func (a SubAxis) split() (SubAxis, SubAxis) {
	half := a.Size() / 2
	frac := float64(half) / float64(a.Size())
	mid := a.Bounds.Lo + a.Bounds.Width()*frac
	lo := SubAxis{Bounds: interval.New(a.Bounds.Lo, mid), Values: a.Values[:half], Min: a.Min}
	hi := SubAxis{Bounds: interval.New(mid, a.Bounds.Hi), Values: a.Values[half:], Min: a.Min + half}
	return lo, hi
}

// Subregion is a view over part of a Region.
type Subregion struct {
	X, Y, Z SubAxis
}

// Voxels returns the number of samples in the view.
func (s Subregion) Voxels() int {
	return s.X.Size() * s.Y.Size() * s.Z.Size()
}

// Axis returns the sub-axis selected by an axis bit.
func (s Subregion) Axis(bit int) SubAxis {
	switch bit {
	case AxisX:
		return s.X
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	}
	panic("region: bad axis bit")
}

// CanSplit reports whether any axis has more than one sample.
func (s Subregion) CanSplit() bool {
	return s.X.Size() > 1 || s.Y.Size() > 1 || s.Z.Size() > 1
}

// Split halves the view along its longest axis (by sample count), preferring
// Z then Y on ties, and returns the lower half first.
func (s Subregion) Split() (Subregion, Subregion) {
	lo, hi := s, s
	switch {
	case s.Z.Size() >= s.Y.Size() && s.Z.Size() >= s.X.Size():
		lo.Z, hi.Z = s.Z.split()
	case s.Y.Size() >= s.X.Size():
		lo.Y, hi.Y = s.Y.split()
	default:
		lo.X, hi.X = s.X.split()
	}
	return lo, hi
}

// CanSplitXY reports whether X or Y has more than one sample.
func (s Subregion) CanSplitXY() bool {
	return s.X.Size() > 1 || s.Y.Size() > 1
}

// SplitXY halves the view along the longer of X and Y.
func (s Subregion) SplitXY() (Subregion, Subregion) {
	lo, hi := s, s
	if s.Y.Size() >= s.X.Size() {
		lo.Y, hi.Y = s.Y.split()
	} else {
		lo.X, hi.X = s.X.split()
	}
	return lo, hi
}

// SplitXYN cuts the view into at most n pieces by repeatedly halving the
// largest piece in X or Y.
func (s Subregion) SplitXYN(n int) []Subregion {
	out := []Subregion{s}
	for len(out) < n {
		best := -1
		for i, r := range out {
			if r.CanSplitXY() && (best < 0 || r.Voxels() > out[best].Voxels()) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		lo, hi := out[best].SplitXY()
		out[best] = lo
		out = append(out, hi)
	}
	return out
}

// CanSplitEven reports whether every axis used by a dims-dimensional tree
// can be halved.
func (s Subregion) CanSplitEven(dims int) bool {
	return s.X.Size() > 1 && s.Y.Size() > 1 && (dims == 2 || s.Z.Size() > 1)
}

// SplitEven halves every axis used by a dims-dimensional tree at once. The
// child at index i takes the upper half of each axis whose bit is set in i.
func (s Subregion) SplitEven(dims int) []Subregion {
	xs := [2]SubAxis{}
	ys := [2]SubAxis{}
	zs := [2]SubAxis{s.Z, s.Z}
	xs[0], xs[1] = s.X.split()
	ys[0], ys[1] = s.Y.split()
	if dims == 3 {
		zs[0], zs[1] = s.Z.split()
	}
	out := make([]Subregion, 1<<dims)
	for i := range out {
		out[i] = Subregion{
			X: xs[i&AxisX],
			Y: ys[(i&AxisY)>>1],
			Z: zs[(i&AxisZ)>>2],
		}
	}
	return out
}

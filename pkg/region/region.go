// Package region describes the sampled volume an implicit surface is
// rendered over.
//
// A Region holds three sampled axes. Each axis stores the centres of its
// voxels, so an axis with bounds [lo, hi] and n samples places them at
// lo + (i+0.5)*(hi-lo)/n. Subregions are views over contiguous sample runs
// of a Region; splitting a subregion never copies samples.
package region

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/chazu/frep/pkg/interval"
)

var (
	// ErrResolution is returned for zero, negative or non-finite
	// resolutions.
	ErrResolution = errors.New("region: resolution must be positive and finite")
	// ErrSpan is returned for negative or non-finite spans, and for zero
	// spans on the X or Y axis.
	ErrSpan = errors.New("region: invalid span")
)

// Axis bits index the corners and children of a cell: bit set means the
// upper half along that axis.
const (
	AxisX = 1
	AxisY = 2
	AxisZ = 4
)

// Axis is one sampled dimension.
type Axis struct {
	Bounds interval.Interval
	Values []float64
}

// Size returns the number of samples.
func (a Axis) Size() int { return len(a.Values) }

// Expand grows i symmetrically so that its width is a whole number of
// voxels at res samples per unit. A zero resolution returns i unchanged.
func Expand(i interval.Interval, res float64) interval.Interval {
	if res == 0 {
		return i
	}
	span := i.Width()
	size := math.Ceil(res * span)
	extra := size/res - span
	return interval.New(i.Lo-extra/2, i.Hi+extra/2)
}

// NewAxis samples i at res samples per unit after expanding it.
func NewAxis(i interval.Interval, res float64) (Axis, error) {
	if err := checkResolution(res); err != nil {
		return Axis{}, err
	}
	if err := checkSpan(i, true); err != nil {
		return Axis{}, err
	}
	return newAxis(Expand(i, res), res), nil
}

func newAxis(b interval.Interval, res float64) Axis {
	size := max(1, int(math.Round(res*b.Width())))
	return axisN(b, size)
}

func axisN(b interval.Interval, size int) Axis {
	vs := make([]float64, size)
	step := b.Width() / float64(size)
	for i := range vs {
		vs[i] = b.Lo + (float64(i)+0.5)*step
	}
	return Axis{Bounds: b, Values: vs}
}

func checkResolution(res float64) error {
	if !(res > 0) || math.IsInf(res, 0) {
		return fmt.Errorf("%w: got %g", ErrResolution, res)
	}
	return nil
}

func checkSpan(i interval.Interval, allowZero bool) error {
	w := i.Width()
	switch {
	case math.IsNaN(w) || math.IsInf(w, 0) || math.IsInf(i.Lo, 0):
		return fmt.Errorf("%w: %v is not finite", ErrSpan, i)
	case w < 0:
		return fmt.Errorf("%w: %v is negative", ErrSpan, i)
	case w == 0 && !allowZero:
		return fmt.Errorf("%w: %v is empty", ErrSpan, i)
	}
	return nil
}

// Region is a sampled box.
type Region struct {
	X, Y, Z Axis
}

// New samples a box at the same resolution along every axis. A zero-width
// Z range gives a planar region with one Z sample.
func New(x, y, z interval.Interval, res float64) (Region, error) {
	return NewAnisotropic(x, y, z, res, res, res)
}

// NewAnisotropic samples a box with a separate resolution per axis.
func NewAnisotropic(x, y, z interval.Interval, rx, ry, rz float64) (Region, error) {
	for _, res := range []float64{rx, ry, rz} {
		if err := checkResolution(res); err != nil {
			return Region{}, err
		}
	}
	for i, a := range []interval.Interval{x, y, z} {
		if err := checkSpan(a, i == 2); err != nil {
			return Region{}, fmt.Errorf("axis %c: %w", "XYZ"[i], err)
		}
	}
	return Region{
		X: newAxis(Expand(x, rx), rx),
		Y: newAxis(Expand(y, ry), ry),
		Z: newAxis(Expand(z, rz), rz),
	}, nil
}

// Voxels returns the total number of samples.
func (r Region) Voxels() int {
	return r.X.Size() * r.Y.Size() * r.Z.Size()
}

// PowerOfTwo pads every axis used by a dims-dimensional tree to the same
// power-of-two sample count, growing bounds symmetrically so the voxel size
// is unchanged. In 2D the Z axis must hold a single sample and is kept.
func (r Region) PowerOfTwo(dims int) Region {
	if dims != 2 && dims != 3 {
		panic(fmt.Sprintf("region: PowerOfTwo needs 2 or 3 dims, got %d", dims))
	}
	if dims == 2 && r.Z.Size() != 1 {
		panic("region: planar region must have one Z sample")
	}
	size := max(r.X.Size(), r.Y.Size())
	if dims == 3 {
		size = max(size, r.Z.Size())
	}
	n := 1 << bits.Len(uint(size-1))

	out := Region{X: pad(r.X, n), Y: pad(r.Y, n), Z: r.Z}
	if dims == 3 {
		out.Z = pad(r.Z, n)
	}
	return out
}

func pad(a Axis, n int) Axis {
	if a.Size() == n {
		return a
	}
	span := a.Bounds.Width()
	d := span*float64(n)/float64(a.Size()) - span
	return axisN(interval.New(a.Bounds.Lo-d/2, a.Bounds.Hi+d/2), n)
}

// View returns a subregion covering all of r.
func (r Region) View() Subregion {
	return Subregion{
		X: SubAxis{Bounds: r.X.Bounds, Values: r.X.Values},
		Y: SubAxis{Bounds: r.Y.Bounds, Values: r.Y.Values},
		Z: SubAxis{Bounds: r.Z.Bounds, Values: r.Z.Values},
	}
}

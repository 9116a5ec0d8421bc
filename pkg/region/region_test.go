package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/frep/pkg/interval"
)

func TestAxisSamples(t *testing.T) {
	a, err := NewAxis(interval.New(-2, 2), 4)
	require.NoError(t, err)
	require.Equal(t, 16, a.Size())
	assert.InDelta(t, -2+0.125, a.Values[0], 1e-12)
	assert.InDelta(t, 2-0.125, a.Values[15], 1e-12)
}

func TestExpandPadsSymmetrically(t *testing.T) {
	// 0.5 units at 3 samples per unit needs 2 voxels, i.e. 2/3 units.
	got := Expand(interval.New(0, 0.5), 3)
	assert.InDelta(t, -1.0/12, got.Lo, 1e-12)
	assert.InDelta(t, 0.5+1.0/12, got.Hi, 1e-12)
	assert.Equal(t, interval.New(1, 2), Expand(interval.New(1, 2), 0))

	a, err := NewAxis(interval.New(0, 0.5), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Size())
}

func TestInvalidInputs(t *testing.T) {
	unit := interval.New(-1, 1)
	tests := []struct {
		name    string
		x, y, z interval.Interval
		res     float64
		want    error
	}{
		{"zero resolution", unit, unit, unit, 0, ErrResolution},
		{"negative resolution", unit, unit, unit, -1, ErrResolution},
		{"negative span", interval.New(1, -1), unit, unit, 1, ErrSpan},
		{"empty x", interval.Point(0), unit, unit, 1, ErrSpan},
		{"empty y", unit, interval.Point(3), unit, 1, ErrSpan},
		{"negative z", unit, unit, interval.New(2, 1), 1, ErrSpan},
		{"unbounded", interval.Entire(), unit, unit, 1, ErrSpan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.x, tt.y, tt.z, tt.res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlanarRegion(t *testing.T) {
	r, err := New(interval.New(-1, 1), interval.New(-1, 1), interval.Point(0), 10)
	require.NoError(t, err)
	assert.Equal(t, 20, r.X.Size())
	assert.Equal(t, 1, r.Z.Size())
	assert.Equal(t, 0.0, r.Z.Values[0])
	assert.Equal(t, 400, r.Voxels())
}

func TestPowerOfTwo(t *testing.T) {
	r, err := NewAnisotropic(interval.New(0, 15), interval.New(0, 4), interval.New(0, 3), 1, 1, 1)
	require.NoError(t, err)

	p := r.PowerOfTwo(3)
	for _, a := range []Axis{p.X, p.Y, p.Z} {
		assert.Equal(t, 16, a.Size())
		// Voxel size is unchanged.
		assert.InDelta(t, 1.0, a.Bounds.Width()/float64(a.Size()), 1e-12)
	}
	// Padding is symmetric about the original centre.
	assert.InDelta(t, 7.5, p.X.Bounds.Mid(), 1e-12)
	assert.InDelta(t, 2.0, p.Y.Bounds.Mid(), 1e-12)

	planar, err := New(interval.New(0, 3), interval.New(0, 5), interval.Point(1), 1)
	require.NoError(t, err)
	q := planar.PowerOfTwo(2)
	assert.Equal(t, 8, q.X.Size())
	assert.Equal(t, 8, q.Y.Size())
	assert.Equal(t, 1, q.Z.Size())

	assert.Panics(t, func() { r.PowerOfTwo(2) })
}

func TestSplit(t *testing.T) {
	r, err := NewAnisotropic(interval.New(0, 4), interval.New(0, 2), interval.New(0, 1), 1, 1, 1)
	require.NoError(t, err)
	v := r.View()

	lo, hi := v.Split()
	assert.Equal(t, 2, lo.X.Size())
	assert.Equal(t, 2, hi.X.Size())
	assert.Equal(t, 2, hi.X.Min)
	assert.Equal(t, interval.New(2, 4), hi.X.Bounds)
	assert.Equal(t, v.Voxels(), lo.Voxels()+hi.Voxels())

	parts := v.SplitXYN(4)
	total := 0
	for _, p := range parts {
		total += p.Voxels()
	}
	assert.Len(t, parts, 4)
	assert.Equal(t, v.Voxels(), total)
}

func TestSplitEvenOrdering(t *testing.T) {
	r, err := New(interval.New(0, 2), interval.New(0, 2), interval.New(0, 2), 1)
	require.NoError(t, err)
	kids := r.View().SplitEven(3)
	require.Len(t, kids, 8)
	for i, k := range kids {
		for _, bit := range []int{AxisX, AxisY, AxisZ} {
			want := 0.0
			if i&bit != 0 {
				want = 1
			}
			assert.Equal(t, want, k.Axis(bit).Bounds.Lo, "child %d axis %d", i, bit)
			assert.Equal(t, 1, k.Axis(bit).Size())
		}
	}
	assert.False(t, kids[0].CanSplitEven(3))

	planar, err := New(interval.New(0, 2), interval.New(0, 2), interval.Point(0), 1)
	require.NoError(t, err)
	assert.Len(t, planar.View().SplitEven(2), 4)
	assert.True(t, planar.View().CanSplitEven(2))
	assert.False(t, planar.View().CanSplitEven(3))
}

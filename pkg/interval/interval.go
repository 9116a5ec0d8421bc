// Package interval implements closed-range arithmetic used to bound the
// value of an implicit function over a box.
//
// Every operation is conservative: the true range of the function over the
// input ranges is contained in the result. Domain errors never fail; they
// produce NaN bounds or an unbounded interval instead.
package interval

import (
	"fmt"
	"math"
)

// Interval is the closed range [Lo, Hi].
type Interval struct {
	Lo, Hi float64
}

// New returns [lo, hi].
func New(lo, hi float64) Interval {
	return Interval{Lo: lo, Hi: hi}
}

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval {
	return Interval{Lo: v, Hi: v}
}

// Entire returns (-inf, +inf).
func Entire() Interval {
	return Interval{Lo: math.Inf(-1), Hi: math.Inf(1)}
}

func nan() Interval {
	return Interval{Lo: math.NaN(), Hi: math.NaN()}
}

func (a Interval) String() string {
	return fmt.Sprintf("[%g, %g]", a.Lo, a.Hi)
}

// Width returns Hi - Lo.
func (a Interval) Width() float64 { return a.Hi - a.Lo }

// Mid returns the midpoint.
func (a Interval) Mid() float64 { return a.Lo/2 + a.Hi/2 }

// Contains reports whether v lies in the closed range.
func (a Interval) Contains(v float64) bool {
	return a.Lo <= v && v <= a.Hi
}

// HasNaN reports whether either bound is NaN.
func (a Interval) HasNaN() bool {
	return math.IsNaN(a.Lo) || math.IsNaN(a.Hi)
}

// Add returns a + b.
func Add(a, b Interval) Interval {
	return Interval{a.Lo + b.Lo, a.Hi + b.Hi}
}

// Sub returns a - b.
func Sub(a, b Interval) Interval {
	return Interval{a.Lo - b.Hi, a.Hi - b.Lo}
}

// Neg returns -a.
func Neg(a Interval) Interval {
	return Interval{-a.Hi, -a.Lo}
}

// Scale returns k * a.
func Scale(a Interval, k float64) Interval {
	if k >= 0 {
		return Interval{mulBound(a.Lo, k), mulBound(a.Hi, k)}
	}
	return Interval{mulBound(a.Hi, k), mulBound(a.Lo, k)}
}

// mulBound treats 0 * inf as 0, which keeps products of bounded and
// unbounded ranges tight.
func mulBound(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

// Mul returns a * b.
func Mul(a, b Interval) Interval {
	if a.HasNaN() || b.HasNaN() {
		return nan()
	}
	c := [4]float64{
		mulBound(a.Lo, b.Lo), mulBound(a.Lo, b.Hi),
		mulBound(a.Hi, b.Lo), mulBound(a.Hi, b.Hi),
	}
	return hull(c[:])
}

// Div returns a / b. A divisor range that touches zero yields Entire.
func Div(a, b Interval) Interval {
	if a.HasNaN() || b.HasNaN() {
		return nan()
	}
	if b.Contains(0) {
		return Entire()
	}
	c := [4]float64{a.Lo / b.Lo, a.Lo / b.Hi, a.Hi / b.Lo, a.Hi / b.Hi}
	return hull(c[:])
}

func hull(vs []float64) Interval {
	out := Interval{math.Inf(1), math.Inf(-1)}
	for _, v := range vs {
		if math.IsNaN(v) {
			return nan()
		}
		out.Lo = math.Min(out.Lo, v)
		out.Hi = math.Max(out.Hi, v)
	}
	return out
}

// Abs returns |a|.
func Abs(a Interval) Interval {
	switch {
	case a.Lo >= 0:
		return a
	case a.Hi <= 0:
		return Neg(a)
	}
	return Interval{0, math.Max(-a.Lo, a.Hi)}
}

// Square returns a².
func Square(a Interval) Interval {
	b := Abs(a)
	return Interval{b.Lo * b.Lo, b.Hi * b.Hi}
}

// Sqrt returns the square root of the non-negative part of a.
func Sqrt(a Interval) Interval {
	if a.Hi < 0 || a.HasNaN() {
		return nan()
	}
	return Interval{math.Sqrt(math.Max(a.Lo, 0)), math.Sqrt(a.Hi)}
}

// containsPhase reports whether some p + k*period lies in [lo, hi].
func containsPhase(lo, hi, p, period float64) bool {
	k := math.Ceil((lo - p) / period)
	return p+k*period <= hi
}

// Sin returns sin(a).
func Sin(a Interval) Interval {
	if a.HasNaN() || math.IsInf(a.Lo, 0) || math.IsInf(a.Hi, 0) || a.Width() >= 2*math.Pi {
		if a.HasNaN() {
			return nan()
		}
		return Interval{-1, 1}
	}
	lo, hi := math.Sin(a.Lo), math.Sin(a.Hi)
	if lo > hi {
		lo, hi = hi, lo
	}
	if containsPhase(a.Lo, a.Hi, math.Pi/2, 2*math.Pi) {
		hi = 1
	}
	if containsPhase(a.Lo, a.Hi, 3*math.Pi/2, 2*math.Pi) {
		lo = -1
	}
	return Interval{lo, hi}
}

// Cos returns cos(a).
func Cos(a Interval) Interval {
	return Sin(Add(a, Point(math.Pi/2)))
}

// Tan returns tan(a); ranges that cross a pole yield Entire.
func Tan(a Interval) Interval {
	if a.HasNaN() {
		return nan()
	}
	if a.Width() >= math.Pi || containsPhase(a.Lo, a.Hi, math.Pi/2, math.Pi) {
		return Entire()
	}
	return Interval{math.Tan(a.Lo), math.Tan(a.Hi)}
}

func clampUnit(a Interval) (Interval, bool) {
	if a.HasNaN() || a.Hi < -1 || a.Lo > 1 {
		return nan(), false
	}
	return Interval{math.Max(a.Lo, -1), math.Min(a.Hi, 1)}, true
}

// Asin returns asin of the part of a inside [-1, 1].
func Asin(a Interval) Interval {
	c, ok := clampUnit(a)
	if !ok {
		return c
	}
	return Interval{math.Asin(c.Lo), math.Asin(c.Hi)}
}

// Acos returns acos of the part of a inside [-1, 1].
func Acos(a Interval) Interval {
	c, ok := clampUnit(a)
	if !ok {
		return c
	}
	return Interval{math.Acos(c.Hi), math.Acos(c.Lo)}
}

// Atan returns atan(a).
func Atan(a Interval) Interval {
	return Interval{math.Atan(a.Lo), math.Atan(a.Hi)}
}

// Exp returns e^a.
func Exp(a Interval) Interval {
	return Interval{math.Exp(a.Lo), math.Exp(a.Hi)}
}

// Min returns the pointwise minimum of a and b.
func Min(a, b Interval) Interval {
	return Interval{math.Min(a.Lo, b.Lo), math.Min(a.Hi, b.Hi)}
}

// Max returns the pointwise maximum of a and b.
func Max(a, b Interval) Interval {
	return Interval{math.Max(a.Lo, b.Lo), math.Max(a.Hi, b.Hi)}
}

// Atan2 returns atan2(y, x). Boxes that touch the origin or straddle the
// negative x axis yield [-pi, pi].
func Atan2(y, x Interval) Interval {
	if y.HasNaN() || x.HasNaN() {
		return nan()
	}
	if (x.Contains(0) && y.Contains(0)) || (x.Lo < 0 && y.Contains(0)) {
		return Interval{-math.Pi, math.Pi}
	}
	c := [4]float64{
		math.Atan2(y.Lo, x.Lo), math.Atan2(y.Lo, x.Hi),
		math.Atan2(y.Hi, x.Lo), math.Atan2(y.Hi, x.Hi),
	}
	return hull(c[:])
}

// Pow returns a^n for an integral exponent.
func Pow(a Interval, n int) Interval {
	switch {
	case n == 0:
		return Point(1)
	case n < 0:
		return Div(Point(1), Pow(a, -n))
	case n%2 == 0:
		b := Abs(a)
		return Interval{math.Pow(b.Lo, float64(n)), math.Pow(b.Hi, float64(n))}
	}
	return Interval{math.Pow(a.Lo, float64(n)), math.Pow(a.Hi, float64(n))}
}

// Root returns the real n-th root of v, negative for odd n and negative v.
func Root(v float64, n int) float64 {
	if v < 0 && n%2 == 1 {
		return -math.Pow(-v, 1/float64(n))
	}
	return math.Pow(v, 1/float64(n))
}

// NthRoot returns the n-th root of a, n > 0.
func NthRoot(a Interval, n int) Interval {
	if n%2 == 0 {
		if a.Hi < 0 || a.HasNaN() {
			return nan()
		}
		return Interval{Root(math.Max(a.Lo, 0), n), Root(a.Hi, n)}
	}
	return Interval{Root(a.Lo, n), Root(a.Hi, n)}
}

// Mod returns a range containing a mod b. Only strictly positive moduli
// give a bounded result, [0, b.Hi].
func Mod(a, b Interval) Interval {
	if a.HasNaN() || b.HasNaN() {
		return nan()
	}
	if b.Lo > 0 {
		return Interval{0, b.Hi}
	}
	return Entire()
}

// NanFill returns b when a has a NaN bound, a otherwise.
func NanFill(a, b Interval) Interval {
	if a.HasNaN() {
		return b
	}
	return a
}

package contour

import (
	"math"

	polyclip "github.com/akavel/polyclip-go"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Polygon converts the closed loops into a polyclip polygon. Open chains
// are left out.
func (c *Contours) Polygon() polyclip.Polygon {
	p := make(polyclip.Polygon, 0, len(c.Loops))
	for _, loop := range c.Loops {
		pts := make(polyclip.Contour, 0, len(loop)-1)
		for _, v := range loop[:len(loop)-1] {
			pts = append(pts, polyclip.Point{X: v.X, Y: v.Y})
		}
		p = append(p, pts)
	}
	return p
}

// Contains reports whether p lies inside the shape, counting loops with
// the even-odd rule.
func (c *Contours) Contains(p v2.Vec) bool {
	return evenOdd(c.Polygon(), polyclip.Point{X: p.X, Y: p.Y})
}

// Area returns the area enclosed by the loops under the even-odd rule: a
// loop nested inside an odd number of others is a hole. Winding is ignored.
func (c *Contours) Area() float64 {
	return area(c.Polygon())
}

// Overlap returns the area shared by c and o.
func (c *Contours) Overlap(o *Contours) float64 {
	return area(c.Polygon().Construct(polyclip.INTERSECTION, o.Polygon()))
}

// Union returns the area covered by c or o.
func (c *Contours) Union(o *Contours) float64 {
	return area(c.Polygon().Construct(polyclip.UNION, o.Polygon()))
}

func evenOdd(p polyclip.Polygon, pt polyclip.Point) bool {
	in := false
	for _, ct := range p {
		if ct.Contains(pt) {
			in = !in
		}
	}
	return in
}

// area sums contour areas, subtracting contours nested inside an odd
// number of others. Contour winding is ignored.
func area(p polyclip.Polygon) float64 {
	total := 0.0
	for i, ct := range p {
		if len(ct) < 3 {
			continue
		}
		depth := 0
		for j, other := range p {
			if i != j && other.Contains(ct[0]) {
				depth++
			}
		}
		a := math.Abs(shoelace(ct))
		if depth%2 == 1 {
			a = -a
		}
		total += a
	}
	return total
}

func shoelace(ct polyclip.Contour) float64 {
	s := 0.0
	for i, a := range ct {
		b := ct[(i+1)%len(ct)]
		s += a.X*b.Y - b.X*a.Y
	}
	return s / 2
}

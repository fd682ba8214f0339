package docscan

import (
	"errors"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

var (
	// ErrInvalidImage means the input image has a zero dimension.
	ErrInvalidImage = errors.New("invalid image: zero dimension")

	// ErrNoDocument means detection found no qualifying quadrilateral.
	// Callers should fall back to FallbackQuad rather than treat this
	// as a failure.
	ErrNoDocument = errors.New("no document found")

	// ErrDegenerateQuad means the quad is self-intersecting or one of
	// its projected sides rounds to zero.
	ErrDegenerateQuad = errors.New("degenerate quad")
)

// DefaultFallbackMargin is the inset, in pixels, used to build a quad
// from the image bounds when detection finds nothing.
const DefaultFallbackMargin = 100.0

// marginOrDefault resolves a configured fallback margin. Zero in a
// config means unset, not a zero-pixel inset.
func marginOrDefault(m float64) float64 {
	if m == 0 {
		return DefaultFallbackMargin
	}
	return m
}

// Quad is a document boundary: four corners with fixed roles, in the
// order top-left, top-right, bottom-right, bottom-left. The corners
// form a simple polygon but need not be a perfect rectangle.
type Quad [4]r2.Point

func (q Quad) TopLeft() r2.Point     { return q[0] }
func (q Quad) TopRight() r2.Point    { return q[1] }
func (q Quad) BottomRight() r2.Point { return q[2] }
func (q Quad) BottomLeft() r2.Point  { return q[3] }

// Centroid returns the mean of the four corners.
func (q Quad) Centroid() r2.Point {
	var c r2.Point
	for _, p := range q {
		c = c.Add(p)
	}
	return c.Mul(0.25)
}

// Area returns the enclosed area via the shoelace formula.
func (q Quad) Area() float64 {
	return math.Abs(polygonArea(q[:]))
}

// OrderCorners assigns the canonical roles to four points. Contour
// extraction does not guarantee winding order or a starting vertex, so
// roles are re-derived from coordinate sums and differences:
// top-left has the smallest x+y, bottom-right the largest x+y,
// top-right the largest x-y, bottom-left the smallest x-y.
// Applying it to an already-ordered quad is a no-op.
func OrderCorners(pts [4]r2.Point) Quad {
	var q Quad
	tl, br := math.MaxFloat64, -math.MaxFloat64
	tr, bl := -math.MaxFloat64, math.MaxFloat64
	for _, p := range pts {
		sum := p.X + p.Y
		diff := p.X - p.Y
		if sum < tl {
			tl = sum
			q[0] = p
		}
		if sum > br {
			br = sum
			q[2] = p
		}
		if diff > tr {
			tr = diff
			q[1] = p
		}
		if diff < bl {
			bl = diff
			q[3] = p
		}
	}
	return q
}

// FallbackQuad builds a quad inset from the image bounds by margin
// pixels on every side. The margin shrinks for images too small to
// hold it, so the result is always a valid quad.
func FallbackQuad(bounds image.Rectangle, margin float64) Quad {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	mx, my := margin, margin
	if 2*mx >= w {
		mx = w / 4
	}
	if 2*my >= h {
		my = h / 4
	}
	x0, y0 := float64(bounds.Min.X), float64(bounds.Min.Y)
	return Quad{
		{X: x0 + mx, Y: y0 + my},
		{X: x0 + w - mx, Y: y0 + my},
		{X: x0 + w - mx, Y: y0 + h - my},
		{X: x0 + mx, Y: y0 + h - my},
	}
}

// selfIntersecting reports whether the quad's boundary crosses itself.
// Only opposite side pairs can cross: TL-TR vs BR-BL and TR-BR vs BL-TL.
func (q Quad) selfIntersecting() bool {
	return segmentsCross(q[0], q[1], q[2], q[3]) ||
		segmentsCross(q[1], q[2], q[3], q[0])
}

func segmentsCross(a, b, c, d r2.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b r2.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func dist(a, b r2.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func polygonArea(pts []r2.Point) float64 {
	area := 0.0
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return area / 2
}

package docscan

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
)

// Rectify warps the quadrilateral region q of img into an upright
// rectangle, correcting for perspective skew. The output dimensions
// come from the quad itself: each is the smaller of the two opposite
// edge lengths. Using the smaller edge means the output never extends
// past the photographed document on its narrower side, at the cost of
// slightly cropping the wider side of a skewed shot. The source image
// is not modified.
func Rectify(img image.Image, q Quad) (*image.RGBA, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrInvalidImage
	}
	if q.selfIntersecting() {
		return nil, fmt.Errorf("%w: sides cross", ErrDegenerateQuad)
	}

	w := int(math.Round(math.Min(dist(q[0], q[1]), dist(q[3], q[2]))))
	h := int(math.Round(math.Min(dist(q[0], q[3]), dist(q[1], q[2]))))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %dx%d output", ErrDegenerateQuad, w, h)
	}

	target := Quad{
		{X: 0, Y: 0},
		{X: float64(w), Y: 0},
		{X: float64(w), Y: float64(h)},
		{X: 0, Y: float64(h)},
	}
	toSource := quadToQuad(target, q)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := toSource.apply(r2.Point{X: float64(x), Y: float64(y)})
			out.SetRGBA(x, y, bilinearSample(img, src.X, src.Y))
		}
	}
	return out, nil
}

// bilinearSample interpolates the four pixels around (x, y). Samples
// outside the image clamp to the nearest edge pixel.
func bilinearSample(img image.Image, x, y float64) color.RGBA {
	b := img.Bounds()
	x = clampF(x, float64(b.Min.X), float64(b.Max.X-1))
	y = clampF(y, float64(b.Min.Y), float64(b.Max.Y-1))

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= b.Max.X {
		x1 = b.Max.X - 1
	}
	if y1 >= b.Max.Y {
		y1 = b.Max.Y - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	r00, g00, b00 := rgbAt(img, x0, y0)
	r10, g10, b10 := rgbAt(img, x1, y0)
	r01, g01, b01 := rgbAt(img, x0, y1)
	r11, g11, b11 := rgbAt(img, x1, y1)

	r := lerp(lerp(r00, r10, fx), lerp(r01, r11, fx), fy)
	g := lerp(lerp(g00, g10, fx), lerp(g01, g11, fx), fy)
	bl := lerp(lerp(b00, b10, fx), lerp(b01, b11, fx), fy)

	return color.RGBA{uint8(r + 0.5), uint8(g + 0.5), uint8(bl + 0.5), 255}
}

func rgbAt(img image.Image, x, y int) (float64, float64, float64) {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r >> 8), float64(g >> 8), float64(b >> 8)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

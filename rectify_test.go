package docscan

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

// gradientImage builds an image whose every pixel is unique, so warp
// errors show up as value mismatches.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func channelDiff(a, b color.RGBA) int {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	total := d(a.R, b.R)
	if v := d(a.G, b.G); v > total {
		total = v
	}
	if v := d(a.B, b.B); v > total {
		total = v
	}
	return total
}

func TestRectifyAxisAlignedIsCrop(t *testing.T) {
	src := gradientImage(200, 150)

	q := Quad{
		{X: 30, Y: 20},
		{X: 130, Y: 20},
		{X: 130, Y: 120},
		{X: 30, Y: 120},
	}

	out, err := Rectify(src, q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 100)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 100)

	// an axis-aligned quad rectifies to a plain crop
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			want := src.RGBAAt(30+x, 20+y)
			got := out.RGBAAt(x, y)
			if channelDiff(want, got) > 1 {
				t.Fatalf("pixel (%d,%d): got %v want %v", x, y, got, want)
			}
		}
	}
}

func TestRectifyOutputDimensions(t *testing.T) {
	// 1000x800 photo, skewed quad: output size comes from the quad's
	// shorter opposite edges, never from the image
	src := gradientImage(1000, 800)

	q := OrderCorners([4]r2.Point{
		{X: 100, Y: 50},
		{X: 900, Y: 60},
		{X: 890, Y: 750},
		{X: 110, Y: 740},
	})

	out, err := Rectify(src, q)
	test.That(t, err, test.ShouldBeNil)

	// min(dist(TL,TR)=800.06, dist(BL,BR)=780.06) rounds to 780
	// min(dist(TL,BL)=690.07, dist(TR,BR)=690.07) rounds to 690
	test.That(t, out.Bounds().Dx(), test.ShouldEqual, 780)
	test.That(t, out.Bounds().Dy(), test.ShouldEqual, 690)
}

func TestRectifyCyclicStartInvariance(t *testing.T) {
	src := gradientImage(400, 300)

	pts := [4]r2.Point{
		{X: 80, Y: 30},
		{X: 360, Y: 70},
		{X: 330, Y: 270},
		{X: 50, Y: 240},
	}

	base, err := Rectify(src, OrderCorners(pts))
	test.That(t, err, test.ShouldBeNil)

	var rotated [4]r2.Point
	for i := range pts {
		rotated[i] = pts[(i+2)%4]
	}
	other, err := Rectify(src, OrderCorners(rotated))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, other.Bounds(), test.ShouldResemble, base.Bounds())
	test.That(t, other.Pix, test.ShouldResemble, base.Pix)
}

func TestRectifyZeroSide(t *testing.T) {
	src := gradientImage(200, 150)

	q := Quad{
		{X: 50, Y: 50},
		{X: 50, Y: 50}, // TL == TR
		{X: 50, Y: 120},
		{X: 50, Y: 120},
	}

	_, err := Rectify(src, q)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateQuad), test.ShouldBeTrue)
}

func TestRectifySelfIntersecting(t *testing.T) {
	src := gradientImage(200, 150)

	bowtie := Quad{
		{X: 10, Y: 10},
		{X: 150, Y: 120},
		{X: 150, Y: 10},
		{X: 10, Y: 120},
	}

	_, err := Rectify(src, bowtie)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateQuad), test.ShouldBeTrue)
}

func TestRectifyInvalidImage(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	_, err := Rectify(empty, FallbackQuad(image.Rect(0, 0, 100, 100), 10))
	test.That(t, errors.Is(err, ErrInvalidImage), test.ShouldBeTrue)
}

func TestRectifyDoesNotMutateSource(t *testing.T) {
	src := gradientImage(100, 100)
	before := make([]uint8, len(src.Pix))
	copy(before, src.Pix)

	_, err := Rectify(src, FallbackQuad(src.Bounds(), 10))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Pix, test.ShouldResemble, before)
}

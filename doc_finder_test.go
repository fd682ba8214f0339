package docscan

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func uniformImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// drawFilledQuad fills a convex quad, used to synthesize a "document"
// on a contrasting background.
func drawFilledQuad(img *image.RGBA, q Quad, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := r2.Point{X: float64(x), Y: float64(y)}
			inside := true
			for i := 0; i < 4 && inside; i++ {
				if cross(q[i], q[(i+1)%4], p) < 0 {
					inside = false
				}
			}
			if inside {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func assertCornerNear(t *testing.T, got, want r2.Point, tolerance float64) {
	t.Helper()
	d := math.Hypot(got.X-want.X, got.Y-want.Y)
	t.Logf("corner %v, expected %v, distance %.1f", got, want, d)
	test.That(t, d, test.ShouldBeLessThan, tolerance)
}

func TestFindDocumentRectangle(t *testing.T) {
	paper := color.RGBA{60, 55, 50, 255}
	desk := color.RGBA{230, 228, 225, 255}

	img := uniformImage(400, 300, desk)
	want := Quad{
		{X: 60, Y: 40},
		{X: 340, Y: 40},
		{X: 340, Y: 260},
		{X: 60, Y: 260},
	}
	drawFilledQuad(img, want, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	for i := range want {
		assertCornerNear(t, got[i], want[i], 8)
	}
}

func TestFindDocumentSkewed(t *testing.T) {
	paper := color.RGBA{235, 235, 230, 255}
	desk := color.RGBA{40, 42, 45, 255}

	img := uniformImage(400, 300, desk)
	want := Quad{
		{X: 80, Y: 30},
		{X: 360, Y: 70},
		{X: 330, Y: 270},
		{X: 50, Y: 240},
	}
	drawFilledQuad(img, want, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	for i := range want {
		assertCornerNear(t, got[i], want[i], 8)
	}
}

func TestFindDocumentDownscaled(t *testing.T) {
	// large enough to exercise the working-resolution path; corners
	// must come back in source coordinates
	paper := color.RGBA{245, 242, 238, 255}
	desk := color.RGBA{30, 30, 35, 255}

	img := uniformImage(1600, 1200, desk)
	want := Quad{
		{X: 250, Y: 180},
		{X: 1350, Y: 220},
		{X: 1300, Y: 1050},
		{X: 300, Y: 1000},
	}
	drawFilledQuad(img, want, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	for i := range want {
		assertCornerNear(t, got[i], want[i], 16)
	}
}

func TestFindDocumentPicksLargest(t *testing.T) {
	paper := color.RGBA{240, 240, 240, 255}
	desk := color.RGBA{50, 50, 50, 255}

	img := uniformImage(400, 300, desk)
	small := Quad{
		{X: 20, Y: 20},
		{X: 100, Y: 20},
		{X: 100, Y: 100},
		{X: 20, Y: 100},
	}
	big := Quad{
		{X: 140, Y: 40},
		{X: 380, Y: 40},
		{X: 380, Y: 280},
		{X: 140, Y: 280},
	}
	drawFilledQuad(img, small, paper)
	drawFilledQuad(img, big, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	for i := range big {
		assertCornerNear(t, got[i], big[i], 8)
	}
}

func TestFindDocumentTieBreakCenter(t *testing.T) {
	// two documents of equal size: the one closer to the frame center
	// wins the near-tie
	paper := color.RGBA{240, 240, 240, 255}
	desk := color.RGBA{50, 50, 50, 255}

	img := uniformImage(400, 300, desk)
	corner := Quad{
		{X: 10, Y: 10},
		{X: 110, Y: 10},
		{X: 110, Y: 110},
		{X: 10, Y: 110},
	}
	centered := Quad{
		{X: 150, Y: 100},
		{X: 250, Y: 100},
		{X: 250, Y: 200},
		{X: 150, Y: 200},
	}
	drawFilledQuad(img, corner, paper)
	drawFilledQuad(img, centered, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	for i := range centered {
		assertCornerNear(t, got[i], centered[i], 8)
	}
}

func TestPickBestCandidateWindow(t *testing.T) {
	// the 1% near-tie window is anchored to the largest candidate:
	// candidates below it never win, no matter how centered
	rect := func(x0, y0, x1, y1 int) [4]image.Point {
		return [4]image.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	}

	largest := quadCandidate{corners: rect(10, 10, 110, 110), area: 10000}
	nearTie := quadCandidate{corners: rect(160, 100, 260, 200), area: 9910}
	belowWindow := quadCandidate{corners: rect(150, 100, 250, 200), area: 9850}

	got := pickBestCandidate([]quadCandidate{largest, nearTie, belowWindow}, 400, 300)
	test.That(t, got.corners, test.ShouldResemble, nearTie.corners)

	// without a competitor inside the window the largest stands
	got = pickBestCandidate([]quadCandidate{largest, belowWindow}, 400, 300)
	test.That(t, got.corners, test.ShouldResemble, largest.corners)
}

func TestFindDocumentBlank(t *testing.T) {
	img := uniformImage(400, 300, color.RGBA{200, 200, 200, 255})

	_, err := FindDocument(img)
	test.That(t, errors.Is(err, ErrNoDocument), test.ShouldBeTrue)
}

func TestFindDocumentInvalidImage(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	_, err := FindDocument(empty)
	test.That(t, errors.Is(err, ErrInvalidImage), test.ShouldBeTrue)
}

func TestFindDocumentCanonicalOrder(t *testing.T) {
	paper := color.RGBA{240, 238, 235, 255}
	desk := color.RGBA{35, 35, 40, 255}

	img := uniformImage(400, 300, desk)
	drawFilledQuad(img, Quad{
		{X: 80, Y: 30},
		{X: 360, Y: 70},
		{X: 330, Y: 270},
		{X: 50, Y: 240},
	}, paper)

	got, err := FindDocument(img)
	test.That(t, err, test.ShouldBeNil)

	// re-ordering an already-canonical result is a no-op
	test.That(t, OrderCorners([4]r2.Point(got)), test.ShouldResemble, got)

	test.That(t, got.TopLeft().X, test.ShouldBeLessThan, got.TopRight().X)
	test.That(t, got.BottomLeft().X, test.ShouldBeLessThan, got.BottomRight().X)
	test.That(t, got.TopLeft().Y, test.ShouldBeLessThan, got.BottomLeft().Y)
	test.That(t, got.TopRight().Y, test.ShouldBeLessThan, got.BottomRight().Y)
}

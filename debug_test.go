package docscan

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestDocumentDebugImageOffsetBounds(t *testing.T) {
	// source images from sub-image views have a non-zero origin; the
	// overlay must still land on the quad
	bounds := image.Rect(50, 20, 250, 170)
	src := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			src.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	q := Quad{
		{X: 100, Y: 60},
		{X: 200, Y: 60},
		{X: 200, Y: 140},
		{X: 100, Y: 140},
	}
	out := DocumentDebugImage(src, q)
	test.That(t, out.Bounds(), test.ShouldResemble, bounds)

	red := color.RGBA{255, 0, 0, 255}
	test.That(t, out.RGBAAt(150, 60), test.ShouldResemble, red)  // top edge
	test.That(t, out.RGBAAt(100, 100), test.ShouldResemble, red) // left edge
}

package docscan

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DocumentDebugImage draws the quad boundary on a copy of img, marking
// each corner with a circle, a cross and its role label.
func DocumentDebugImage(img image.Image, q Quad) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, img.Bounds(), img, img.Bounds().Min, draw.Src)

	red := color.RGBA{255, 0, 0, 255}
	labels := []string{"TL", "TR", "BR", "BL"}

	for i := range q {
		a := q[i]
		b := q[(i+1)%4]
		drawLine(out, int(a.X), int(a.Y), int(b.X), int(b.Y), red)
	}
	for i, p := range q {
		x, y := int(p.X), int(p.Y)
		drawCircle(out, x, y, 10, red)
		drawCross(out, x, y, 15, red)
		drawString(out, x+12, y-8, labels[i], red)
	}
	return out
}

// EdgeDebugImage renders the detection edge map as a heat image: edge
// magnitude drives hue from blue (weak) to red (strong).
func EdgeDebugImage(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := makeGrayImage(img)
	edges := sobelEdgeDetection(gray, width, height)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			mag := float64(edges[y][x]) / 255.0
			// 240 is blue, 0 is red
			c := colorful.Hsv(240*(1-mag), 1, mag)
			out.Set(x, y, c)
		}
	}
	return out
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	b := img.Bounds()
	steps := int(math.Hypot(float64(x1-x0), float64(y1-y0)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(t*float64(x1-x0))
		y := y0 + int(t*float64(y1-y0))
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.Set(x, y, c)
		}
	}
}

func drawCircle(img *image.RGBA, cx, cy, radius int, c color.Color) {
	b := img.Bounds()
	for angle := 0.0; angle < 360; angle += 1 {
		x := cx + int(float64(radius)*math.Cos(angle*math.Pi/180))
		y := cy + int(float64(radius)*math.Sin(angle*math.Pi/180))
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.Set(x, y, c)
		}
	}
}

func drawCross(img *image.RGBA, cx, cy, size int, c color.Color) {
	b := img.Bounds()
	for d := -size; d <= size; d++ {
		x := cx + d
		if x >= b.Min.X && x < b.Max.X && cy >= b.Min.Y && cy < b.Max.Y {
			img.Set(x, cy, c)
		}
		y := cy + d
		if cx >= b.Min.X && cx < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.Set(cx, y, c)
		}
	}
}

func drawString(dst *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

package docscan

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	xdraw "golang.org/x/image/draw"
)

// Detection tuning constants. These are deliberate defaults, not
// runtime parameters: detection always runs the same pipeline.
const (
	// maxWorkingDim bounds the resolution detection runs at. Corners
	// are mapped back to source resolution afterwards.
	maxWorkingDim = 640

	// edgeThreshold is the minimum Sobel magnitude for a pixel to
	// count as an edge.
	edgeThreshold = 60

	// closeRadius is the structuring radius for the morphological
	// closing that bridges small gaps in document borders.
	closeRadius = 2

	// minAreaFrac is the minimum candidate area as a fraction of the
	// working image area.
	minAreaFrac = 0.03

	// approxTolFrac sets the polygon approximation tolerance as a
	// fraction of the contour perimeter.
	approxTolFrac = 0.02

	// minComponentSize ignores edge blobs too small to be a border.
	minComponentSize = 60

	// minSidePx rejects thin degenerate candidates (working scale).
	minSidePx = 10
)

// FindDocument locates the largest document-like quadrilateral in img
// and returns its corners in canonical role order. It is a pure
// function of its input. Returns ErrNoDocument when nothing qualifies
// and ErrInvalidImage for a zero-dimension image.
func FindDocument(img image.Image) (Quad, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Quad{}, ErrInvalidImage
	}

	work, scaleX, scaleY := downscale(img, maxWorkingDim)
	width, height := work.Bounds().Dx(), work.Bounds().Dy()

	gray := makeGrayImage(work)
	gray = boxBlur(gray, width, height)

	edges := sobelEdgeDetection(gray, width, height)
	mask := thresholdMask(edges, width, height, edgeThreshold)

	// Closing: dilate then erode, so broken border segments join into
	// one contour before components are extracted.
	mask = dilateMask(mask, width, height, closeRadius)
	mask = erodeMask(mask, width, height, closeRadius)

	candidates := findQuadCandidates(mask, width, height)
	if len(candidates) == 0 {
		return Quad{}, ErrNoDocument
	}

	best := pickBestCandidate(candidates, width, height)

	var pts [4]r2.Point
	for i, p := range best.corners {
		pts[i] = r2.Point{X: float64(p.X)*scaleX + float64(bounds.Min.X), Y: float64(p.Y)*scaleY + float64(bounds.Min.Y)}
	}
	return OrderCorners(pts), nil
}

type quadCandidate struct {
	corners [4]image.Point
	area    float64
}

// findQuadCandidates extracts connected edge components, approximates
// each one's convex hull to a polygon, and keeps the convex 4-gons
// that are large enough to be a document.
func findQuadCandidates(mask [][]bool, width, height int) []quadCandidate {
	labels := make([][]int, height)
	for y := range labels {
		labels[y] = make([]int, width)
	}

	minArea := minAreaFrac * float64(width*height)
	var candidates []quadCandidate
	currentLabel := 0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y][x] || labels[y][x] != 0 {
				continue
			}
			currentLabel++
			component := collectComponent(mask, labels, x, y, width, height, currentLabel)
			if len(component) < minComponentSize {
				continue
			}

			hull := convexHull(component)
			if len(hull) < 4 {
				continue
			}
			poly := approxPolygon(hull, approxTolFrac*perimeter(hull))
			if len(poly) != 4 || !isConvexQuad(poly) {
				continue
			}

			area := math.Abs(polygonAreaInt(poly))
			if area < minArea || shortestSide(poly) < minSidePx {
				continue
			}
			candidates = append(candidates, quadCandidate{
				corners: [4]image.Point{poly[0], poly[1], poly[2], poly[3]},
				area:    area,
			})
		}
	}
	return candidates
}

// pickBestCandidate takes the largest candidate; near-ties within 1%
// go to the one whose centroid is closer to the image center.
func pickBestCandidate(candidates []quadCandidate, width, height int) quadCandidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})

	best := candidates[0]
	cx, cy := float64(width)/2, float64(height)/2
	bestDist := centroidDist(best.corners, cx, cy)
	for _, c := range candidates[1:] {
		// the window is fixed by the largest candidate, not the running
		// winner
		if c.area < candidates[0].area*0.99 {
			break
		}
		if d := centroidDist(c.corners, cx, cy); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func centroidDist(corners [4]image.Point, cx, cy float64) float64 {
	sx, sy := 0, 0
	for _, p := range corners {
		sx += p.X
		sy += p.Y
	}
	return math.Hypot(float64(sx)/4-cx, float64(sy)/4-cy)
}

// downscale bounds the larger image dimension to maxDim and reports
// the per-axis factors that map working coordinates back to source
// coordinates. Images already small enough pass through untouched.
func downscale(img image.Image, maxDim int) (image.Image, float64, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return img, 1, 1
	}

	scale := float64(maxDim) / float64(longest)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, float64(w) / float64(nw), float64(h) / float64(nh)
}

func makeGrayImage(img image.Image) [][]int {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	gray := make([][]int, height)
	for y := range height {
		gray[y] = make([]int, width)
		for x := range width {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			r, g, b, _ := c.RGBA()
			gray[y][x] = (int(r>>8) + int(g>>8) + int(b>>8)) / 3
		}
	}
	return gray
}

// boxBlur smooths with a 3x3 mean filter to suppress sensor noise
// before edge extraction. Border pixels keep their original value.
func boxBlur(gray [][]int, width, height int) [][]int {
	out := make([][]int, height)
	for y := range height {
		out[y] = make([]int, width)
		copy(out[y], gray[y])
	}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += gray[y+dy][x+dx]
				}
			}
			out[y][x] = sum / 9
		}
	}
	return out
}

// sobelEdgeDetection computes edge magnitude using the Sobel operator.
func sobelEdgeDetection(gray [][]int, width, height int) [][]int {
	edges := make([][]int, height)
	for y := range height {
		edges[y] = make([]int, width)
	}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -gray[y-1][x-1] + gray[y-1][x+1] +
				-2*gray[y][x-1] + 2*gray[y][x+1] +
				-gray[y+1][x-1] + gray[y+1][x+1]

			gy := -gray[y-1][x-1] - 2*gray[y-1][x] - gray[y-1][x+1] +
				gray[y+1][x-1] + 2*gray[y+1][x] + gray[y+1][x+1]

			mag := int(math.Sqrt(float64(gx*gx + gy*gy)))
			if mag > 255 {
				mag = 255
			}
			edges[y][x] = mag
		}
	}

	return edges
}

func thresholdMask(edges [][]int, width, height, threshold int) [][]bool {
	mask := make([][]bool, height)
	for y := range height {
		mask[y] = make([]bool, width)
		for x := range width {
			mask[y][x] = edges[y][x] >= threshold
		}
	}
	return mask
}

func dilateMask(mask [][]bool, width, height, radius int) [][]bool {
	result := make([][]bool, height)
	for y := range height {
		result[y] = make([]bool, width)
	}

	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			anySet := false
			for dy := -radius; dy <= radius && !anySet; dy++ {
				for dx := -radius; dx <= radius && !anySet; dx++ {
					if mask[y+dy][x+dx] {
						anySet = true
					}
				}
			}
			result[y][x] = anySet
		}
	}

	return result
}

func erodeMask(mask [][]bool, width, height, radius int) [][]bool {
	result := make([][]bool, height)
	for y := range height {
		result[y] = make([]bool, width)
	}

	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			allSet := true
			for dy := -radius; dy <= radius && allSet; dy++ {
				for dx := -radius; dx <= radius && allSet; dx++ {
					if !mask[y+dy][x+dx] {
						allSet = false
					}
				}
			}
			result[y][x] = allSet
		}
	}

	return result
}

// collectComponent flood-fills one connected component and returns its
// pixels.
func collectComponent(mask [][]bool, labels [][]int, startX, startY, width, height, label int) []image.Point {
	stack := []image.Point{{startX, startY}}
	var points []image.Point

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if !mask[p.Y][p.X] || labels[p.Y][p.X] != 0 {
			continue
		}

		labels[p.Y][p.X] = label
		points = append(points, p)

		stack = append(stack, image.Point{p.X + 1, p.Y})
		stack = append(stack, image.Point{p.X - 1, p.Y})
		stack = append(stack, image.Point{p.X, p.Y + 1})
		stack = append(stack, image.Point{p.X, p.Y - 1})
	}

	return points
}

func convexHull(points []image.Point) []image.Point {
	if len(points) < 3 {
		return points
	}

	sorted := make([]image.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	crossInt := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []image.Point
	for _, p := range sorted {
		for len(lower) >= 2 && crossInt(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []image.Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && crossInt(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// approxPolygon simplifies a closed polygon with Douglas-Peucker. The
// two mutually farthest vertices anchor the split into two open
// chains, which keeps the simplification independent of where the
// polygon happens to start.
func approxPolygon(poly []image.Point, tolerance float64) []image.Point {
	n := len(poly)
	if n <= 4 {
		return poly
	}

	ai, bi := 0, 0
	maxDist := -1.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := pointDist(poly[i], poly[j]); d > maxDist {
				maxDist = d
				ai, bi = i, j
			}
		}
	}

	var chain1, chain2 []image.Point
	for i := ai; ; i = (i + 1) % n {
		chain1 = append(chain1, poly[i])
		if i == bi {
			break
		}
	}
	for i := bi; ; i = (i + 1) % n {
		chain2 = append(chain2, poly[i])
		if i == ai {
			break
		}
	}

	s1 := douglasPeucker(chain1, tolerance)
	s2 := douglasPeucker(chain2, tolerance)

	// Chain endpoints overlap at the anchors.
	out := append([]image.Point{}, s1...)
	out = append(out, s2[1:len(s2)-1]...)
	return out
}

func douglasPeucker(chain []image.Point, tolerance float64) []image.Point {
	if len(chain) <= 2 {
		return chain
	}

	first, last := chain[0], chain[len(chain)-1]
	maxDist := -1.0
	index := 0
	for i := 1; i < len(chain)-1; i++ {
		if d := pointSegmentDist(chain[i], first, last); d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist <= tolerance {
		return []image.Point{first, last}
	}

	left := douglasPeucker(chain[:index+1], tolerance)
	right := douglasPeucker(chain[index:], tolerance)
	return append(left[:len(left)-1], right...)
}

func pointDist(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func pointSegmentDist(p, a, b image.Point) float64 {
	vx, vy := float64(b.X-a.X), float64(b.Y-a.Y)
	wx, wy := float64(p.X-a.X), float64(p.Y-a.Y)

	lenSq := vx*vx + vy*vy
	if lenSq == 0 {
		return math.Hypot(wx, wy)
	}
	t := (wx*vx + wy*vy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(wx-t*vx, wy-t*vy)
}

func perimeter(poly []image.Point) float64 {
	total := 0.0
	for i := range poly {
		total += pointDist(poly[i], poly[(i+1)%len(poly)])
	}
	return total
}

func shortestSide(poly []image.Point) float64 {
	shortest := math.MaxFloat64
	for i := range poly {
		if d := pointDist(poly[i], poly[(i+1)%len(poly)]); d < shortest {
			shortest = d
		}
	}
	return shortest
}

func isConvexQuad(poly []image.Point) bool {
	if len(poly) != 4 {
		return false
	}
	sign := 0
	for i := range poly {
		o, a, b := poly[i], poly[(i+1)%4], poly[(i+2)%4]
		c := (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
		if c == 0 {
			continue
		}
		s := 1
		if c < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

func polygonAreaInt(poly []image.Point) float64 {
	area := 0.0
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += float64(poly[i].X*poly[j].Y - poly[j].X*poly[i].Y)
	}
	return area / 2
}

package geometry

import (
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ironsheep/wall-measure/internal/imaging"
)

// Contour is the outer boundary of one connected foreground region, as the
// ordered list of boundary pixel coordinates (clockwise in image space).
type Contour []image.Point

// neighbors lists the 8-neighborhood clockwise in image coordinates
// (y grows downward), starting from the west neighbor.
var neighbors = [8]image.Point{
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
}

// neighborIndex returns the index of d in neighbors, or -1.
func neighborIndex(d image.Point) int {
	for i, n := range neighbors {
		if n == d {
			return i
		}
	}
	return -1
}

// FindExternalContours returns the outer boundary of every 8-connected
// foreground component of the mask, in raster order of each component's first
// pixel. Holes inside a component are not reported.
//
// # Algorithm
//
//  1. Component labelling: scanline flood fill with 8-connectivity
//  2. Boundary tracing: Moore-neighbor tracing from the component's first pixel
//     in raster order (its west neighbor is always background), stopping when
//     the first step out of the start pixel would be taken a second time
//
// Single-pixel components yield a one-point contour.
func FindExternalContours(m *imaging.Mask) []Contour {
	visited := make([]bool, len(m.Pix))
	contours := make([]Contour, 0)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			if !m.Pix[i] || visited[i] {
				continue
			}
			floodFill(m, visited, x, y)
			contours = append(contours, traceBoundary(m, image.Point{X: x, Y: y}))
		}
	}

	return contours
}

// floodFill marks every pixel 8-connected to (startX, startY) as visited.
//
// Scanline fill: each seed is widened into a full horizontal run, then one
// seed is pushed per unvisited run in the rows above and below. Runs are
// marked as they are filled, so no pixel enters the stack twice and the stack
// stays proportional to the number of open runs rather than the pixel count.
func floodFill(m *imaging.Mask, visited []bool, startX, startY int) {
	open := func(x, y int) bool {
		return m.At(x, y) && !visited[y*m.Width+x]
	}

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !open(p.X, p.Y) {
			continue
		}

		left, right := p.X, p.X
		for open(left-1, p.Y) {
			left--
		}
		for open(right+1, p.Y) {
			right++
		}
		row := p.Y * m.Width
		for x := left; x <= right; x++ {
			visited[row+x] = true
		}

		// Diagonal contact counts, so neighbor rows are scanned one pixel wider.
		for _, ny := range [2]int{p.Y - 1, p.Y + 1} {
			if ny < 0 || ny >= m.Height {
				continue
			}
			inRun := false
			for x := left - 1; x <= right+1; x++ {
				if open(x, ny) {
					if !inRun {
						stack = append(stack, image.Point{X: x, Y: ny})
						inRun = true
					}
				} else {
					inRun = false
				}
			}
		}
	}
}

// traceBoundary walks the outer border of the component containing start.
// start must be the component's first pixel in raster order. Tracing stops
// when the first move out of start is about to repeat, which also terminates
// on one-pixel-wide components that revisit start from another side.
func traceBoundary(m *imaging.Mask, start image.Point) Contour {
	contour := Contour{start}

	// Entered start from the west, which is background by construction.
	p := start
	backtrack := 0
	firstMove := -1
	maxSteps := 4*len(m.Pix) + 8

	for step := 0; step < maxSteps; step++ {
		next := -1
		for i := 1; i <= 8; i++ {
			idx := (backtrack + i) % 8
			if m.At(p.X+neighbors[idx].X, p.Y+neighbors[idx].Y) {
				next = idx
				break
			}
		}
		if next < 0 {
			// Isolated pixel.
			return contour
		}

		if p == start {
			if firstMove < 0 {
				firstMove = next
			} else if next == firstMove {
				break
			}
		}

		q := p.Add(neighbors[next])
		// The last background cell examined becomes the new backtrack,
		// expressed relative to q. Consecutive ring cells are 8-adjacent.
		prev := p.Add(neighbors[(next+7)%8])
		backtrack = neighborIndex(prev.Sub(q))
		p = q
		contour = append(contour, p)
	}

	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}

// Ring converts the contour into a closed orb ring (first point repeated).
func (c Contour) Ring() orb.Ring {
	ring := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		ring = append(ring, orb.Point{float64(p.X), float64(p.Y)})
	}
	if len(c) > 0 {
		ring = append(ring, orb.Point{float64(c[0].X), float64(c[0].Y)})
	}
	return ring
}

// Area returns the area enclosed by the contour polygon (shoelace formula over
// boundary pixel centers), so a one-pixel-wide line has zero area.
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	return planar.Area(c.Ring())
}

// Perimeter returns the closed arc length of the contour.
func (c Contour) Perimeter() float64 {
	if len(c) < 2 {
		return 0
	}
	return planar.Length(c.Ring())
}

// BoundingRect returns the contour's axis-aligned bounding box as
// (x, y, w, h) with w and h counting pixels, so a single pixel is 1x1.
func (c Contour) BoundingRect() (x, y, w, h int) {
	if len(c) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := c[0].X, c[0].Y
	for _, p := range c[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX - minX + 1, maxY - minY + 1
}

// Largest returns the contour with the largest enclosed area. Ties keep the
// earliest contour. ok is false when contours is empty.
func Largest(contours []Contour) (Contour, bool) {
	if len(contours) == 0 {
		return nil, false
	}
	best := contours[0]
	bestArea := best.Area()
	for _, c := range contours[1:] {
		if a := c.Area(); a > bestArea {
			best, bestArea = c, a
		}
	}
	return best, true
}

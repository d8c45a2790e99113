package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/ironsheep/wall-measure/internal/imaging"
)

// ApproxEpsilonFraction is the Douglas-Peucker tolerance as a fraction of the
// contour's closed perimeter.
const ApproxEpsilonFraction = 0.02

// Point is a corner position in source image pixels. It encodes to JSON as
// [x, y].
type Point struct {
	X, Y float64
}

// MarshalJSON encodes the point as a two element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a two element array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid point: %w", err)
	}
	if len(v) != 2 {
		return fmt.Errorf("invalid point: want 2 coordinates, got %d", len(v))
	}
	p.X, p.Y = v[0], v[1]
	return nil
}

// Corners is an ordered wall outline: exactly four points clockwise in image
// coordinates starting with the top-left-most point, or empty when the mask has
// no usable region.
type Corners []Point

// Valid reports whether the outline has the four corners measurement needs.
func (c Corners) Valid() bool {
	return len(c) == 4
}

// ExtractCorners reduces a wall mask to a quadrilateral.
//
// The largest external contour is simplified with Douglas-Peucker at
// ApproxEpsilonFraction of its perimeter. When that yields exactly four
// vertices they are used directly; anything else (triangles, pentagons, curved
// outlines) falls back to the contour's axis-aligned bounding rectangle. The
// result is ordered with SortCorners. Empty masks return an empty slice.
func ExtractCorners(m *imaging.Mask) Corners {
	if m == nil || m.Empty() {
		return Corners{}
	}

	contour, ok := Largest(FindExternalContours(m))
	if !ok || len(contour) == 0 {
		return Corners{}
	}

	if quad := approximateQuad(contour); quad != nil {
		return SortCorners(quad)
	}

	x, y, w, h := contour.BoundingRect()
	return SortCorners(Corners{
		{X: float64(x), Y: float64(y)},
		{X: float64(x + w), Y: float64(y)},
		{X: float64(x + w), Y: float64(y + h)},
		{X: float64(x), Y: float64(y + h)},
	})
}

// approximateQuad returns the simplified contour's vertices when there are
// exactly four of them, and nil otherwise.
func approximateQuad(c Contour) Corners {
	if len(c) < 4 {
		return nil
	}

	epsilon := ApproxEpsilonFraction * c.Perimeter()
	closed := orb.LineString(c.Ring())
	simplified, ok := simplify.DouglasPeucker(epsilon).Simplify(closed.Clone()).(orb.LineString)
	if !ok {
		return nil
	}

	// The closing point repeats the first one.
	if len(simplified) > 1 && simplified[0] == simplified[len(simplified)-1] {
		simplified = simplified[:len(simplified)-1]
	}
	if len(simplified) != 4 {
		return nil
	}

	quad := make(Corners, 0, 4)
	for _, p := range simplified {
		quad = append(quad, Point{X: p[0], Y: p[1]})
	}
	return quad
}

// SortCorners orders points clockwise (in image coordinates, y down) around
// their centroid, then rotates the sequence so the point with the smallest
// x+y comes first. The first such point wins on ties. The input is not
// modified.
func SortCorners(pts Corners) Corners {
	if len(pts) == 0 {
		return Corners{}
	}

	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	sorted := make(Corners, len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Atan2(sorted[i].Y-cy, sorted[i].X-cx) < math.Atan2(sorted[j].Y-cy, sorted[j].X-cx)
	})

	start := 0
	for i, p := range sorted {
		if p.X+p.Y < sorted[start].X+sorted[start].Y {
			start = i
		}
	}

	out := make(Corners, 0, len(sorted))
	out = append(out, sorted[start:]...)
	out = append(out, sorted[:start]...)
	return out
}

// SignedArea returns the shoelace area of the outline. Clockwise outlines in
// image coordinates have a positive area.
func (c Corners) SignedArea() float64 {
	var sum float64
	for i := range c {
		j := (i + 1) % len(c)
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return sum / 2
}

package imaging

import (
	"fmt"
	"image"
	"math"
)

// Span is a straight-line distance between two pixels of an image.
type Span struct {
	From         image.Point `json:"-"`
	To           image.Point `json:"-"`
	Pixels       float64     `json:"pixels"`
	DeltaX       int         `json:"delta_x"`
	DeltaY       int         `json:"delta_y"`
	AngleDegrees float64     `json:"angle_degrees"`
}

// MeasureSpan measures the pixel distance from one point to another. Both
// points must lie inside bounds. The angle is 0 for a span pointing right
// and 90 for one pointing down.
func MeasureSpan(bounds image.Rectangle, from, to image.Point) (*Span, error) {
	for _, p := range []image.Point{from, to} {
		if !p.In(bounds) {
			return nil, fmt.Errorf("point (%d, %d) is outside image bounds %v", p.X, p.Y, bounds)
		}
	}

	dx, dy := to.X-from.X, to.Y-from.Y
	return &Span{
		From:         from,
		To:           to,
		Pixels:       math.Hypot(float64(dx), float64(dy)),
		DeltaX:       dx,
		DeltaY:       dy,
		AngleDegrees: math.Atan2(float64(dy), float64(dx)) * 180 / math.Pi,
	}, nil
}

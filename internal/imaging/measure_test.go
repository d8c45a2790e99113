package imaging

import (
	"image"
	"math"
	"testing"
)

func TestMeasureSpan(t *testing.T) {
	bounds := image.Rect(0, 0, 101, 101)

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		wantPixels     float64
		wantDeltaX     int
		wantDeltaY     int
		wantAngle      float64
	}{
		{"horizontal right", 0, 50, 100, 50, 100, 100, 0, 0},
		{"horizontal left", 100, 50, 0, 50, 100, -100, 0, 180},
		{"vertical down", 50, 0, 50, 100, 100, 0, 100, 90},
		{"vertical up", 50, 100, 50, 0, 100, 0, -100, -90},
		{"diagonal", 0, 0, 100, 100, 141.42, 100, 100, 45},
		{"same point", 50, 50, 50, 50, 0, 0, 0, 0},
		{"3-4-5 triangle", 0, 0, 3, 4, 5, 3, 4, 53.13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, err := MeasureSpan(bounds, image.Pt(tt.x1, tt.y1), image.Pt(tt.x2, tt.y2))
			if err != nil {
				t.Fatalf("MeasureSpan failed: %v", err)
			}
			if span.DeltaX != tt.wantDeltaX || span.DeltaY != tt.wantDeltaY {
				t.Errorf("delta: got (%d, %d), want (%d, %d)", span.DeltaX, span.DeltaY, tt.wantDeltaX, tt.wantDeltaY)
			}
			if math.Abs(span.Pixels-tt.wantPixels) > 0.01 {
				t.Errorf("Pixels: got %.3f, want %.3f", span.Pixels, tt.wantPixels)
			}
			if math.Abs(span.AngleDegrees-tt.wantAngle) > 0.01 {
				t.Errorf("AngleDegrees: got %.2f, want %.2f", span.AngleDegrees, tt.wantAngle)
			}
		})
	}
}

func TestMeasureSpan_OutOfBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	tests := []struct {
		name     string
		from, to image.Point
	}{
		{"to on exclusive edge", image.Pt(0, 0), image.Pt(100, 50)},
		{"negative from", image.Pt(-1, 0), image.Pt(10, 10)},
		{"below", image.Pt(5, 5), image.Pt(5, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MeasureSpan(bounds, tt.from, tt.to); err == nil {
				t.Error("expected error")
			}
		})
	}
}

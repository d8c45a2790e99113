// Package ml defines the model capabilities the wall pipeline depends on and
// an HTTP client that reaches them at a model inference service.
//
// # Capabilities
//
//   - Detector: image -> labelled boxes with confidence scores
//   - Segmenter: image + box -> binary mask with a quality score
//   - DepthEstimator: image -> dense metric depth field
//
// The pipeline only sees these interfaces. Client implements all three over
// HTTP; tests substitute in-process fakes.
//
// # Segmenter Sessions
//
// Segmenters embed the image once (Prepare) and then answer many box prompts
// against that embedding. A SegmentSession holds that state and must be
// closed. SegmenterPool bounds how many sessions may be open at once, since
// each one pins model memory on the inference side.
package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/wall-measure/internal/depth"
	"github.com/ironsheep/wall-measure/internal/imaging"
)

// WallLabel is the detector class name the pipeline measures.
const WallLabel = "wall"

// Box is an axis-aligned detection box in source image pixels.
// It encodes to JSON as [x1, y1, x2, y2].
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Rect returns the integer pixel rectangle covered by the box.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// MarshalJSON encodes the box as a four element array.
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a four element array.
func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid box: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("invalid box: want 4 coordinates, got %d", len(v))
	}
	b.X1, b.Y1, b.X2, b.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

// Detection is one labelled box from the detector.
type Detection struct {
	Box     Box     `json:"bbox"`
	Score   float64 `json:"confidence"`
	ClassID int     `json:"class_id"`
	Label   string  `json:"class_name"`
}

// IsWall reports whether the detection carries the wall label.
func (d Detection) IsWall() bool {
	return d.Label == WallLabel
}

// Prediction is a segmenter answer for one box prompt.
type Prediction struct {
	// Mask has the shape of the prepared image.
	Mask *imaging.Mask

	// Score is the segmenter's own quality estimate for the mask.
	Score float64
}

// Detector finds labelled objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image, confidence float64) ([]Detection, error)
}

// Segmenter prepares an image for box-prompted segmentation.
type Segmenter interface {
	Prepare(ctx context.Context, img image.Image) (SegmentSession, error)
}

// SegmentSession answers box prompts against one prepared image.
type SegmentSession interface {
	Predict(ctx context.Context, box Box) (*Prediction, error)
	Close() error
}

// DepthEstimator produces a metric depth field for an image.
type DepthEstimator interface {
	Estimate(ctx context.Context, img image.Image) (*depth.Field, error)
}

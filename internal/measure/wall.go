package measure

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/wall-measure/internal/depth"
	"github.com/ironsheep/wall-measure/internal/geometry"
	"github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/ml"
)

// ErrDegenerateMask is returned when a wall mask yields no corners.
var ErrDegenerateMask = errors.New("measure: mask has no usable outline")

// Segment is one segmented wall: the segmenter's mask for a detection.
type Segment struct {
	// ID is 1-based in creation order and unique within one analysis.
	ID int

	// Mask has the shape of the source image.
	Mask *imaging.Mask

	// Score is the segmenter's quality score for Mask.
	Score float64

	// Detection is the detector output the mask was prompted with.
	Detection ml.Detection

	// MaskBase64 is Mask encoded as a base64 grayscale PNG.
	MaskBase64 string
}

// Dimensions are the metric side lengths of a wall outline. Length is always
// the larger of the two averaged side pairs.
type Dimensions struct {
	LengthMeters float64    `json:"length_meters"`
	WidthMeters  float64    `json:"width_meters"`
	LengthPixels float64    `json:"length_pixels"`
	WidthPixels  float64    `json:"width_pixels"`
	SidesPixels  [4]float64 `json:"all_sides_pixels"`
	ScaleFactor  float64    `json:"scale_factor"`
}

// Measurements holds the metric results for one wall.
type Measurements struct {
	AreaSquareMeters float64     `json:"area_square_meters"`
	AreaPixels       int         `json:"area_pixels"`
	Dimensions       *Dimensions `json:"dimensions"`
}

// Scores carries the model confidences behind one wall.
type Scores struct {
	DetectorScore  float64 `json:"detector_score"`
	SegmenterScore float64 `json:"segmenter_score"`
}

// WallMeasurement is the per-wall result returned to callers.
type WallMeasurement struct {
	WallID       int              `json:"wall_id"`
	Corners      geometry.Corners `json:"corners"`
	DepthStats   depth.Stats      `json:"depth_stats"`
	Measurements Measurements     `json:"measurements"`
	Scores       Scores           `json:"scores"`
	MaskBase64   string           `json:"mask_base64"`

	// Mask is kept for rendering and is not serialized.
	Mask *imaging.Mask `json:"-"`
}

// IsSkip reports whether err means the wall cannot be measured and should be
// left out of the results rather than failing the analysis.
func IsSkip(err error) bool {
	return errors.Is(err, ErrDegenerateMask) || errors.Is(err, depth.ErrNoCoverage)
}

// MeasureWall measures one segment against the image's depth field.
//
// # Steps
//
//  1. Corners from the mask; none means ErrDegenerateMask
//  2. Depth sample under the mask, resampled to the field's grid; no overlap
//     means depth.ErrNoCoverage
//  3. Area: footprint pixel count times the squared scale at the median depth
//  4. Dimensions: averaged opposite sides scaled at the mean depth
//
// Both sentinel errors satisfy IsSkip.
func MeasureWall(seg Segment, field *depth.Field, focalPixels float64) (*WallMeasurement, error) {
	if seg.Mask == nil {
		return nil, ErrDegenerateMask
	}

	corners := geometry.ExtractCorners(seg.Mask)
	if len(corners) == 0 {
		return nil, ErrDegenerateMask
	}

	sample, err := depth.SampleMask(seg.Mask, field)
	if err != nil {
		return nil, err
	}

	areaScale, err := Scale(sample.Stats.Median, focalPixels)
	if err != nil {
		return nil, err
	}
	areaPixels := sample.PixelCount()

	dims, err := ComputeDimensions(corners, sample.Stats.Mean, focalPixels)
	if err != nil {
		return nil, err
	}

	return &WallMeasurement{
		WallID:     seg.ID,
		Corners:    corners,
		DepthStats: sample.Stats,
		Measurements: Measurements{
			AreaSquareMeters: float64(areaPixels) * areaScale * areaScale,
			AreaPixels:       areaPixels,
			Dimensions:       dims,
		},
		Scores: Scores{
			DetectorScore:  seg.Detection.Score,
			SegmenterScore: seg.Score,
		},
		MaskBase64: seg.MaskBase64,
		Mask:       seg.Mask,
	}, nil
}

// ComputeDimensions derives side lengths from four ordered corners.
//
// Sides are top (0-1), right (1-2), bottom (2-3) and left (3-0). The
// horizontal extent averages top and bottom, the vertical extent averages
// right and left. The larger metric extent is the length; on a tie the
// horizontal extent is the length. A nil result with no error means the
// outline is not a quadrilateral.
func ComputeDimensions(c geometry.Corners, meanDepth, focalPixels float64) (*Dimensions, error) {
	if !c.Valid() {
		return nil, nil
	}

	scale, err := Scale(meanDepth, focalPixels)
	if err != nil {
		return nil, err
	}

	var sides [4]float64
	for i := range c {
		a, b := c[i], c[(i+1)%4]
		sides[i] = floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
	}

	horizontal := (sides[0] + sides[2]) / 2
	vertical := (sides[1] + sides[3]) / 2

	d := &Dimensions{SidesPixels: sides, ScaleFactor: scale}
	if horizontal*scale >= vertical*scale {
		d.LengthPixels, d.WidthPixels = horizontal, vertical
	} else {
		d.LengthPixels, d.WidthPixels = vertical, horizontal
	}
	d.LengthMeters = d.LengthPixels * scale
	d.WidthMeters = d.WidthPixels * scale
	return d, nil
}

// MeasureWalls measures every segment of one image in order. Walls that
// cannot be measured are logged and left out, so wall IDs in the result may
// have gaps. An error is returned only when the inputs make every measurement
// meaningless: an invalid depth field or image size.
func MeasureWalls(segments []Segment, field *depth.Field, width, height int, logger *slog.Logger) ([]WallMeasurement, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("measure walls: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("measure walls: invalid image size %dx%d", width, height)
	}

	focal := EstimateFocalLength(width, height)
	logger.Info("estimated focal length", "focal_length_pixels", focal)

	walls := make([]WallMeasurement, 0, len(segments))
	for _, seg := range segments {
		wall, err := MeasureWall(seg, field, focal)
		if err != nil {
			if IsSkip(err) {
				logger.Warn("wall skipped", "wall_id", seg.ID, "reason", err)
				continue
			}
			return nil, fmt.Errorf("measure wall %d: %w", seg.ID, err)
		}

		attrs := []any{
			"wall_id", wall.WallID,
			"area_m2", wall.Measurements.AreaSquareMeters,
			"mean_depth_m", wall.DepthStats.Mean,
		}
		if d := wall.Measurements.Dimensions; d != nil {
			attrs = append(attrs, "length_m", d.LengthMeters, "width_m", d.WidthMeters)
		}
		logger.Info("wall measured", attrs...)

		walls = append(walls, *wall)
	}
	return walls, nil
}

package pipeline

import (
	"fmt"

	"github.com/ironsheep/wall-measure/internal/depth"
	"github.com/ironsheep/wall-measure/internal/measure"
	"github.com/ironsheep/wall-measure/internal/ml"
)

// Stage names a step of one analysis run.
type Stage string

// Analysis stages in execution order. StageNoWalls and StageDone are terminal.
const (
	StageReceived   Stage = "received"
	StageDetecting  Stage = "detecting"
	StageNoWalls    Stage = "no_walls"
	StageSegmenting Stage = "segmenting"
	StageDepth      Stage = "depth_estimating"
	StageMeasuring  Stage = "measuring"
	StageRendering  Stage = "rendering"
	StageDone       Stage = "done"
)

// StageError is a failure that aborts the run. Callers report it as a server
// error; recoverable stage failures are folded into a degraded Result
// instead.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FocalLengthEstimated marks a focal length derived from the image size
// rather than calibration.
const FocalLengthEstimated = "estimated"

// accuracyNote is attached to every summary that carries metric values.
const accuracyNote = "Metric values assume a focal length of 0.8 x the longer image side. " +
	"Absolute values can be off by a large factor; comparisons between walls in the same photo are more reliable."

// ImageDimensions is the upright source image size.
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Summary aggregates the measured walls of one image.
type Summary struct {
	TotalWallAreaSquareMeters float64         `json:"total_wall_area_square_meters"`
	AverageDetectorScore      float64         `json:"average_detector_score"`
	AverageSegmenterScore     float64         `json:"average_segmenter_score"`
	DepthRange                depth.Range     `json:"depth_range"`
	ImageDimensions           ImageDimensions `json:"image_dimensions"`
	FocalLengthPixels         float64         `json:"focal_length_pixels"`
	FocalLengthSource         string          `json:"focal_length_source"`
	AccuracyNote              string          `json:"accuracy_note"`
}

// Result is the outcome of a full analysis.
//
// A degraded result has Success false, ErrorDetails and FailedStage set, no
// walls, and whatever visualization was produced before the failure.
type Result struct {
	RunID                     string                    `json:"run_id"`
	Success                   bool                      `json:"success"`
	Message                   string                    `json:"message"`
	WallCount                 int                       `json:"wall_count"`
	Walls                     []measure.WallMeasurement `json:"walls"`
	SegmentationVisualization *string                   `json:"segmentation_visualization"`
	MeasurementVisualization  *string                   `json:"measurement_visualization"`
	Summary                   *Summary                  `json:"summary,omitempty"`
	SkippedDetections         int                       `json:"skipped_detections"`
	ErrorDetails              string                    `json:"error_details,omitempty"`
	FailedStage               Stage                     `json:"failed_stage,omitempty"`

	// Stage is the last state the run reached.
	Stage Stage `json:"-"`
}

// summarize builds the summary block. Means are zero when no wall was
// measured.
func summarize(walls []measure.WallMeasurement, field *depth.Field, width, height int) *Summary {
	s := &Summary{
		DepthRange:        field.Range(),
		ImageDimensions:   ImageDimensions{Width: width, Height: height},
		FocalLengthPixels: measure.EstimateFocalLength(width, height),
		FocalLengthSource: FocalLengthEstimated,
		AccuracyNote:      accuracyNote,
	}
	if len(walls) == 0 {
		return s
	}

	var detSum, segSum float64
	for _, w := range walls {
		s.TotalWallAreaSquareMeters += w.Measurements.AreaSquareMeters
		detSum += w.Scores.DetectorScore
		segSum += w.Scores.SegmenterScore
	}
	s.AverageDetectorScore = detSum / float64(len(walls))
	s.AverageSegmenterScore = segSum / float64(len(walls))
	return s
}

// BoxDimensions is the pixel size of a detection box.
type BoxDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SegmentedWall is one wall of a segmentation-only run.
type SegmentedWall struct {
	WallID         int           `json:"wall_id"`
	MaskBase64     string        `json:"mask_base64"`
	SegmenterScore float64       `json:"segmenter_score"`
	DetectorScore  float64       `json:"detector_score"`
	BBox           ml.Box        `json:"bbox"`
	MaskAreaPixels int           `json:"mask_area_pixels"`
	BBoxDimensions BoxDimensions `json:"bbox_dimensions"`
}

// SegmentationSummary aggregates a segmentation-only run.
type SegmentationSummary struct {
	AverageDetectorScore  float64         `json:"average_detector_score"`
	AverageSegmenterScore float64         `json:"average_segmenter_score"`
	TotalWallAreaPixels   int             `json:"total_wall_area_pixels"`
	ImageDimensions       ImageDimensions `json:"image_dimensions"`
}

// SegmentationResult is the outcome of a segmentation-only run.
type SegmentationResult struct {
	RunID             string               `json:"run_id"`
	Success           bool                 `json:"success"`
	Message           string               `json:"message"`
	WallCount         int                  `json:"wall_count"`
	Walls             []SegmentedWall      `json:"walls"`
	Visualization     *string              `json:"visualization"`
	Summary           *SegmentationSummary `json:"summary,omitempty"`
	SkippedDetections int                  `json:"skipped_detections"`
}

func segmentedWalls(segments []measure.Segment, width, height int) ([]SegmentedWall, *SegmentationSummary) {
	walls := make([]SegmentedWall, 0, len(segments))
	summary := &SegmentationSummary{ImageDimensions: ImageDimensions{Width: width, Height: height}}

	var detSum, segSum float64
	for _, seg := range segments {
		area := seg.Mask.Count()
		box := seg.Detection.Box
		walls = append(walls, SegmentedWall{
			WallID:         seg.ID,
			MaskBase64:     seg.MaskBase64,
			SegmenterScore: seg.Score,
			DetectorScore:  seg.Detection.Score,
			BBox:           box,
			MaskAreaPixels: area,
			BBoxDimensions: BoxDimensions{Width: box.Width(), Height: box.Height()},
		})
		summary.TotalWallAreaPixels += area
		detSum += seg.Detection.Score
		segSum += seg.Score
	}
	if len(segments) > 0 {
		summary.AverageDetectorScore = detSum / float64(len(segments))
		summary.AverageSegmenterScore = segSum / float64(len(segments))
	}
	return walls, summary
}

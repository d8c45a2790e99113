// Package pipeline orchestrates one wall analysis: detect walls, segment each
// detection, estimate depth, measure every wall, render the overlays and
// summarize.
//
// # Failure Policy
//
//   - Detection failure, segmenter preparation failure, or every detection
//     failing to segment: the run aborts with a *StageError.
//   - A single detection failing to segment: skipped and counted.
//   - Depth estimation or measurement failure: a degraded Result with the
//     segmentation overlay and no walls.
//   - Rendering failure: both overlays are omitted; the Result is still a
//     success.
//
// Each run gets a run ID that tags every log line it emits.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ironsheep/wall-measure/internal/depth"
	"github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/measure"
	"github.com/ironsheep/wall-measure/internal/ml"
)

// DefaultConfidence is the detector threshold used when none is configured.
const DefaultConfidence = 0.3

// Models bundles the process-wide model handles. It is built once at startup
// and shared read-only by every run.
type Models struct {
	Detector  ml.Detector
	Segmenter ml.Segmenter
	Depth     ml.DepthEstimator
}

// Validate reports a missing model.
func (m Models) Validate() error {
	switch {
	case m.Detector == nil:
		return errors.New("detector is not configured")
	case m.Segmenter == nil:
		return errors.New("segmenter is not configured")
	case m.Depth == nil:
		return errors.New("depth estimator is not configured")
	}
	return nil
}

// Renderer produces base64 PNG overlays.
type Renderer interface {
	Segmentation(img image.Image, segments []measure.Segment) (string, error)
	Measurements(img image.Image, walls []measure.WallMeasurement) (string, error)
}

// Options tune a single run.
type Options struct {
	// Confidence is the detector threshold; zero uses the analyzer default.
	Confidence float64
}

// Analyzer runs analyses against a fixed set of models. It is safe for
// concurrent use when its models are.
type Analyzer struct {
	models     Models
	renderer   Renderer
	logger     *slog.Logger
	confidence float64

	// measureFn is measure.MeasureWalls outside of tests.
	measureFn func([]measure.Segment, *depth.Field, int, int, *slog.Logger) ([]measure.WallMeasurement, error)
}

// New creates an Analyzer. A zero confidence selects DefaultConfidence and a
// nil logger selects slog.Default().
func New(models Models, renderer Renderer, confidence float64, logger *slog.Logger) *Analyzer {
	if confidence <= 0 {
		confidence = DefaultConfidence
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		models:     models,
		renderer:   renderer,
		logger:     logger,
		confidence: confidence,
		measureFn:  measure.MeasureWalls,
	}
}

// run carries the per-request state shared by the stages.
type run struct {
	id     string
	logger *slog.Logger
	img    image.Image
	width  int
	height int
}

func (a *Analyzer) newRun(img image.Image) *run {
	id := uuid.NewString()
	b := img.Bounds()
	return &run{
		id:     id,
		logger: a.logger.With("run_id", id),
		img:    img,
		width:  b.Dx(),
		height: b.Dy(),
	}
}

func (a *Analyzer) threshold(opts Options) float64 {
	if opts.Confidence > 0 {
		return opts.Confidence
	}
	return a.confidence
}

// Analyze runs the full pipeline on an upright image.
//
// The returned error is always a *StageError and means the run aborted; every
// other outcome, including degraded ones, is reported through the Result.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	r := a.newRun(img)
	res := &Result{
		RunID: r.id,
		Walls: []measure.WallMeasurement{},
		Stage: StageReceived,
	}
	r.logger.Info("analysis started", "width", r.width, "height", r.height)

	res.Stage = StageDetecting
	detections, err := a.detectWalls(ctx, r, a.threshold(opts))
	if err != nil {
		return nil, &StageError{Stage: StageDetecting, Err: err}
	}
	if len(detections) == 0 {
		r.logger.Info("no walls detected")
		res.Stage = StageNoWalls
		res.Success = true
		res.Message = "No walls detected in the image"
		return res, nil
	}

	res.Stage = StageSegmenting
	segments, skipped, err := a.segmentWalls(ctx, r, detections)
	if err != nil {
		return nil, &StageError{Stage: StageSegmenting, Err: err}
	}
	res.SkippedDetections = skipped

	res.Stage = StageDepth
	field, err := a.estimateDepth(ctx, r)
	if err != nil {
		r.logger.Error("depth estimation failed", "error", err)
		return a.degraded(r, res, segments, StageDepth,
			fmt.Sprintf("Wall segmentation completed but depth analysis failed: %v", err), err), nil
	}

	res.Stage = StageMeasuring
	walls, err := a.measureWalls(r, segments, field)
	if err != nil {
		r.logger.Error("wall measurement failed", "error", err)
		return a.degraded(r, res, segments, StageMeasuring,
			fmt.Sprintf("Depth analysis failed: %v", err), err), nil
	}
	res.Walls = walls
	res.WallCount = len(walls)

	res.Stage = StageRendering
	if viz, err := a.renderMeasurements(r, walls); err != nil {
		r.logger.Error("visualization failed, continuing without it", "error", err)
	} else {
		// The measurement overlay already contains the segmentation tint.
		res.SegmentationVisualization = &viz
		res.MeasurementVisualization = &viz
	}

	res.Stage = StageDone
	res.Summary = summarize(walls, field, r.width, r.height)
	res.Success = true
	res.Message = fmt.Sprintf("Successfully analyzed %d walls with depth estimation", len(walls))
	r.logger.Info("analysis completed",
		"walls", len(walls),
		"skipped_detections", skipped,
		"total_area_m2", res.Summary.TotalWallAreaSquareMeters)
	return res, nil
}

// Segment runs detection and segmentation only and renders the segmentation
// overlay.
func (a *Analyzer) Segment(ctx context.Context, img image.Image, opts Options) (*SegmentationResult, error) {
	r := a.newRun(img)
	res := &SegmentationResult{
		RunID: r.id,
		Walls: []SegmentedWall{},
	}
	r.logger.Info("segmentation started", "width", r.width, "height", r.height)

	detections, err := a.detectWalls(ctx, r, a.threshold(opts))
	if err != nil {
		return nil, &StageError{Stage: StageDetecting, Err: err}
	}
	if len(detections) == 0 {
		res.Success = true
		res.Message = "No walls detected in the image"
		return res, nil
	}

	segments, skipped, err := a.segmentWalls(ctx, r, detections)
	if err != nil {
		return nil, &StageError{Stage: StageSegmenting, Err: err}
	}

	res.Walls, res.Summary = segmentedWalls(segments, r.width, r.height)
	res.WallCount = len(segments)
	res.SkippedDetections = skipped
	if viz, err := a.renderSegmentation(r, segments); err != nil {
		r.logger.Error("visualization failed, continuing without it", "error", err)
	} else {
		res.Visualization = &viz
	}

	res.Success = true
	res.Message = fmt.Sprintf("Successfully segmented %d walls", len(segments))
	r.logger.Info("segmentation completed", "walls", len(segments), "skipped_detections", skipped)
	return res, nil
}

// degraded fills res as a partial result after a recoverable stage failure.
func (a *Analyzer) degraded(r *run, res *Result, segments []measure.Segment, stage Stage, msg string, err error) *Result {
	res.Success = false
	res.Message = msg
	res.ErrorDetails = err.Error()
	res.FailedStage = stage
	res.WallCount = len(segments)
	res.Walls = []measure.WallMeasurement{}

	if viz, rerr := a.renderSegmentation(r, segments); rerr != nil {
		r.logger.Error("segmentation visualization failed", "error", rerr)
	} else {
		res.SegmentationVisualization = &viz
	}
	return res
}

func (a *Analyzer) detectWalls(ctx context.Context, r *run, confidence float64) ([]ml.Detection, error) {
	detections, err := a.models.Detector.Detect(ctx, r.img, confidence)
	if err != nil {
		return nil, err
	}

	walls := make([]ml.Detection, 0, len(detections))
	for _, d := range detections {
		if d.IsWall() {
			walls = append(walls, d)
		}
	}
	r.logger.Info("detection finished", "detections", len(detections), "walls", len(walls), "confidence", confidence)
	return walls, nil
}

// segmentWalls prompts the segmenter with every wall box. Detections that
// fail are skipped and counted; the stage fails only when preparation fails
// or nothing could be segmented.
func (a *Analyzer) segmentWalls(ctx context.Context, r *run, detections []ml.Detection) ([]measure.Segment, int, error) {
	session, err := a.models.Segmenter.Prepare(ctx, r.img)
	if err != nil {
		return nil, 0, fmt.Errorf("prepare segmenter: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("segmenter session close failed", "error", err)
		}
	}()

	segments := make([]measure.Segment, 0, len(detections))
	skipped := 0
	var lastErr error
	for i, det := range detections {
		r.logger.Debug("segmenting wall", "detection", i+1, "of", len(detections))

		seg, err := a.segmentOne(ctx, session, det, len(segments)+1)
		if err != nil {
			skipped++
			lastErr = err
			r.logger.Warn("detection skipped", "detection", i+1, "error", err)
			continue
		}
		segments = append(segments, *seg)
	}

	if len(segments) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, skipped, ctxErr
		}
		return nil, skipped, fmt.Errorf("all %d detections failed to segment: %w", len(detections), lastErr)
	}
	r.logger.Info("segmentation finished", "segments", len(segments), "skipped", skipped)
	return segments, skipped, nil
}

// segmentOne isolates a single prompt, converting panics into errors.
func (a *Analyzer) segmentOne(ctx context.Context, session ml.SegmentSession, det ml.Detection, id int) (seg *measure.Segment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			seg, err = nil, fmt.Errorf("segmenter panicked: %v", rec)
		}
	}()

	pred, err := session.Predict(ctx, det.Box)
	if err != nil {
		return nil, err
	}
	if pred == nil || pred.Mask == nil {
		return nil, errors.New("segmenter returned no mask")
	}
	encoded, err := imaging.EncodeMaskBase64(pred.Mask)
	if err != nil {
		return nil, err
	}
	return &measure.Segment{
		ID:         id,
		Mask:       pred.Mask,
		Score:      pred.Score,
		Detection:  det,
		MaskBase64: encoded,
	}, nil
}

func (a *Analyzer) estimateDepth(ctx context.Context, r *run) (field *depth.Field, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			field, err = nil, fmt.Errorf("depth estimator panicked: %v", rec)
		}
	}()

	field, err = a.models.Depth.Estimate(ctx, r.img)
	if err != nil {
		return nil, err
	}
	if err := field.Validate(); err != nil {
		return nil, err
	}
	rng := field.Range()
	r.logger.Info("depth estimated",
		"grid_width", field.Width, "grid_height", field.Height,
		"min_m", rng.Min, "max_m", rng.Max, "mean_m", rng.Mean)
	return field, nil
}

func (a *Analyzer) measureWalls(r *run, segments []measure.Segment, field *depth.Field) (walls []measure.WallMeasurement, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			walls, err = nil, fmt.Errorf("measurement panicked: %v", rec)
		}
	}()
	return a.measureFn(segments, field, r.width, r.height, r.logger)
}

func (a *Analyzer) renderSegmentation(r *run, segments []measure.Segment) (viz string, err error) {
	if a.renderer == nil {
		return "", errors.New("no renderer configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			viz, err = "", fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	return a.renderer.Segmentation(r.img, segments)
}

func (a *Analyzer) renderMeasurements(r *run, walls []measure.WallMeasurement) (viz string, err error) {
	if a.renderer == nil {
		return "", errors.New("no renderer configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			viz, err = "", fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	return a.renderer.Measurements(r.img, walls)
}

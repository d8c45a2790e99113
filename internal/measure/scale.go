// Package measure turns segmented walls and a depth field into metric
// measurements.
//
// # Pinhole Model
//
// A pixel at depth Z meters along the optical axis covers Z/f meters of the
// scene, where f is the focal length in pixels. No calibration is available,
// so f is estimated from the image size (EstimateFocalLength). That estimate
// dominates the absolute error of every metric value this package produces;
// relative comparisons between walls in the same photograph are far more
// reliable than the absolute numbers.
//
// # Representative Depths
//
// Area uses the median depth under the mask, which resists outliers at the
// mask border. Side lengths use the mean depth. Both conventions are kept
// stable so that results stay comparable across releases.
package measure

import "fmt"

// FocalLengthFactor scales the longer image side into an approximate focal
// length in pixels, matching a typical phone camera's field of view.
const FocalLengthFactor = 0.8

// EstimateFocalLength returns the assumed focal length in pixels for an image
// of the given size.
func EstimateFocalLength(width, height int) float64 {
	longest := width
	if height > longest {
		longest = height
	}
	return float64(longest) * FocalLengthFactor
}

// Scale returns meters per pixel at the given depth.
func Scale(depthMeters, focalPixels float64) (float64, error) {
	if focalPixels <= 0 {
		return 0, fmt.Errorf("focal length must be positive, got %v", focalPixels)
	}
	return depthMeters / focalPixels, nil
}

// PixelsToMeters converts a pixel distance at the given depth into meters.
func PixelsToMeters(pixels, depthMeters, focalPixels float64) (float64, error) {
	s, err := Scale(depthMeters, focalPixels)
	if err != nil {
		return 0, err
	}
	return pixels * s, nil
}

// ScaleReport describes the metric scale of an image at one depth.
type ScaleReport struct {
	FocalLengthPixels float64 `json:"focal_length_pixels"`
	DepthMeters       float64 `json:"depth_meters"`
	MetersPerPixel    float64 `json:"meters_per_pixel"`
	Pixels            float64 `json:"pixels,omitempty"`
	Meters            float64 `json:"meters,omitempty"`
}

// ReportScale computes the scale of a width x height image at depthMeters
// and converts pixels to meters when pixels is positive.
func ReportScale(width, height int, depthMeters, pixels float64) (*ScaleReport, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if !(depthMeters > 0) {
		return nil, fmt.Errorf("depth must be positive, got %v", depthMeters)
	}

	focal := EstimateFocalLength(width, height)
	s, err := Scale(depthMeters, focal)
	if err != nil {
		return nil, err
	}
	r := &ScaleReport{
		FocalLengthPixels: focal,
		DepthMeters:       depthMeters,
		MetersPerPixel:    s,
	}
	if pixels > 0 {
		r.Pixels = pixels
		r.Meters = pixels * s
	}
	return r, nil
}

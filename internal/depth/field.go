// Package depth holds the per-pixel depth field produced by the depth
// estimator and the sampler that reduces it to statistics under a wall mask.
package depth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Field is a dense depth map in meters along the camera's optical axis,
// stored row-major. Its shape is whatever the estimator returned and may differ
// from the source image.
type Field struct {
	Width  int
	Height int
	Values []float64
}

// NewField validates the grid shape and wraps values without copying.
func NewField(width, height int, values []float64) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid depth field shape %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("depth field has %d values, want %d for %dx%d",
			len(values), width*height, width, height)
	}
	return &Field{Width: width, Height: height, Values: values}, nil
}

// Uniform returns a field of the given shape with every value set to v.
func Uniform(width, height int, v float64) *Field {
	values := make([]float64, width*height)
	for i := range values {
		values[i] = v
	}
	return &Field{Width: width, Height: height, Values: values}
}

// At returns the depth at (x, y). Callers must stay inside the grid.
func (f *Field) At(x, y int) float64 {
	return f.Values[y*f.Width+x]
}

// Range summarizes the whole field.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Range returns min, max and mean over every value in the field.
func (f *Field) Range() Range {
	if len(f.Values) == 0 {
		return Range{}
	}
	return Range{
		Min:  floats.Min(f.Values),
		Max:  floats.Max(f.Values),
		Mean: stat.Mean(f.Values, nil),
	}
}

// Validate rejects fields whose values cannot be used for measurement.
func (f *Field) Validate() error {
	if f == nil {
		return fmt.Errorf("depth field is nil")
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Values) != f.Width*f.Height {
		return fmt.Errorf("depth field shape %dx%d does not match %d values", f.Width, f.Height, len(f.Values))
	}
	for i, v := range f.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("depth field value %d is not finite", i)
		}
	}
	return nil
}

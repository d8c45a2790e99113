package depth

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/wall-measure/internal/imaging"
)

// ErrNoCoverage is returned when a mask footprint and the depth field share no
// pixels. Statistics are never computed over an empty sample.
var ErrNoCoverage = errors.New("depth: mask footprint has no depth coverage")

// Stats summarizes the depth values sampled inside a mask footprint.
type Stats struct {
	Min    float64 `json:"min_depth"`
	Max    float64 `json:"max_depth"`
	Mean   float64 `json:"mean_depth"`
	Median float64 `json:"median_depth"`
	Std    float64 `json:"std_depth"`
}

// Sample is the result of intersecting a mask with a depth field.
type Sample struct {
	// Values are the depths under the footprint in row-major order.
	Values []float64

	// Footprint is the mask at the depth field's resolution.
	Footprint *imaging.Mask

	Stats Stats
}

// PixelCount returns the number of footprint pixels that were sampled.
func (s *Sample) PixelCount() int {
	return len(s.Values)
}

// SampleMask collects depth values under the mask footprint.
//
// When the mask grid differs from the field grid, the mask is first resampled
// to the field's shape with nearest-neighbor interpolation, so every sample is
// a real depth value rather than a blend. An empty intersection returns
// ErrNoCoverage.
func SampleMask(m *imaging.Mask, f *Field) (*Sample, error) {
	footprint := m
	if !m.SameShape(f.Width, f.Height) {
		footprint = m.ResizeNearest(f.Width, f.Height)
	}

	values := make([]float64, 0, footprint.Count())
	for i, in := range footprint.Pix {
		if in {
			values = append(values, f.Values[i])
		}
	}
	if len(values) == 0 {
		return nil, ErrNoCoverage
	}

	return &Sample{
		Values:    values,
		Footprint: footprint,
		Stats:     Summarize(values),
	}, nil
}

// Summarize computes Stats over a non-empty set of depth values.
// The standard deviation is the population value (divides by n).
func Summarize(values []float64) Stats {
	mean, std := stat.PopMeanStdDev(values, nil)
	return Stats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		Median: Median(values),
		Std:    std,
	}
}

// Median returns the middle value, averaging the two middle values when the
// count is even. values is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Package imaging holds the per-frame transforms of the detection pipeline:
// preprocessing, coordinate mapping between preprocessed and original space,
// and marker drawing.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// scaleTolerance bounds how far f*round(1/f) may drift from 1.
const scaleTolerance = 0.01

// ErrInvalidScale is returned for factors outside (0, 1) or without an integer reciprocal.
var ErrInvalidScale = errors.New("invalid scale factor")

// ScaleFactor is the downscale ratio applied before detection.
type ScaleFactor float64

// NewScaleFactor validates f. The factor must be in (0, 1) and consistent with
// its rounded reciprocal, so that scaling by f and back by Inverse() round-trips.
func NewScaleFactor(f float64) (ScaleFactor, error) {
	if math.IsNaN(f) || f <= 0 || f >= 1 {
		return 0, fmt.Errorf("%w: %g is not in (0, 1)", ErrInvalidScale, f)
	}
	inv := math.Round(1 / f)
	if math.Abs(f*inv-1) > scaleTolerance {
		return 0, fmt.Errorf("%w: %g is not the reciprocal of an integer", ErrInvalidScale, f)
	}
	return ScaleFactor(f), nil
}

// Inverse returns the integer multiplier round(1/f).
func (f ScaleFactor) Inverse() int {
	return int(math.Round(1 / float64(f)))
}

// Scale returns round(n*f). Ties round to even, matching how OpenCV derives
// the destination size of a resize from its scale factors.
func (f ScaleFactor) Scale(n int) int {
	return int(math.RoundToEven(float64(n) * float64(f)))
}

// ScaledSize returns the dimensions of a width x height image after downscaling.
func (f ScaleFactor) ScaledSize(width, height int) image.Point {
	return image.Pt(f.Scale(width), f.Scale(height))
}

package imaging

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrMalformedFrame is returned when a frame cannot be preprocessed.
var ErrMalformedFrame = errors.New("malformed frame")

// Preprocessor turns a camera frame into the detection image:
// grayscale, downscaled by the scale factor, histogram-equalized.
// It keeps no state between calls.
type Preprocessor struct {
	factor ScaleFactor
}

// NewPreprocessor creates a Preprocessor for the given factor.
func NewPreprocessor(factor ScaleFactor) *Preprocessor {
	return &Preprocessor{factor: factor}
}

// Factor returns the downscale factor.
func (p *Preprocessor) Factor() ScaleFactor {
	return p.factor
}

// Transform returns a new single-channel image in preprocessed space.
// The input frame is not modified; the caller owns and must close the result.
func (p *Preprocessor) Transform(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	size := p.factor.ScaledSize(frame.Cols(), frame.Rows())
	if size.X <= 0 || size.Y <= 0 {
		return gocv.Mat{}, fmt.Errorf("%w: %dx%d frame scales to %dx%d",
			ErrMalformedFrame, frame.Cols(), frame.Rows(), size.X, size.Y)
	}

	gray, err := toGray(frame)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()

	reduced := gocv.NewMat()
	defer reduced.Close()
	// destination size comes from the factor, not from an explicit size
	if err := gocv.Resize(gray, &reduced, image.Point{}, float64(p.factor), float64(p.factor), gocv.InterpolationLinear); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to resize frame: %w", err)
	}

	equalized := gocv.NewMat()
	if err := gocv.EqualizeHist(reduced, &equalized); err != nil {
		equalized.Close()
		return gocv.Mat{}, fmt.Errorf("failed to equalize histogram: %w", err)
	}

	return equalized, nil
}

func toGray(frame gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()

	var err error
	switch frame.Type() {
	case gocv.MatTypeCV8UC3:
		err = gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case gocv.MatTypeCV8UC4:
		err = gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	case gocv.MatTypeCV8UC1:
		err = frame.CopyTo(&gray)
	default:
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("%w: unsupported pixel type %v", ErrMalformedFrame, frame.Type())
	}

	if err != nil {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}
	return gray, nil
}

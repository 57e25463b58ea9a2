package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"facedetect/internal/model"

	"gocv.io/x/gocv"
)

const (
	// MarkerThickness is the outline width in pixels.
	MarkerThickness = 2
)

var (
	// MarkerColor is the outline color of face markers.
	MarkerColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

	// ErrSpaceMismatch is returned when a region is not in original space.
	ErrSpaceMismatch = errors.New("region is not in original space")
)

// DrawMarker draws an unfilled rectangle outline for region onto frame in place.
// Regions that do not touch the frame are skipped; partially visible ones are clipped.
func DrawMarker(frame *gocv.Mat, region model.Region, c color.RGBA, thickness int) error {
	if region.Space != model.SpaceOriginal {
		return fmt.Errorf("%w: got %s", ErrSpaceMismatch, region.Space)
	}
	if !region.Valid() || frame.Empty() {
		return nil
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	// the outline extends thickness/2 past the rectangle edges
	reach := bounds.Inset(-(thickness + 1) / 2)
	rect := region.Rect()
	if !rect.Overlaps(reach) && !(rect.Empty() && rect.Min.In(reach)) {
		return nil
	}

	if err := gocv.Rectangle(frame, rect, c, thickness); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}
	return nil
}

// Annotator draws face markers with a fixed style.
type Annotator struct {
	color     color.RGBA
	thickness int
}

// NewAnnotator returns an Annotator using MarkerColor and MarkerThickness.
func NewAnnotator() *Annotator {
	return &Annotator{color: MarkerColor, thickness: MarkerThickness}
}

// DrawAll draws a marker per region and returns how many were drawn before the first error.
func (a *Annotator) DrawAll(frame *gocv.Mat, regions []model.Region) (int, error) {
	for i, r := range regions {
		if err := DrawMarker(frame, r, a.color, a.thickness); err != nil {
			return i, err
		}
	}
	return len(regions), nil
}

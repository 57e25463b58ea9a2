package imaging

import (
	"fmt"

	"facedetect/internal/model"
)

// ToOriginalSpace rescales a preprocessed-space region into original space by
// multiplying every field with the integer inverse of the scale factor.
// Passing a region from any other space is a programming error.
func ToOriginalSpace(r model.Region, inverseScale int) model.Region {
	if r.Space != model.SpacePreprocessed {
		panic(fmt.Sprintf("imaging: cannot map region from %s space", r.Space))
	}
	return model.Region{
		X:      r.X * inverseScale,
		Y:      r.Y * inverseScale,
		Width:  r.Width * inverseScale,
		Height: r.Height * inverseScale,
		Space:  model.SpaceOriginal,
	}
}

// MapToOriginal applies ToOriginalSpace with the same multiplier to every region.
func MapToOriginal(regions []model.Region, inverseScale int) []model.Region {
	if len(regions) == 0 {
		return nil
	}
	mapped := make([]model.Region, len(regions))
	for i, r := range regions {
		mapped[i] = ToOriginalSpace(r, inverseScale)
	}
	return mapped
}

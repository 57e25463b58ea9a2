package model

import (
	"fmt"
	"image"
)

// Space identifies the pixel coordinate system a Region is expressed in.
type Space int

const (
	// SpacePreprocessed is the grid of the downscaled, equalized detection image.
	SpacePreprocessed Space = iota
	// SpaceOriginal is the grid of the full-resolution color frame.
	SpaceOriginal
)

func (s Space) String() string {
	switch s {
	case SpacePreprocessed:
		return "preprocessed"
	case SpaceOriginal:
		return "original"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// Region is an axis-aligned rectangle in a specific coordinate space.
type Region struct {
	X      int   `json:"x"`
	Y      int   `json:"y"`
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Space  Space `json:"-"`
}

// RegionFromRect converts an image.Rectangle into a Region in the given space.
func RegionFromRect(r image.Rectangle, space Space) Region {
	r = r.Canon()
	return Region{
		X:      r.Min.X,
		Y:      r.Min.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
		Space:  space,
	}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether width and height are non-negative.
func (r Region) Valid() bool {
	return r.Width >= 0 && r.Height >= 0
}

// Overlaps reports whether both regions share at least one pixel.
// Regions in different spaces never overlap.
func (r Region) Overlaps(o Region) bool {
	if r.Space != o.Space {
		return false
	}
	return r.Rect().Overlaps(o.Rect())
}

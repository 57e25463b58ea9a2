package dto

import (
	"time"

	"facedetect/internal/model"
)

// FrameReport describes the outcome of one full loop iteration.
type FrameReport struct {
	Seq        uint64         `json:"seq"`
	Faces      int            `json:"faces"`
	Regions    []model.Region `json:"regions"`
	Elapsed    time.Duration  `json:"-"`
	ElapsedMs  int64          `json:"elapsedMs"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// NewFrameReport builds a report for regions found in a frame, in original space.
func NewFrameReport(seq uint64, capturedAt time.Time, regions []model.Region, elapsed time.Duration) FrameReport {
	return FrameReport{
		Seq:        seq,
		Faces:      len(regions),
		Regions:    regions,
		Elapsed:    elapsed,
		ElapsedMs:  elapsed.Milliseconds(),
		CapturedAt: capturedAt,
	}
}

// LoopStatus is a point-in-time view of the capture loop.
type LoopStatus struct {
	State      string       `json:"state"`
	Iterations int64        `json:"iterations"`
	Misses     int64        `json:"misses"`
	Skipped    int64        `json:"skipped"`
	Presented  int64        `json:"presented"`
	Faults     int64        `json:"detectorFaults"`
	LastReport *FrameReport `json:"lastReport,omitempty"`
}

// RunSummary is reported when the app shuts down.
type RunSummary struct {
	State            string `json:"state"`
	Iterations       int64  `json:"iterations"`
	Presented        int64  `json:"presented"`
	PreviewDropped   int64  `json:"previewDropped"`
	SnapshotsDropped int64  `json:"snapshotsDropped"`
}

// PreviewMessage is broadcast to live preview viewers.
type PreviewMessage struct {
	Camera    string         `json:"camera"`
	Seq       uint64         `json:"seq"`
	Faces     int            `json:"faces"`
	Regions   []model.Region `json:"regions"`
	ElapsedMs int64          `json:"elapsedMs"`
	Image     string         `json:"image"`
}

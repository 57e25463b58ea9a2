package dto

import (
	"time"

	"facedetect/internal/model"
)

// BufferedSnapshot holds an encoded annotated frame and its regions before flushing to disk.
type BufferedSnapshot struct {
	SessionID  string
	FrameSeq   uint64
	CapturedAt time.Time
	Regions    []model.Region
	Data       []byte
}

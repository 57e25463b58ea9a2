package model

import "time"

// Session represents one run of the capture loop.
type Session struct {
	ID          string     `json:"id"`
	DeviceIndex int        `json:"device_index"`
	ScaleFactor float64    `json:"scale_factor"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Frames      int64      `json:"frames"`
	FinalState  string     `json:"final_state"`
}

// Snapshot represents an annotated frame saved to disk.
type Snapshot struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	FrameSeq   uint64    `json:"frame_seq"`
	Faces      int       `json:"faces"`
	CapturedAt time.Time `json:"captured_at"`
	FilePath   string    `json:"filepath"`
	FileSize   int64     `json:"filesize"`
}

// Detection is a single original-space face region stored with a snapshot.
type Detection struct {
	ID         int64 `json:"id"`
	SnapshotID int64 `json:"snapshot_id"`
	X          int   `json:"x"`
	Y          int   `json:"y"`
	Width      int   `json:"width"`
	Height     int   `json:"height"`
}

// SessionStats summarizes what a session recorded.
type SessionStats struct {
	Session        Session `json:"session"`
	Snapshots      int     `json:"snapshots"`
	Detections     int     `json:"detections"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
}

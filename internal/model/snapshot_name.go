package model

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const snapshotTimeLayout = "2006-01-02_15-04-05.000"

// SnapshotName holds the fields encoded in a snapshot filename.
type SnapshotName struct {
	SessionID  string
	FrameSeq   uint64
	CapturedAt time.Time
	Faces      int
}

// SnapshotFilename builds "<time>_<session>_<seq>_<n>faces.jpg".
func SnapshotFilename(sessionID string, seq uint64, capturedAt time.Time, faces int) string {
	return fmt.Sprintf("%s_%s_%06d_%dfaces.jpg", capturedAt.Format(snapshotTimeLayout), sessionID, seq, faces)
}

// ParseSnapshotFilename reverses SnapshotFilename.
func ParseSnapshotFilename(name string) (SnapshotName, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".jpg")
	parts := strings.Split(base, "_")
	if len(parts) != 5 {
		return SnapshotName{}, fmt.Errorf("invalid snapshot filename: %s", name)
	}

	capturedAt, err := time.ParseInLocation(snapshotTimeLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return SnapshotName{}, fmt.Errorf("invalid snapshot time in %s: %w", name, err)
	}
	seq, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return SnapshotName{}, fmt.Errorf("invalid frame sequence in %s: %w", name, err)
	}
	faces, err := strconv.Atoi(strings.TrimSuffix(parts[4], "faces"))
	if err != nil {
		return SnapshotName{}, fmt.Errorf("invalid face count in %s: %w", name, err)
	}

	return SnapshotName{
		SessionID:  parts[2],
		FrameSeq:   seq,
		CapturedAt: capturedAt,
		Faces:      faces,
	}, nil
}

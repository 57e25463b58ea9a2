package dto

import (
	"encoding/json"
	"time"

	"facedetect/internal/model"
)

// SnapshotInfo represents a stored snapshot and its regions as shown to viewers.
type SnapshotInfo struct {
	Name      string         `json:"name"`
	Session   string         `json:"session"`
	Date      time.Time      `json:"date"`
	TimeOfDay time.Time      `json:"timeOfDay"`
	Faces     int            `json:"faces"`
	Regions   []model.Region `json:"regions"`
}

// MarshalJSON customizes JSON output for SnapshotInfo to format date and time-of-day.
func (p SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(p),
	})
}

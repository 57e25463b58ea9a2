package repository

import (
	"time"

	"facedetect/internal/dto"
	"facedetect/internal/model"
)

// SessionRepository defines the interface for capture session records.
type SessionRepository interface {
	// Create operations
	Insert(s *model.Session) error

	// Update operations
	Finish(id string, endedAt time.Time, frames int64, finalState string) error

	// Read operations
	GetByID(id string) (*model.Session, error)
	GetAll() ([]model.Session, error)
	GetStats(id string) (*model.SessionStats, error)
}

// SnapshotRepository defines the interface for saved frame operations.
type SnapshotRepository interface {
	// Create operations
	Insert(s *model.Snapshot) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Snapshot, error)
	GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error)
	GetTotalCount(filter *dto.SnapshotFilters) (int, error)
	GetTotalSize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
}

// DetectionRepository defines the interface for face region operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.Detection) error

	// Read operations
	GetBySnapshotID(snapshotID int64) ([]model.Detection, error)
}

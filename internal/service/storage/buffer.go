package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"facedetect/internal/config"
	"facedetect/internal/dto"
	"facedetect/internal/logger"
	"facedetect/internal/model"
	"facedetect/internal/repository"

	"gocv.io/x/gocv"
)

// BufferService keeps annotated frames with faces in memory and periodically flushes them to disk.
// Observe only holds the lock long enough to append; flushes write outside it.
type BufferService struct {
	snapshotDir   string
	limit         int
	interval      time.Duration
	sessionID     string
	snapshots     []dto.BufferedSnapshot
	dropped       atomic.Int64
	mu            sync.Mutex
	flushMu       sync.Mutex
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a BufferService for one session. Repositories may be nil,
// in which case snapshots are only written as files.
func NewBufferService(cfg *config.Config, sessionID string, logger *logger.Logger, snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) *BufferService {
	return &BufferService{
		snapshotDir:   cfg.SnapshotDirectory,
		limit:         cfg.SnapshotBufferLimit,
		interval:      cfg.SnapshotFlushInterval,
		sessionID:     sessionID,
		snapshots:     make([]dto.BufferedSnapshot, 0, cfg.SnapshotBufferLimit),
		logger:        logger,
		snapshotRepo:  snapshotRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushSnapshots()
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		}
	}
}

// Observe buffers a JPEG copy of frames that contain at least one face.
func (s *BufferService) Observe(frame gocv.Mat, report dto.FrameReport) error {
	if report.Faces == 0 {
		return nil
	}
	if s.Pending() >= s.limit {
		s.dropped.Add(1)
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	defer buf.Close()
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	s.AddSnapshot(data, report.Seq, report.CapturedAt, report.Regions)
	return nil
}

// AddSnapshot appends an encoded frame to the buffer unless it is full.
func (s *BufferService) AddSnapshot(data []byte, seq uint64, capturedAt time.Time, regions []model.Region) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) >= s.limit {
		s.dropped.Add(1)
		return false
	}

	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		SessionID:  s.sessionID,
		FrameSeq:   seq,
		CapturedAt: capturedAt,
		Regions:    regions,
		Data:       data,
	})
	s.logger.Debug("Snapshot buffer: %d/%d", len(s.snapshots), s.limit)
	return true
}

// Pending returns how many snapshots wait for the next flush.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Dropped returns how many frames with faces were not kept because the buffer was full.
func (s *BufferService) Dropped() int64 {
	return s.dropped.Load()
}

// take empties the buffer and returns what it held.
func (s *BufferService) take() []dto.BufferedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.snapshots
	s.snapshots = make([]dto.BufferedSnapshot, 0, s.limit)
	return pending
}

// FlushSnapshots writes buffered snapshots to disk and the database and empties the buffer.
// It returns how many were saved.
func (s *BufferService) FlushSnapshots() int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pending := s.take()
	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.snapshotDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, snap := range pending {
		filename := model.SnapshotFilename(snap.SessionID, snap.FrameSeq, snap.CapturedAt, len(snap.Regions))
		fullpath := filepath.Join(s.snapshotDir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.snapshotRepo != nil {
			snapshotID, err := s.snapshotRepo.Insert(&model.Snapshot{
				SessionID:  snap.SessionID,
				Filename:   filename,
				FrameSeq:   snap.FrameSeq,
				Faces:      len(snap.Regions),
				CapturedAt: snap.CapturedAt,
				FilePath:   fullpath,
				FileSize:   int64(len(snap.Data)),
			})
			if err != nil {
				s.logger.Error("Error saving snapshot to database %s: %v", filename, err)
				continue
			}

			if s.detectionRepo != nil && len(snap.Regions) > 0 {
				detections := make([]model.Detection, 0, len(snap.Regions))
				for _, r := range snap.Regions {
					detections = append(detections, model.Detection{
						SnapshotID: snapshotID,
						X:          r.X,
						Y:          r.Y,
						Width:      r.Width,
						Height:     r.Height,
					})
				}
				if err := s.detectionRepo.InsertBatch(detections); err != nil {
					s.logger.Error("Error saving detections to database: %v", err)
				}
			}
		}

		savedCount++
	}

	s.logger.Info("💾 Flushed %d snapshots to disk", savedCount)
	return savedCount
}

package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"facedetect/internal/config"
	"facedetect/internal/dto"
	"facedetect/internal/logger"
	"facedetect/internal/model"
	"facedetect/internal/repository/sqlite"
	"facedetect/internal/service/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fixture struct {
	cfg        *config.Config
	db         *sqlite.DB
	sessionID  string
	snapshots  *sqlite.SnapshotRepository
	detections *sqlite.DetectionRepository
	buffer     *storage.BufferService
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.SnapshotDirectory = filepath.Join(dir, "snapshots")
	cfg.SnapshotBufferLimit = limit
	cfg.SnapshotFlushInterval = time.Hour

	db, err := sqlite.New(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessionID := uuid.NewString()
	require.NoError(t, sqlite.NewSessionRepository(db).Insert(&model.Session{
		ID:          sessionID,
		ScaleFactor: 0.25,
		StartedAt:   time.Now(),
		FinalState:  "running",
	}))

	f := &fixture{
		cfg:        cfg,
		db:         db,
		sessionID:  sessionID,
		snapshots:  sqlite.NewSnapshotRepository(db),
		detections: sqlite.NewDetectionRepository(db),
	}
	f.buffer = storage.NewBufferService(cfg, sessionID, logger.NewNop(), f.snapshots, f.detections)
	return f
}

func report(seq uint64, regions ...model.Region) dto.FrameReport {
	return dto.NewFrameReport(seq, time.Date(2025, 6, 15, 14, 30, 5, 0, time.Local), regions, 12*time.Millisecond)
}

func face(x, y int) model.Region {
	return model.Region{X: x, Y: y, Width: 120, Height: 120, Space: model.SpaceOriginal}
}

// ========================================
// Buffer Tests
// ========================================

func TestBufferService_IgnoresFramesWithoutFaces(t *testing.T) {
	f := newFixture(t, 10)
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	require.NoError(t, f.buffer.Observe(frame, report(1)))

	assert.Zero(t, f.buffer.Pending())
	assert.Zero(t, f.buffer.FlushSnapshots())
}

func TestBufferService_Limit(t *testing.T) {
	f := newFixture(t, 2)
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, f.buffer.Observe(frame, report(seq, face(1, 1))))
	}

	assert.Equal(t, 2, f.buffer.Pending())
	assert.Equal(t, int64(2), f.buffer.Dropped())

	assert.Equal(t, 2, f.buffer.FlushSnapshots())
	assert.Zero(t, f.buffer.Pending())
	assert.True(t, f.buffer.AddSnapshot([]byte("x"), 9, time.Now(), []model.Region{face(0, 0)}), "room again after flush")
}

func TestBufferService_FlushWritesFilesAndRows(t *testing.T) {
	f := newFixture(t, 10)
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	t.Logf("Step 1: observing a frame with two faces")
	require.NoError(t, f.buffer.Observe(frame, report(42, face(10, 20), face(200, 20))))

	t.Logf("Step 2: flushing")
	require.Equal(t, 1, f.buffer.FlushSnapshots())

	t.Logf("Step 3: checking the file")
	entries, err := os.ReadDir(f.cfg.SnapshotDirectory)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()

	decoded := gocv.IMRead(filepath.Join(f.cfg.SnapshotDirectory, name), gocv.IMReadColor)
	defer decoded.Close()
	assert.Equal(t, 64, decoded.Cols())
	assert.Equal(t, 48, decoded.Rows())

	t.Logf("Step 4: checking the database")
	snap, err := f.snapshots.GetByFilename(name)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, f.sessionID, snap.SessionID)
	assert.Equal(t, uint64(42), snap.FrameSeq)
	assert.Equal(t, 2, snap.Faces)

	dets, err := f.detections.GetBySnapshotID(snap.ID)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, 200, dets[1].X)
}

func TestBufferService_FilesOnlyWithoutRepositories(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotDirectory = filepath.Join(t.TempDir(), "snapshots")
	buffer := storage.NewBufferService(cfg, "session", logger.NewNop(), nil, nil)

	require.True(t, buffer.AddSnapshot([]byte{0xff, 0xd8}, 1, time.Now(), []model.Region{face(0, 0)}))
	assert.Equal(t, 1, buffer.FlushSnapshots())

	entries, err := os.ReadDir(cfg.SnapshotDirectory)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBufferService_RunFlushesOnCancel(t *testing.T) {
	f := newFixture(t, 10)
	require.True(t, f.buffer.AddSnapshot([]byte{0xff, 0xd8}, 3, time.Now(), []model.Region{face(0, 0)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.buffer.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Zero(t, f.buffer.Pending())
	count, err := f.snapshots.GetTotalCount(&dto.SnapshotFilters{SessionID: f.sessionID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// stallingSnapshots holds every Insert until release is closed.
type stallingSnapshots struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *stallingSnapshots) Insert(*model.Snapshot) (int64, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return 1, nil
}

func (r *stallingSnapshots) GetByFilename(string) (*model.Snapshot, error) { return nil, nil }
func (r *stallingSnapshots) GetAll(*dto.SnapshotFilters) ([]model.Snapshot, error) {
	return nil, nil
}
func (r *stallingSnapshots) GetTotalCount(*dto.SnapshotFilters) (int, error) { return 0, nil }
func (r *stallingSnapshots) GetTotalSize() (int64, error)                    { return 0, nil }
func (r *stallingSnapshots) DeleteByFilename(string) error                   { return nil }

func TestBufferService_ObserveDuringFlush(t *testing.T) {
	cfg := config.Default()
	cfg.SnapshotDirectory = filepath.Join(t.TempDir(), "snapshots")
	cfg.SnapshotBufferLimit = 10
	repo := &stallingSnapshots{entered: make(chan struct{}), release: make(chan struct{})}
	buffer := storage.NewBufferService(cfg, "session", logger.NewNop(), repo, nil)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, buffer.Observe(frame, report(1, face(1, 1))))

	t.Logf("Step 1: starting a flush that stalls in the repository")
	flushed := make(chan int)
	go func() { flushed <- buffer.FlushSnapshots() }()
	select {
	case <-repo.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("flush never reached the repository")
	}

	t.Logf("Step 2: observing while the flush is stuck")
	observed := make(chan error)
	go func() { observed <- buffer.Observe(frame, report(2, face(1, 1))) }()
	select {
	case err := <-observed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Observe blocked behind the flush")
	}
	assert.Equal(t, 1, buffer.Pending())

	t.Logf("Step 3: releasing the flush")
	close(repo.release)
	assert.Equal(t, 1, <-flushed)
	assert.Equal(t, 1, buffer.FlushSnapshots())
	assert.Zero(t, buffer.Pending())
}

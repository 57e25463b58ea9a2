package app

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"facedetect/internal/config"
	"facedetect/internal/logger"
	"facedetect/internal/model"
	"facedetect/internal/repository/sqlite"
	"facedetect/internal/service"
	"facedetect/internal/service/ai"
	"facedetect/internal/service/capture"
	"facedetect/internal/service/display"
	"facedetect/internal/service/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// ============================================
// Fakes
// ============================================

// closeLog records which components were closed, in order.
type closeLog struct {
	order []string
}

func (l *closeLog) add(name string) { l.order = append(l.order, name) }

type stubDetector struct{ log *closeLog }

func (d *stubDetector) Detect(img gocv.Mat) []model.Region { return nil }
func (d *stubDetector) Faults() int64                      { return 0 }
func (d *stubDetector) Close() error {
	d.log.add("detector")
	return nil
}

// stubSource hands out blank frames and calls onGrab with the 1-based grab number.
type stubSource struct {
	log    *closeLog
	seq    uint64
	onGrab func(call int)
}

func (s *stubSource) GrabFrame() (capture.Frame, bool) {
	s.seq++
	if s.onGrab != nil {
		s.onGrab(int(s.seq))
	}
	return capture.Frame{
		Mat:        gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3),
		Seq:        s.seq,
		CapturedAt: time.Now(),
	}, true
}

func (s *stubSource) Close() error {
	s.log.add("source")
	return nil
}

// stubSink presents like the headless sink and logs its release.
type stubSink struct {
	*display.Headless
	log *closeLog
}

func (s *stubSink) Close() error {
	s.log.add("sink")
	return s.Headless.Close()
}

func stubAcquirers(log *closeLog, source *stubSource) Acquirers {
	return Acquirers{
		Detector: func(*config.Config, *logger.Logger) (service.Detector, error) {
			return &stubDetector{log: log}, nil
		},
		Source: func(*config.Config) (service.FrameSource, error) {
			return source, nil
		},
		Sink: func(*config.Config) (service.Sink, error) {
			return &stubSink{Headless: display.NewHeadless(), log: log}, nil
		},
	}
}

func stubConfig() *config.Config {
	cfg := config.Default()
	cfg.Headless = true
	cfg.KeyPollMillis = 1
	return cfg
}

func cascadePath(t *testing.T) string {
	t.Helper()
	for _, p := range []string{
		os.Getenv("FACE_CASCADE"),
		"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_alt2.xml",
		"/usr/share/opencv4/haarcascades/haarcascade_frontalface_alt2.xml",
	} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("no face cascade installed")
	return ""
}

func TestSetupError(t *testing.T) {
	err := error(&SetupError{Step: "open capture device", Err: capture.ErrDeviceUnavailable})

	assert.Contains(t, err.Error(), "open capture device")
	assert.ErrorIs(t, err, capture.ErrDeviceUnavailable)

	var setupErr *SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "open capture device", setupErr.Step)
}

func TestSetupError_IsFaulted(t *testing.T) {
	err := &SetupError{Step: "load detector model", Err: ai.ErrModelLoad}
	assert.Equal(t, service.StateFaulted, err.State())
	assert.Equal(t, "faulted", err.State().String())
}

// ============================================
// Setup and release order
// ============================================

func TestNewAppWith_SurfaceFailureReleasesInReverse(t *testing.T) {
	log := &closeLog{}
	acquire := stubAcquirers(log, &stubSource{log: log})
	acquire.Sink = func(*config.Config) (service.Sink, error) {
		return nil, display.ErrSurfaceCreation
	}

	a, err := NewAppWith(stubConfig(), logger.NewNop(), acquire)
	require.Error(t, err)
	assert.Nil(t, a)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "create display surface", setupErr.Step)
	assert.Equal(t, service.StateFaulted, setupErr.State())
	assert.ErrorIs(t, err, display.ErrSurfaceCreation)

	assert.Equal(t, []string{"source", "detector"}, log.order, "each released once, newest first")
}

func TestNewAppWith_SourceFailureReleasesDetector(t *testing.T) {
	log := &closeLog{}
	acquire := stubAcquirers(log, &stubSource{log: log})
	sinkOpened := false
	acquire.Source = func(*config.Config) (service.FrameSource, error) {
		return nil, capture.ErrDeviceUnavailable
	}
	acquire.Sink = func(*config.Config) (service.Sink, error) {
		sinkOpened = true
		return display.NewHeadless(), nil
	}

	_, err := NewAppWith(stubConfig(), logger.NewNop(), acquire)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "open capture device", setupErr.Step)
	assert.False(t, sinkOpened, "later steps are not attempted")
	assert.Equal(t, []string{"detector"}, log.order)
}

func TestNewAppWith_BusyPreviewPortReleasesEverything(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := stubConfig()
	cfg.PreviewPort = busy.Addr().(*net.TCPAddr).Port

	log := &closeLog{}
	_, err = NewAppWith(cfg, logger.NewNop(), stubAcquirers(log, &stubSource{log: log}))

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "start preview server", setupErr.Step)
	assert.Equal(t, []string{"sink", "source", "detector"}, log.order)
}

// ============================================
// Run
// ============================================

func TestApp_RunUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &closeLog{}
	source := &stubSource{log: log, onGrab: func(call int) {
		if call == 3 {
			cancel()
		}
	}}

	a, err := NewAppWith(stubConfig(), logger.NewNop(), stubAcquirers(log, source))
	require.NoError(t, err)

	state := a.Run(ctx)

	assert.Equal(t, service.StateCancelled, state)
	assert.Equal(t, service.StateCancelled, a.State())
	assert.Equal(t, []string{"sink", "source", "detector"}, log.order)

	summary := a.Summary()
	assert.Equal(t, "cancelled", summary.State)
	assert.Equal(t, int64(3), summary.Iterations)
	assert.Equal(t, int64(3), summary.Presented)
	assert.Zero(t, summary.PreviewDropped)
	assert.Zero(t, summary.SnapshotsDropped)
}

func TestApp_RunRecordsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := stubConfig()
	cfg.Record = true
	cfg.DatabasePath = filepath.Join(t.TempDir(), "sessions.db")

	log := &closeLog{}
	source := &stubSource{log: log, onGrab: func(call int) {
		if call == 2 {
			cancel()
		}
	}}

	a, err := NewAppWith(cfg, logger.NewNop(), stubAcquirers(log, source))
	require.NoError(t, err)
	sessionID := a.sessionID
	a.Run(ctx)

	db, err := sqlite.New(cfg.DatabasePath, nil)
	require.NoError(t, err)
	defer db.Close()

	session, err := sqlite.NewSessionRepository(db).GetByID(sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "cancelled", session.FinalState)
	assert.Equal(t, int64(2), session.Frames)
	assert.NotNil(t, session.EndedAt)
}

// ============================================
// Real components
// ============================================

func TestNewApp_MissingModel(t *testing.T) {
	cfg := config.Default()
	cfg.CascadePath = filepath.Join(t.TempDir(), "missing.xml")
	cfg.Headless = true

	a, err := NewApp(cfg, logger.NewNop())
	require.Error(t, err)
	assert.Nil(t, a)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "load detector model", setupErr.Step)
	assert.ErrorIs(t, err, ai.ErrModelLoad)
}

func TestNewApp_InvalidScaleFactor(t *testing.T) {
	cfg := config.Default()
	cfg.ScaleFactor = 0.3

	_, err := NewApp(cfg, logger.NewNop())

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "configure scale factor", setupErr.Step)
	assert.ErrorIs(t, err, imaging.ErrInvalidScale)
}

func TestNewApp_MissingDevice(t *testing.T) {
	cfg := config.Default()
	cfg.CascadePath = cascadePath(t)
	cfg.DeviceIndex = 97
	cfg.Headless = true

	_, err := NewApp(cfg, logger.NewNop())

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "open capture device", setupErr.Step)
	assert.ErrorIs(t, err, capture.ErrDeviceUnavailable)
}

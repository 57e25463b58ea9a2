package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"facedetect/internal/config"
	"facedetect/internal/dto"
	"facedetect/internal/logger"
	"facedetect/internal/model"
	"facedetect/internal/repository"
	"facedetect/internal/repository/sqlite"
	"facedetect/internal/route"
	"facedetect/internal/service"
	"facedetect/internal/service/ai"
	"facedetect/internal/service/capture"
	"facedetect/internal/service/display"
	"facedetect/internal/service/imaging"
	"facedetect/internal/service/storage"
	"facedetect/internal/service/websocket"

	"github.com/google/uuid"
)

const shutdownTimeout = 5 * time.Second

// SetupError reports which startup step failed.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

type App struct {
	config  *config.Config
	logger  *logger.Logger
	manager *service.Manager

	db          *sqlite.DB
	sessionID   string
	sessionRepo repository.SessionRepository

	bufferService *storage.BufferService
	hubService    *websocket.HubService
	server        *http.Server
	listener      net.Listener
}

// SetupError is terminal: the loop never ran.
func (e *SetupError) State() service.State {
	return service.StateFaulted
}

// Acquirers open the detector, the capture device and the display surface.
type Acquirers struct {
	Detector func(cfg *config.Config, logger *logger.Logger) (service.Detector, error)
	Source   func(cfg *config.Config) (service.FrameSource, error)
	Sink     func(cfg *config.Config) (service.Sink, error)
}

// DefaultAcquirers opens the Haar cascade, the camera and a HighGUI window
// (or a headless sink when configured).
func DefaultAcquirers() Acquirers {
	return Acquirers{
		Detector: func(cfg *config.Config, logger *logger.Logger) (service.Detector, error) {
			engine, err := ai.LoadCascade(cfg.CascadePath)
			if err != nil {
				return nil, err
			}
			logger.Info("🤖 Face model loaded: %s", engine.Path())
			return ai.NewDetectorService(engine, logger), nil
		},
		Source: func(cfg *config.Config) (service.FrameSource, error) {
			source, err := capture.Open(cfg.DeviceIndex)
			if err != nil {
				return nil, err
			}
			return source, nil
		},
		Sink: func(cfg *config.Config) (service.Sink, error) {
			if cfg.Headless {
				return display.NewHeadless(), nil
			}
			window, err := display.NewWindow(cfg.WindowTitle)
			if err != nil {
				return nil, err
			}
			return window, nil
		},
	}
}

// NewApp builds the app on real hardware. See NewAppWith.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	return NewAppWith(cfg, logger, DefaultAcquirers())
}

// NewAppWith acquires the detector, the capture device and the display surface,
// in that order, plus the optional session database and preview server.
// On failure everything acquired so far is released in reverse order.
func NewAppWith(cfg *config.Config, logger *logger.Logger, acquire Acquirers) (a *App, err error) {
	factor, err := imaging.NewScaleFactor(cfg.ScaleFactor)
	if err != nil {
		return nil, &SetupError{Step: "configure scale factor", Err: err}
	}

	var release []func()
	defer func() {
		if err != nil {
			for i := len(release) - 1; i >= 0; i-- {
				release[i]()
			}
		}
	}()

	detector, err := acquire.Detector(cfg, logger)
	if err != nil {
		return nil, &SetupError{Step: "load detector model", Err: err}
	}
	release = append(release, func() { detector.Close() })

	source, err := acquire.Source(cfg)
	if err != nil {
		return nil, &SetupError{Step: "open capture device", Err: err}
	}
	release = append(release, func() { source.Close() })
	logger.Info("📷 Capture device %d opened", cfg.DeviceIndex)

	sink, err := acquire.Sink(cfg)
	if err != nil {
		return nil, &SetupError{Step: "create display surface", Err: err}
	}
	release = append(release, func() { sink.Close() })

	a = &App{
		config: cfg,
		logger: logger,
		manager: service.NewManager(service.Components{
			Detector:     detector,
			Source:       source,
			Sink:         sink,
			Preprocessor: imaging.NewPreprocessor(factor),
		}, service.Options{
			PollTimeout:  cfg.KeyPollTimeout(),
			InverseScale: factor.Inverse(),
		}, logger),
	}

	var snapshotRepo repository.SnapshotRepository
	var detectionRepo repository.DetectionRepository
	if cfg.Record {
		db, err := sqlite.New(cfg.DatabasePath, logger)
		if err != nil {
			return nil, &SetupError{Step: "open session database", Err: err}
		}
		release = append(release, func() { db.Close() })

		sessionRepo := sqlite.NewSessionRepository(db)
		session := &model.Session{
			ID:          uuid.NewString(),
			DeviceIndex: cfg.DeviceIndex,
			ScaleFactor: cfg.ScaleFactor,
			StartedAt:   time.Now(),
			FinalState:  service.StateRunning.String(),
		}
		if err := sessionRepo.Insert(session); err != nil {
			return nil, &SetupError{Step: "start session", Err: err}
		}

		sqliteSnapshots := sqlite.NewSnapshotRepository(db)
		sqliteDetections := sqlite.NewDetectionRepository(db)
		snapshotRepo, detectionRepo = sqliteSnapshots, sqliteDetections

		a.db = db
		a.sessionID = session.ID
		a.sessionRepo = sessionRepo
		a.bufferService = storage.NewBufferService(cfg, session.ID, logger, sqliteSnapshots, sqliteDetections)
		a.manager.AddObserver(a.bufferService)
		logger.Info("📼 Recording session %s to %s", session.ID, cfg.DatabasePath)
	}

	if cfg.PreviewPort > 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.PreviewPort))
		if err != nil {
			return nil, &SetupError{Step: "start preview server", Err: err}
		}
		release = append(release, func() { listener.Close() })

		a.hubService = websocket.NewHubService(cfg, logger)
		a.manager.AddObserver(a.hubService)
		a.listener = listener
		a.server = &http.Server{
			Handler:           route.SetupRoutes(cfg, logger, a.manager, a.hubService, snapshotRepo, detectionRepo),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Run drives the capture loop until ctx is done or ESC is pressed, then stops
// the background services and closes the session. It returns the loop's final state.
func (a *App) Run(ctx context.Context) service.State {
	background, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if a.bufferService != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.bufferService.Run(background)
		}()
	}
	if a.hubService != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hubService.Run(background)
		}()
	}
	if a.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Preview server error: %v", err)
			}
		}()
		a.logger.Info("📍 Preview: http://localhost:%d", a.config.PreviewPort)
	}

	state := a.manager.Run(ctx)

	if a.server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("Preview server shutdown: %v", err)
		}
		cancelShutdown()
	}
	cancel()
	wg.Wait()

	summary := a.Summary()
	a.logger.Info("📊 Presented %d frames, preview dropped %d, snapshots dropped %d",
		summary.Presented, summary.PreviewDropped, summary.SnapshotsDropped)

	a.finishSession(state)
	return state
}

// Summary reports the loop counters together with frames the background
// services had to drop.
func (a *App) Summary() dto.RunSummary {
	status := a.manager.Status()
	summary := dto.RunSummary{
		State:      status.State,
		Iterations: status.Iterations,
		Presented:  status.Presented,
	}
	if a.hubService != nil {
		summary.PreviewDropped = a.hubService.Dropped()
	}
	if a.bufferService != nil {
		summary.SnapshotsDropped = a.bufferService.Dropped()
	}
	return summary
}

// State returns the capture loop's lifecycle state.
func (a *App) State() service.State {
	return a.manager.State()
}

func (a *App) finishSession(state service.State) {
	if a.db == nil {
		return
	}
	defer a.db.Close()

	status := a.manager.Status()
	frames := status.Iterations - status.Misses
	if err := a.sessionRepo.Finish(a.sessionID, time.Now(), frames, state.String()); err != nil {
		a.logger.Error("Failed to finish session %s: %v", a.sessionID, err)
		return
	}
	a.logger.Info("📼 Session %s finished: %d frames, %s", a.sessionID, frames, state)
}

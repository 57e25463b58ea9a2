package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"facedetect/internal/dto"
	"facedetect/internal/logger"
	"facedetect/internal/model"
	"facedetect/internal/service/capture"
	"facedetect/internal/service/imaging"

	"gocv.io/x/gocv"
)

// KeyEscape is the key code that stops the loop.
const KeyEscape = 27

// State is the lifecycle state of the capture loop.
type State int

const (
	StateRunning State = iota
	StateCancelled
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FrameSource hands out camera frames.
type FrameSource interface {
	GrabFrame() (capture.Frame, bool)
	Close() error
}

// Preprocessor turns a camera frame into a detection image.
type Preprocessor interface {
	Transform(frame gocv.Mat) (gocv.Mat, error)
}

// Detector finds face regions in a detection image.
type Detector interface {
	Detect(img gocv.Mat) []model.Region
	Faults() int64
	Close() error
}

// Sink shows annotated frames and reports key presses.
type Sink interface {
	Present(frame gocv.Mat) error
	PollKey(timeout time.Duration) int
	Close() error
}

// Observer receives every annotated frame after it has been presented.
// The frame is only valid for the duration of the call.
type Observer interface {
	Observe(frame gocv.Mat, report dto.FrameReport) error
}

// Components are the resources the Manager owns. They are released in the
// reverse of the order they were acquired: Sink, Source, Detector.
type Components struct {
	Detector     Detector
	Source       FrameSource
	Sink         Sink
	Preprocessor Preprocessor
	Annotator    *imaging.Annotator
	Observers    []Observer
}

// Options tune the loop.
type Options struct {
	PollTimeout  time.Duration
	InverseScale int
	Output       io.Writer // console report lines, stdout when nil
}

// Manager runs the capture, detect, annotate and present loop.
type Manager struct {
	components Components
	options    Options
	logger     *logger.Logger

	mu         sync.RWMutex
	state      State
	iterations int64
	misses     int64
	skipped    int64
	presented  int64
	lastReport *dto.FrameReport

	releaseOnce sync.Once
}

// NewManager creates a Manager. Ownership of the components passes to it.
func NewManager(components Components, options Options, logger *logger.Logger) *Manager {
	if components.Annotator == nil {
		components.Annotator = imaging.NewAnnotator()
	}
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.InverseScale < 1 {
		options.InverseScale = 1
	}
	return &Manager{
		components: components,
		options:    options,
		logger:     logger,
		state:      StateRunning,
	}
}

// AddObserver registers an observer. It must be called before Run.
func (m *Manager) AddObserver(o Observer) {
	m.components.Observers = append(m.components.Observers, o)
}

// Run processes frames until ctx is done or ESC is pressed, then releases
// every component. It returns the terminal state.
func (m *Manager) Run(ctx context.Context) State {
	defer m.Close()

	m.logger.Info("🎬 Capture loop started")
	for {
		if m.cancelRequested(ctx) {
			m.setState(StateCancelled)
			m.logger.Info("🛑 Capture loop cancelled after %d iterations", m.Status().Iterations)
			return StateCancelled
		}
		m.iterate()
	}
}

// cancelRequested is the only cancellation checkpoint of the loop.
func (m *Manager) cancelRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}

	key := m.components.Sink.PollKey(m.options.PollTimeout)
	return key >= 0 && key&0xFF == KeyEscape
}

func (m *Manager) iterate() {
	m.mu.Lock()
	m.iterations++
	m.mu.Unlock()

	start := time.Now()
	frame, ok := m.components.Source.GrabFrame()
	if !ok {
		m.mu.Lock()
		m.misses++
		m.mu.Unlock()
		return
	}
	defer frame.Close()

	img, err := m.components.Preprocessor.Transform(frame.Mat)
	if err != nil {
		m.mu.Lock()
		m.skipped++
		m.mu.Unlock()
		m.logger.Warning("Skipping frame %d: %v", frame.Seq, err)
		return
	}
	detected := m.components.Detector.Detect(img)
	img.Close()

	regions := imaging.MapToOriginal(detected, m.options.InverseScale)
	if _, err := m.components.Annotator.DrawAll(&frame.Mat, regions); err != nil {
		m.logger.Error("Failed to annotate frame %d: %v", frame.Seq, err)
	}

	if err := m.components.Sink.Present(frame.Mat); err != nil {
		m.logger.Warning("Failed to present frame %d: %v", frame.Seq, err)
	} else {
		m.mu.Lock()
		m.presented++
		m.mu.Unlock()
	}

	report := dto.NewFrameReport(frame.Seq, frame.CapturedAt, regions, time.Since(start))
	for _, o := range m.components.Observers {
		if err := o.Observe(frame.Mat, report); err != nil {
			m.logger.Warning("Observer failed on frame %d: %v", frame.Seq, err)
		}
	}

	fmt.Fprintf(m.options.Output, "found %d faces in %d ms\n", report.Faces, report.ElapsedMs)

	m.mu.Lock()
	m.lastReport = &report
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns a snapshot of the loop counters. Safe for concurrent use.
func (m *Manager) Status() dto.LoopStatus {
	m.mu.RLock()
	status := dto.LoopStatus{
		State:      m.state.String(),
		Iterations: m.iterations,
		Misses:     m.misses,
		Skipped:    m.skipped,
		Presented:  m.presented,
	}
	if m.lastReport != nil {
		report := *m.lastReport
		status.LastReport = &report
	}
	m.mu.RUnlock()

	status.Faults = m.components.Detector.Faults()
	return status
}

// Close releases sink, source and detector, in that order, exactly once.
func (m *Manager) Close() {
	m.releaseOnce.Do(func() {
		if err := m.components.Sink.Close(); err != nil {
			m.logger.Error("Failed to close display: %v", err)
		}
		if err := m.components.Source.Close(); err != nil {
			m.logger.Error("Failed to close capture device: %v", err)
		}
		if err := m.components.Detector.Close(); err != nil {
			m.logger.Error("Failed to close detector: %v", err)
		}
	})
}

package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"facedetect/internal/logger"
	"facedetect/internal/model"

	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when the cascade model cannot be loaded.
	ErrModelLoad = errors.New("failed to load detection model")
	// ErrInvalidInput is returned for images the cascade cannot run on.
	ErrInvalidInput = errors.New("invalid detection input")
)

// Params is the fixed multi-scale search configuration.
type Params struct {
	ScaleStep    float64
	MinNeighbors int
	Flags        int
	MinSize      image.Point
	MaxSize      image.Point // zero means unbounded
}

// DefaultParams returns the face search configuration used by the pipeline.
func DefaultParams() Params {
	return Params{
		ScaleStep:    1.1,
		MinNeighbors: 2,
		Flags:        0,
		MinSize:      image.Pt(30, 30),
		MaxSize:      image.Point{},
	}
}

// Engine runs a multi-scale object search over a single-channel image.
type Engine interface {
	DetectMultiScale(img gocv.Mat, p Params) ([]image.Rectangle, error)
	Close() error
}

// CascadeEngine is an Engine backed by an OpenCV Haar cascade.
type CascadeEngine struct {
	classifier gocv.CascadeClassifier
	path       string
}

// LoadCascade reads a cascade model from path.
func LoadCascade(path string) (*CascadeEngine, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: model file not found: %s", ErrModelLoad, path)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot parse cascade %s", ErrModelLoad, path)
	}

	return &CascadeEngine{classifier: classifier, path: path}, nil
}

// Path returns the file the cascade was loaded from.
func (e *CascadeEngine) Path() string {
	return e.path
}

// DetectMultiScale runs the cascade on an 8-bit single-channel image.
// Input is checked up front: a failure inside OpenCV itself aborts the process.
func (e *CascadeEngine) DetectMultiScale(img gocv.Mat, p Params) ([]image.Rectangle, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if img.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("%w: expected 8-bit single channel, got %v", ErrInvalidInput, img.Type())
	}

	return e.classifier.DetectMultiScaleWithParams(img, p.ScaleStep, p.MinNeighbors, p.Flags, p.MinSize, p.MaxSize), nil
}

// Close releases the classifier.
func (e *CascadeEngine) Close() error {
	return e.classifier.Close()
}

// DetectorService locates faces in preprocessed images.
type DetectorService struct {
	engine Engine
	params Params
	logger *logger.Logger

	mu     sync.Mutex
	faults int64
	once   sync.Once
}

// NewDetectorService creates a detector over engine using DefaultParams.
func NewDetectorService(engine Engine, logger *logger.Logger) *DetectorService {
	return &DetectorService{
		engine: engine,
		params: DefaultParams(),
		logger: logger,
	}
}

// Params returns the search configuration.
func (s *DetectorService) Params() Params {
	return s.params
}

// Detect returns face regions in preprocessed space. A failed search is logged,
// counted and reported as no faces.
func (s *DetectorService) Detect(img gocv.Mat) []model.Region {
	rects, err := s.engine.DetectMultiScale(img, s.params)
	if err != nil {
		s.mu.Lock()
		s.faults++
		s.mu.Unlock()
		s.logger.Warning("Face detection failed: %v", err)
		return nil
	}

	if len(rects) == 0 {
		return nil
	}
	regions := make([]model.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, model.RegionFromRect(r, model.SpacePreprocessed))
	}
	return regions
}

// Faults returns how many searches have failed.
func (s *DetectorService) Faults() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// Close releases the engine once.
func (s *DetectorService) Close() error {
	var err error
	s.once.Do(func() {
		err = s.engine.Close()
	})
	return err
}

// Package capture wraps the camera device and hands out one frame per call.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrDeviceUnavailable is returned when the camera cannot be opened.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Device is the subset of gocv.VideoCapture the source needs.
type Device interface {
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Close() error
}

// Frame is one captured color image. The receiver owns Mat and must Close it.
type Frame struct {
	Mat        gocv.Mat
	Seq        uint64
	CapturedAt time.Time
}

// Close releases the frame's pixel buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Source pulls frames from a capture device.
type Source struct {
	device Device
	seq    uint64
	mu     sync.Mutex
	once   sync.Once
	closed bool
}

// Open acquires the camera at index. The caller must Close the returned Source.
func Open(index int) (*Source, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("%w: device %d: %v", ErrDeviceUnavailable, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrDeviceUnavailable, index)
	}
	return NewSource(vc), nil
}

// NewSource wraps an already opened device.
func NewSource(device Device) *Source {
	return &Source{device: device}
}

// IsReady reports whether the device is open.
func (s *Source) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.device.IsOpened()
}

// GrabFrame reads the next frame. It returns false when no frame is available
// right now, which is not an error; the loop simply tries again.
func (s *Source) GrabFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, false
	}

	m := gocv.NewMat()
	if !s.device.Read(&m) || m.Empty() {
		m.Close()
		return Frame{}, false
	}

	s.seq++
	return Frame{Mat: m, Seq: s.seq, CapturedAt: time.Now()}, true
}

// Close releases the device. Calling it more than once is safe.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		err = s.device.Close()
	})
	return err
}

package display

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Headless is a sink without a surface, for machines with no desktop session.
type Headless struct {
	mu     sync.Mutex
	closed bool
}

// NewHeadless creates a Headless sink.
func NewHeadless() *Headless {
	return &Headless{}
}

// Present accepts any non-empty frame until the sink is closed.
func (h *Headless) Present(frame gocv.Mat) error {
	if frame.Empty() {
		return errors.New("cannot present empty frame")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("headless sink is closed")
	}
	return nil
}

// PollKey waits for timeout; there is no keyboard to read.
func (h *Headless) PollKey(timeout time.Duration) int {
	time.Sleep(timeout)
	return KeyNone
}

func (h *Headless) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

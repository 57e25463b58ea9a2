// Package display presents annotated frames and polls the keyboard.
package display

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// KeyNone is returned by PollKey when no key was pressed.
const KeyNone = -1

// ErrSurfaceCreation is returned when the window cannot be created.
var ErrSurfaceCreation = errors.New("failed to create display surface")

// Window is a single named, auto-sized HighGUI window.
type Window struct {
	title  string
	window *gocv.Window
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// NewWindow opens the window. It fails when no display is available.
func NewWindow(title string) (w *Window, err error) {
	defer func() {
		if r := recover(); r != nil {
			w = nil
			err = fmt.Errorf("%w: %v", ErrSurfaceCreation, r)
		}
	}()

	win := gocv.NewWindow(title)
	if win == nil {
		return nil, fmt.Errorf("%w: %s", ErrSurfaceCreation, title)
	}
	if err := win.SetWindowProperty(gocv.WindowPropertyAutosize, gocv.WindowAutosize); err != nil {
		win.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSurfaceCreation, title, err)
	}

	return &Window{title: title, window: win}, nil
}

// Title returns the window name.
func (w *Window) Title() string {
	return w.title
}

// Present replaces the window contents with frame.
func (w *Window) Present(frame gocv.Mat) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("window %q is closed", w.title)
	}
	if frame.Empty() {
		return errors.New("cannot present empty frame")
	}
	if err := w.window.IMShow(frame); err != nil {
		return fmt.Errorf("failed to show frame in %q: %w", w.title, err)
	}
	return nil
}

// PollKey pumps window events for up to timeout and returns the pressed key code or KeyNone.
func (w *Window) PollKey(timeout time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return KeyNone
	}
	// WaitKey(0) would block until a key arrives
	ms := int(timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return w.window.WaitKey(ms)
}

// Close destroys the window. Later calls do nothing.
func (w *Window) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true
		err = w.window.Close()
	})
	return err
}

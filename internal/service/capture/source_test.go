package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeDevice yields a scripted sequence of reads; true produces a 64x48 frame.
type fakeDevice struct {
	opened bool
	reads  []bool
	calls  int
	closes int
}

func (d *fakeDevice) IsOpened() bool { return d.opened }

func (d *fakeDevice) Read(m *gocv.Mat) bool {
	ok := d.calls < len(d.reads) && d.reads[d.calls]
	d.calls++
	if !ok {
		return false
	}
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	_ = gocv.Rectangle(&frame, image.Rect(0, 0, 64, 48), color.RGBA{G: 255}, -1)
	return frame.CopyTo(m) == nil
}

func (d *fakeDevice) Close() error {
	d.closes++
	d.opened = false
	return nil
}

func TestSource_GrabFrame(t *testing.T) {
	dev := &fakeDevice{opened: true, reads: []bool{true, false, true}}
	src := NewSource(dev)
	defer src.Close()

	require.True(t, src.IsReady())

	f, ok := src.GrabFrame()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, 64, f.Mat.Cols())
	assert.Equal(t, 48, f.Mat.Rows())
	assert.False(t, f.CapturedAt.IsZero())
	f.Close()

	// a miss carries no frame
	f, ok = src.GrabFrame()
	assert.False(t, ok)
	assert.Zero(t, f.Seq)

	f, ok = src.GrabFrame()
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.Seq, "sequence counts delivered frames only")
	f.Close()
}

func TestSource_CloseIsIdempotent(t *testing.T) {
	dev := &fakeDevice{opened: true, reads: []bool{true}}
	src := NewSource(dev)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	assert.Equal(t, 1, dev.closes)
	assert.False(t, src.IsReady())

	_, ok := src.GrabFrame()
	assert.False(t, ok, "closed source yields nothing")
	assert.Equal(t, 0, dev.calls)
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(97)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

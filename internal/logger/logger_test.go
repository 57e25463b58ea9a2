package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"facedetect/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := config.Default()
	cfg.LogDirectory = dir

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestNewLogger_CreatesLevelFiles(t *testing.T) {
	_, dir := newFileLogger(t)

	for _, name := range []string{"info.log", "warning.log", "error.log"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestLogger_RoutesLevelsToFiles(t *testing.T) {
	l, dir := newFileLogger(t)

	l.Info("camera %d opened", 0)
	l.Warning("detector fault on frame %d", 7)
	l.Error("present failed: %s", "boom")
	require.NoError(t, l.Close())

	info := readLog(t, dir, "info.log")
	warning := readLog(t, dir, "warning.log")
	errorLog := readLog(t, dir, "error.log")

	assert.Contains(t, info, "camera 0 opened")
	assert.NotContains(t, info, "detector fault")
	assert.Contains(t, warning, "detector fault on frame 7")
	assert.Contains(t, errorLog, "present failed: boom")
	assert.False(t, strings.Contains(errorLog, "camera 0 opened"))
}

func TestLogger_DebugFilteredAtInfo(t *testing.T) {
	l, dir := newFileLogger(t)

	l.Debug("noisy %d", 1)
	require.NoError(t, l.Close())

	assert.NotContains(t, readLog(t, dir, "info.log"), "noisy")
}

func TestLogger_CleanLogs(t *testing.T) {
	l, dir := newFileLogger(t)

	l.Warning("to be removed")
	require.NoError(t, l.CleanLogs("warning.log"))

	assert.Empty(t, readLog(t, dir, "warning.log"))
}

func TestLogger_ConsoleOnly(t *testing.T) {
	cfg := config.Default()
	cfg.LogDirectory = ""

	l, err := NewLogger(cfg)
	require.NoError(t, err)

	l.Info("console only")
	assert.NoError(t, l.CleanLogs("info.log"))
	assert.NoError(t, l.Close())
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	l.Error("ignored")
	assert.NoError(t, l.Close())
}

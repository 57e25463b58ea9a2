package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.DeviceIndex)
	assert.Equal(t, "haarcascade_frontalface_alt2.xml", filepath.Base(cfg.CascadePath))
	assert.Equal(t, "window capture", cfg.WindowTitle)
	assert.Equal(t, 0.25, cfg.ScaleFactor)
	assert.Equal(t, 10*time.Millisecond, cfg.KeyPollTimeout())
	assert.False(t, cfg.Record)
	assert.Equal(t, 0, cfg.PreviewPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DEVICE_INDEX", "2")
	t.Setenv("SCALE_FACTOR", "0.5")
	t.Setenv("HEADLESS", "true")
	t.Setenv("SNAPSHOT_FLUSH_INTERVAL", "5")
	t.Setenv("LOG_DIR", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.DeviceIndex)
	assert.Equal(t, 0.5, cfg.ScaleFactor)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 5*time.Second, cfg.SnapshotFlushInterval)
	assert.Empty(t, cfg.LogDirectory)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WINDOW_TITLE=faces\nKEY_POLL_MS=25\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("WINDOW_TITLE")
		os.Unsetenv("KEY_POLL_MS")
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "faces", cfg.WindowTitle)
	assert.Equal(t, 25, cfg.KeyPollMillis)
}

func TestLoad_YAMLFileBelowEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "facedetect.yaml")
	yamlData := []byte("device_index: 3\nscale_factor: 0.5\nrecord: true\nsnapshot_flush_interval: 10s\npreview_port: 8090\n")
	require.NoError(t, os.WriteFile(path, yamlData, 0644))
	t.Setenv("PREVIEW_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.DeviceIndex)
	assert.Equal(t, 0.5, cfg.ScaleFactor)
	assert.True(t, cfg.Record)
	assert.Equal(t, 10*time.Second, cfg.SnapshotFlushInterval)
	assert.Equal(t, 9000, cfg.PreviewPort, "environment wins over the file")
}

func TestLoad_RejectsNaNScaleFactor(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SCALE_FACTOR", "NaN")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scale factor")
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"third", func(c *Config) { c.ScaleFactor = 1.0 / 3.0 }, false},
		{"factor one", func(c *Config) { c.ScaleFactor = 1 }, true},
		{"factor zero", func(c *Config) { c.ScaleFactor = 0 }, true},
		{"inconsistent factor", func(c *Config) { c.ScaleFactor = 0.3 }, true},
		{"negative device", func(c *Config) { c.DeviceIndex = -1 }, true},
		{"zero poll", func(c *Config) { c.KeyPollMillis = 0 }, true},
		{"empty cascade", func(c *Config) { c.CascadePath = "" }, true},
		{"headless without title", func(c *Config) { c.Headless = true; c.WindowTitle = "" }, false},
		{"window without title", func(c *Config) { c.WindowTitle = "" }, true},
		{"bad port", func(c *Config) { c.PreviewPort = 70000 }, true},
		{"record without buffer", func(c *Config) { c.Record = true; c.SnapshotBufferLimit = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

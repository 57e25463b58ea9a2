package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the capture loop and its supporting services.
// Values are resolved as defaults, then the optional YAML file, then .env and
// process environment variables.
type Config struct {
	DeviceIndex int    `yaml:"device_index"`
	CascadePath string `yaml:"cascade_path"`
	WindowTitle string `yaml:"window_title"`
	Headless    bool   `yaml:"headless"`

	ScaleFactor   float64 `yaml:"scale_factor"`
	KeyPollMillis int     `yaml:"key_poll_ms"` // HighGUI wait per iteration

	LogDirectory string `yaml:"log_dir"` // empty logs to console only
	LogLevel     string `yaml:"log_level"`

	Record                bool          `yaml:"record"`
	DatabasePath          string        `yaml:"db_path"`
	SnapshotDirectory     string        `yaml:"snapshot_dir"`
	SnapshotBufferLimit   int           `yaml:"snapshot_buffer_limit"`
	SnapshotFlushInterval time.Duration `yaml:"snapshot_flush_interval"`

	PreviewPort int    `yaml:"preview_port"` // 0 disables the preview server
	Password    string `yaml:"password"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DeviceIndex:           0,
		CascadePath:           filepath.Join(".", "haarcascade_frontalface_alt2.xml"),
		WindowTitle:           "window capture",
		Headless:              false,
		ScaleFactor:           0.25,
		KeyPollMillis:         10,
		LogDirectory:          filepath.Join(".", "logs"),
		LogLevel:              "info",
		Record:                false,
		DatabasePath:          filepath.Join("data", "sessions.db"),
		SnapshotDirectory:     filepath.Join(".", "snapshots"),
		SnapshotBufferLimit:   10,
		SnapshotFlushInterval: 30 * time.Second,
		PreviewPort:           0,
		Password:              "",
	}
}

// Load builds the configuration. path may name a YAML file; when empty the
// CONFIG_FILE environment variable is consulted. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DeviceIndex = getEnvAsInt("DEVICE_INDEX", c.DeviceIndex)
	c.CascadePath = getEnv("CASCADE_PATH", c.CascadePath)
	c.WindowTitle = getEnv("WINDOW_TITLE", c.WindowTitle)
	c.Headless = getEnvAsBool("HEADLESS", c.Headless)
	c.ScaleFactor = getEnvAsFloat("SCALE_FACTOR", c.ScaleFactor)
	c.KeyPollMillis = getEnvAsInt("KEY_POLL_MS", c.KeyPollMillis)
	c.LogDirectory = getEnvAllowEmpty("LOG_DIR", c.LogDirectory)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Record = getEnvAsBool("RECORD", c.Record)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.SnapshotDirectory = getEnv("SNAPSHOT_DIR", c.SnapshotDirectory)
	c.SnapshotBufferLimit = getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", c.SnapshotBufferLimit)
	c.SnapshotFlushInterval = getEnvAsDuration("SNAPSHOT_FLUSH_INTERVAL", c.SnapshotFlushInterval)
	c.PreviewPort = getEnvAsInt("PREVIEW_PORT", c.PreviewPort)
	c.Password = getEnv("PASSWORD", c.Password)
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.DeviceIndex < 0 {
		errs = append(errs, fmt.Errorf("device index must be >= 0, got %d", c.DeviceIndex))
	}
	if c.CascadePath == "" {
		errs = append(errs, errors.New("cascade path is required"))
	}
	if math.IsNaN(c.ScaleFactor) || c.ScaleFactor <= 0 || c.ScaleFactor >= 1 {
		errs = append(errs, fmt.Errorf("scale factor must be in (0, 1), got %g", c.ScaleFactor))
	} else if inv := math.Round(1 / c.ScaleFactor); math.Abs(c.ScaleFactor*inv-1) > 0.01 {
		errs = append(errs, fmt.Errorf("scale factor %g is not the reciprocal of an integer", c.ScaleFactor))
	}
	if c.KeyPollMillis <= 0 {
		errs = append(errs, fmt.Errorf("key poll timeout must be positive, got %d ms", c.KeyPollMillis))
	}
	if !c.Headless && c.WindowTitle == "" {
		errs = append(errs, errors.New("window title is required unless headless"))
	}
	if c.PreviewPort < 0 || c.PreviewPort > 65535 {
		errs = append(errs, fmt.Errorf("preview port out of range: %d", c.PreviewPort))
	}
	if c.Record {
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("db path is required when recording"))
		}
		if c.SnapshotBufferLimit <= 0 {
			errs = append(errs, fmt.Errorf("snapshot buffer limit must be positive, got %d", c.SnapshotBufferLimit))
		}
		if c.SnapshotFlushInterval <= 0 {
			errs = append(errs, fmt.Errorf("snapshot flush interval must be positive, got %s", c.SnapshotFlushInterval))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// KeyPollTimeout returns the per-iteration cancellation poll timeout.
func (c *Config) KeyPollTimeout() time.Duration {
	return time.Duration(c.KeyPollMillis) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one explicitly set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

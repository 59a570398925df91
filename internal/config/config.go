// Package config provides configuration management for the reel studio.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/indii/reelstudio/internal/encoder"
)

const (
	// Default values
	DefaultPort         = 8790
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".reelstudio"
	DefaultFrameRate    = 30
	DefaultExportFormat = encoder.FormatMP4
	DefaultExportGrace  = time.Second
	DefaultAssetTimeout = 15 * time.Second

	// Environment variable names
	EnvPort         = "REEL_PORT"
	EnvLogLevel     = "REEL_LOG_LEVEL"
	EnvDataDir      = "REEL_DATA_DIR"
	EnvFFmpeg       = "REEL_FFMPEG"
	EnvFrameRate    = "REEL_FRAME_RATE"
	EnvExportFormat = "REEL_EXPORT_FORMAT"
	EnvExportPace   = "REEL_EXPORT_PACE"
	EnvExportGrace  = "REEL_EXPORT_GRACE"
	EnvAssetTimeout = "REEL_ASSET_TIMEOUT"
	EnvHeadless     = "REEL_HEADLESS"
	EnvStyleFile    = "REEL_STYLE_FILE"

	// Database filename
	DBFilename = "reelstudio.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	FFmpegBinary() string
	FrameRate() int
	ExportFormat() string
	ExportPace() time.Duration
	ExportGrace() time.Duration
	AssetTimeout() time.Duration
	Headless() bool
	StyleFile() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	ffmpeg       string
	frameRate    int
	exportFormat string
	exportPace   time.Duration
	exportGrace  time.Duration
	assetTimeout time.Duration
	headless     bool
	styleFile    string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		frameRate:    DefaultFrameRate,
		exportFormat: DefaultExportFormat,
		exportGrace:  DefaultExportGrace,
		assetTimeout: DefaultAssetTimeout,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	cfg.ffmpeg = os.Getenv(EnvFFmpeg)
	cfg.styleFile = os.Getenv(EnvStyleFile)

	if fr := os.Getenv(EnvFrameRate); fr != "" {
		n, err := strconv.Atoi(fr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFrameRate, err)
		}
		if n < 1 || n > 120 {
			return nil, fmt.Errorf("invalid %s: frame rate must be between 1 and 120", EnvFrameRate)
		}
		cfg.frameRate = n
	}

	if f := os.Getenv(EnvExportFormat); f != "" {
		f = strings.ToLower(f)
		if !isFormat(f) {
			return nil, fmt.Errorf("invalid %s: unknown format %q", EnvExportFormat, f)
		}
		cfg.exportFormat = f
	}

	var err error
	if cfg.exportPace, err = durationEnv(EnvExportPace, 0); err != nil {
		return nil, err
	}
	if cfg.exportGrace, err = durationEnv(EnvExportGrace, DefaultExportGrace); err != nil {
		return nil, err
	}
	if cfg.assetTimeout, err = durationEnv(EnvAssetTimeout, DefaultAssetTimeout); err != nil {
		return nil, err
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		b, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = b
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func isFormat(f string) bool {
	for _, known := range encoder.Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir is where finished exports are written.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// FFmpegBinary is the configured ffmpeg path; empty means look it up on PATH.
func (c *EnvConfig) FFmpegBinary() string {
	return c.ffmpeg
}

func (c *EnvConfig) FrameRate() int {
	return c.frameRate
}

// ExportFormat is the format used when a caller does not pick one.
func (c *EnvConfig) ExportFormat() string {
	return c.exportFormat
}

// ExportPace is the minimum interval between exported frames. Zero paces
// by encoder back-pressure only.
func (c *EnvConfig) ExportPace() time.Duration {
	return c.exportPace
}

func (c *EnvConfig) ExportGrace() time.Duration {
	return c.exportGrace
}

func (c *EnvConfig) AssetTimeout() time.Duration {
	return c.assetTimeout
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) StyleFile() string {
	return c.styleFile
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

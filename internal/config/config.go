// Package config loads camrec settings from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. CAMREC_FFMPEG.
const Prefix = "CAMREC"

type Config struct {
	// FFmpeg is the ffmpeg executable used for enumeration, capture, writing and muxing.
	FFmpeg string `envconfig:"FFMPEG" default:"ffmpeg"`
	// BufferSeconds sizes the real-time input buffer of the ffmpeg backend.
	BufferSeconds float64 `envconfig:"BUFFER_SECONDS" default:"4"`
	// QueueCapacity bounds the frame queue of a capture stream. 0 means unbounded.
	QueueCapacity int `envconfig:"QUEUE_CAPACITY" default:"0"`
	// TempDir is where per-session scratch directories are created. Empty uses the OS default.
	TempDir string `envconfig:"TEMP_DIR"`
	// Backend overrides the capture backend chosen from the device descriptor.
	Backend string `envconfig:"BACKEND"`
	// Writer selects the file writer, "ffmpeg" or "opencv".
	Writer string `envconfig:"WRITER" default:"ffmpeg"`
	// Codec is the video codec passed to the writer.
	Codec string `envconfig:"CODEC" default:"libx264"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	// LogFile enables a rotating log file instead of stderr.
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
}

// Load reads the configuration from CAMREC_* environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("invalid config: buffer seconds must be positive, got %v", c.BufferSeconds)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("invalid config: queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	switch c.Writer {
	case "ffmpeg", "opencv":
	default:
		return fmt.Errorf("invalid config: unknown writer %q", c.Writer)
	}
	return nil
}

package config

import (
	"errors"
	"time"

	"github.com/Skryldev/fileforge/utils"
)

// Interpolation selects the resampling kernel used when resizing pixels.
type Interpolation string

const (
	InterpolationNearest  Interpolation = "nearest"
	InterpolationBilinear Interpolation = "bilinear"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	// Worker pool controls.
	WorkerCount int // default: runtime.NumCPU()
	QueueSize   int // max queued jobs before backpressure; default: 256
	JobTimeout  time.Duration

	// How long a finished job's result stays retrievable.  0 keeps results
	// until the processor stops.
	ResultTTL time.Duration

	// Default encode quality when a job carries no compression level.
	DefaultQuality int // 1-100; default 85

	// Streaming / memory limits.
	MaxInputBytes  int64 // per input; 0 = no limit
	ChunkSize      int   // streaming chunk size in bytes; default 32 KiB
	MaxOutputBytes int64 // default output capacity; 0 = unbounded
	MaxImagePixels int64 // per decoded image or video frame; 0 = no limit

	// Pixel resampling for image and video resizes.
	Interpolation Interpolation

	// Frame rate for slideshows built from merged images.
	SlideshowFPS float64

	// Local output storage used by the CLI.
	Local LocalConfig

	// Logging.
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "text" or "json"
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	OutputDir   string
	Permissions uint32 // default 0644
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		JobTimeout:     5 * time.Minute,
		ResultTTL:      10 * time.Minute,
		DefaultQuality: 85,
		MaxInputBytes:  512 << 20,
		MaxImagePixels: 100_000_000,
		ChunkSize:      32 * 1024,
		Interpolation:  InterpolationNearest,
		SlideshowFPS:   1,
		Local: LocalConfig{
			OutputDir:   ".",
			Permissions: 0o644,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.WorkerCount < 0 {
		return errors.New("config: WorkerCount must not be negative")
	}
	if c.MaxInputBytes < 0 || c.MaxOutputBytes < 0 || c.MaxImagePixels < 0 {
		return errors.New("config: byte limits must not be negative")
	}
	switch c.Interpolation {
	case InterpolationNearest, InterpolationBilinear:
	default:
		return errors.New("config: Interpolation must be nearest or bilinear")
	}
	if !(c.SlideshowFPS >= utils.MinFPS && c.SlideshowFPS <= utils.MaxFPS) {
		return errors.New("config: SlideshowFPS must be between 0.01 and 240")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.New("config: LogFormat must be text or json")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the default prefix for environment overrides.
const EnvPrefix = "FILEFORGE_"

// FromEnv overlays environment variables named prefix+KEY onto base.
// Unset variables keep the base value; malformed ones are reported
// together and leave the base value in place.
//
//	WORKERS, QUEUE_SIZE, JOB_TIMEOUT, RESULT_TTL, DEFAULT_QUALITY,
//	MAX_INPUT_BYTES, MAX_OUTPUT_BYTES, MAX_IMAGE_PIXELS, CHUNK_SIZE, INTERPOLATION,
//	SLIDESHOW_FPS, OUTPUT_DIR, LOG_LEVEL, LOG_FORMAT
func FromEnv(prefix string, base Config) (Config, error) {
	e := envReader{prefix: prefix}
	c := base
	c.WorkerCount = e.getInt("WORKERS", c.WorkerCount)
	c.QueueSize = e.getInt("QUEUE_SIZE", c.QueueSize)
	c.JobTimeout = e.getDuration("JOB_TIMEOUT", c.JobTimeout)
	c.ResultTTL = e.getDuration("RESULT_TTL", c.ResultTTL)
	c.DefaultQuality = e.getInt("DEFAULT_QUALITY", c.DefaultQuality)
	c.MaxInputBytes = e.getInt64("MAX_INPUT_BYTES", c.MaxInputBytes)
	c.MaxOutputBytes = e.getInt64("MAX_OUTPUT_BYTES", c.MaxOutputBytes)
	c.MaxImagePixels = e.getInt64("MAX_IMAGE_PIXELS", c.MaxImagePixels)
	c.ChunkSize = e.getInt("CHUNK_SIZE", c.ChunkSize)
	c.Interpolation = Interpolation(e.get("INTERPOLATION", string(c.Interpolation)))
	c.SlideshowFPS = e.getFloat("SLIDESHOW_FPS", c.SlideshowFPS)
	c.Local.OutputDir = e.get("OUTPUT_DIR", c.Local.OutputDir)
	c.LogLevel = e.get("LOG_LEVEL", c.LogLevel)
	c.LogFormat = e.get("LOG_FORMAT", c.LogFormat)
	return c, errors.Join(e.errs...)
}

type envReader struct {
	prefix string
	errs   []error
}

func (e *envReader) get(key, defaultValue string) string {
	if value := os.Getenv(e.prefix + key); value != "" {
		return value
	}
	return defaultValue
}

func (e *envReader) getInt(key string, defaultValue int) int {
	if value := os.Getenv(e.prefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		e.errs = append(e.errs, fmt.Errorf("config: invalid integer for %s%s: %q", e.prefix, key, value))
	}
	return defaultValue
}

func (e *envReader) getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(e.prefix + key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		e.errs = append(e.errs, fmt.Errorf("config: invalid integer for %s%s: %q", e.prefix, key, value))
	}
	return defaultValue
}

func (e *envReader) getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(e.prefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		e.errs = append(e.errs, fmt.Errorf("config: invalid number for %s%s: %q", e.prefix, key, value))
	}
	return defaultValue
}

func (e *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(e.prefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		e.errs = append(e.errs, fmt.Errorf("config: invalid duration for %s%s: %q", e.prefix, key, value))
	}
	return defaultValue
}

//go:build vips

package main

import (
	"github.com/Skryldev/fileforge"
	"github.com/Skryldev/fileforge/adapters/imaging"
	"github.com/Skryldev/fileforge/adapters/vips"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/formats"
)

// The libvips backend adds webp output plus heic and avif.
func init() {
	cfg, _ := config.FromEnv(config.EnvPrefix, config.Default())
	backend := vips.NewBackend(vips.BackendConfig{MaxWorkers: cfg.WorkerCount}, imaging.New(cfg))
	backendOptions = append(backendOptions,
		fileforge.WithCodec(backend),
		fileforge.WithFormats(vips.Formats(formats.Default())),
	)
	backendShutdown = append(backendShutdown, backend.Shutdown)
}

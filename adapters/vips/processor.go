//go:build vips

// Package vips is an optional libvips-backed image codec.  It adds WebP
// output plus HEIC and AVIF in both directions, and hands every other image
// format to the pure-Go imaging codec.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/fileforge/adapters/imaging"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/formats"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Backend is a libvips-powered image codec.  Safe for concurrent use across
// goroutines.
type Backend struct {
	cfg    BackendConfig
	native *imaging.Codec
}

// NewBackend initialises libvips and returns a ready Backend that falls
// back to native for the formats libvips is not needed for.  Call Shutdown
// when the process exits.
func NewBackend(cfg BackendConfig, native *imaging.Codec) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg, native: native}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// vipsOnly lists the extensions this backend handles itself.
var vipsOnly = map[string]bool{".webp": true, ".heic": true, ".avif": true}

// Formats returns reg extended with the formats libvips adds.  Every image
// format gains the new targets.
func Formats(reg *formats.Registry) *formats.Registry {
	extra := []string{".webp", ".heic", ".avif"}
	var descs []formats.Descriptor
	for _, ext := range reg.Extensions(core.CategoryImage) {
		d, _ := reg.Lookup(ext)
		d.Targets = append(d.Targets, extra...)
		descs = append(descs, d)
	}
	targets := descs[0].Targets
	for _, d := range []formats.Descriptor{
		{Ext: ".webp", MIME: "image/webp"},
		{Ext: ".heic", MIME: "image/heic"},
		{Ext: ".avif", MIME: "image/avif"},
	} {
		d.Category = core.CategoryImage
		d.Targets = targets
		d.Levels = core.Levels
		d.Decode, d.Encode = true, true
		descs = append(descs, d)
	}
	return reg.With(descs...)
}

func (b *Backend) Category() core.Category { return core.CategoryImage }

// Steps reuses the native image edits.
func (b *Backend) Steps(params map[string]string) ([]core.Step, error) {
	return b.native.Steps(params)
}

// Compress reuses the native downscale.
func (b *Backend) Compress(ctx context.Context, can core.Canonical, level core.Level) (core.Canonical, error) {
	return b.native.Compress(ctx, can, level)
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if !vipsOnly[ext] {
		return b.native.Decode(ctx, data, ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "vips.decode", err)
	}
	op := "vips" + ext + ".decode"

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
	}
	defer ref.Close()

	orientation := ref.Orientation()
	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
	}
	img, err := ref.ToImage(govips.NewDefaultPNGExportParams())
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
	}
	bounds := img.Bounds()
	return &core.Raster{
		Image: img,
		Meta: core.ImageMeta{
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			ColorSpace:  interpretationToColorSpace(ref.Interpretation(), ref.HasAlpha()),
			HasAlpha:    ref.HasAlpha(),
			Orientation: orientation,
		},
	}, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if !vipsOnly[ext] {
		return b.native.Encode(ctx, can, ext, opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "vips.encode", err)
	}
	op := "vips" + ext + ".encode"
	ras, ok := can.(*core.Raster)
	if !ok || ras == nil || ras.Image == nil {
		return nil, apperrors.New(apperrors.KindInternal, op, fmt.Errorf("expected image raster, got %T", can))
	}

	ref, err := load(ras.Image)
	if err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
	}
	defer ref.Close()

	quality := b.native.Quality(opts)
	var out []byte
	switch ext {
	case ".webp":
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		out, _, err = ref.ExportWebp(ep)
	case ".heic":
		ep := govips.NewHeifExportParams()
		ep.Quality = quality
		out, _, err = ref.ExportHeif(ep)
	case ".avif":
		ep := govips.NewAvifExportParams()
		ep.Quality = quality
		out, _, err = ref.ExportAvif(ep)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
	}
	if err := core.CheckCapacity(op, len(out), opts.MaxBytes); err != nil {
		return nil, err
	}
	return out, nil
}

// load hands img to libvips through a lossless PNG buffer.
func load(img image.Image) (*govips.ImageRef, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return govips.NewImageFromBuffer(buf.Bytes())
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func interpretationToColorSpace(i govips.Interpretation, alpha bool) core.ColorSpace {
	switch i {
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	}
	if alpha {
		return core.ColorSpaceRGBA
	}
	return core.ColorSpaceRGB
}

// compile-time interface checks
var (
	_ core.Codec  = (*Backend)(nil)
	_ core.Editor = (*Backend)(nil)
)

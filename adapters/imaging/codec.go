// Package imaging is the image codec: decoding to an upright pixel grid,
// encoding to the writable raster formats, resizing and the image edits.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Codec implements core.Codec for the image category.
type Codec struct {
	Interpolation  config.Interpolation
	DefaultQuality int   // used when neither EncodeOptions.Quality nor a level applies
	MaxPixels      int64 // 0 = no limit
}

// New returns an image codec configured from cfg.
func New(cfg config.Config) *Codec {
	q := cfg.DefaultQuality
	if q <= 0 {
		q = 85
	}
	return &Codec{Interpolation: cfg.Interpolation, DefaultQuality: q, MaxPixels: cfg.MaxImagePixels}
}

func (c *Codec) Category() core.Category { return core.CategoryImage }

// ── Decode ────────────────────────────────────────────────────────────────────

func (c *Codec) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "image.decode", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "image.decode", apperrors.ErrEmptyInput)
	}

	if err := CheckPixels(data, ext, c.MaxPixels); err != nil {
		return nil, err
	}

	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(data)
	switch ext {
	case ".jpg":
		img, err = jpeg.Decode(r)
	case ".png":
		img, err = png.Decode(r)
	case ".gif":
		img, err = gif.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	case ".tiff":
		img, err = tiff.Decode(r)
	case ".webp":
		img, err = webp.Decode(r)
	default:
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, "image.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "image"+ext+".decode", err)
	}

	meta := core.ImageMeta{
		ColorSpace: colorSpace(img),
		HasAlpha:   hasAlpha(img),
	}
	if ext == ".jpg" {
		meta.Orientation, meta.EXIF = readEXIF(data)
		img = Orient(img, meta.Orientation)
	}
	b := img.Bounds()
	meta.Width, meta.Height = b.Dx(), b.Dy()
	return &core.Raster{Image: img, Meta: meta}, nil
}

// CheckPixels reads only the header of an encoded image and rejects one
// whose declared dimensions exceed maxPixels.  Formats without a header
// reader here pass unchecked.
func CheckPixels(data []byte, ext string, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	var decodeConfig func(io.Reader) (image.Config, error)
	switch ext {
	case ".jpg":
		decodeConfig = jpeg.DecodeConfig
	case ".png":
		decodeConfig = png.DecodeConfig
	case ".gif":
		decodeConfig = gif.DecodeConfig
	case ".bmp":
		decodeConfig = bmp.DecodeConfig
	case ".tiff":
		decodeConfig = tiff.DecodeConfig
	case ".webp":
		decodeConfig = webp.DecodeConfig
	default:
		return nil
	}
	op := "image" + ext + ".decode"
	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return apperrors.New(apperrors.KindDecodeFailure, op, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return apperrors.New(apperrors.KindDecodeFailure, op,
			fmt.Errorf("%w: %dx%d exceeds %d pixels", apperrors.ErrInputTooLarge, cfg.Width, cfg.Height, maxPixels))
	}
	return nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

func (c *Codec) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "image.encode", err)
	}
	ras, err := asRaster(can, "image.encode")
	if err != nil {
		return nil, err
	}
	op := "image" + ext + ".encode"

	var buf bytes.Buffer
	switch ext {
	case ".jpg":
		err = jpeg.Encode(&buf, ras.Image, &jpeg.Options{Quality: c.Quality(opts)})
	case ".png":
		enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
		if core.ProfileFor(opts.Level).PNGBestCompression {
			enc.CompressionLevel = png.BestCompression
		}
		err = enc.Encode(&buf, ras.Image)
	case ".gif":
		err = gif.Encode(&buf, Quantize(ras.Image), nil)
	case ".bmp":
		err = bmp.Encode(&buf, ras.Image)
	case ".tiff":
		err = tiff.Encode(&buf, ras.Image, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return nil, apperrors.New(apperrors.KindIllegalConversion, "image.encode",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, ext))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
	}
	if err := core.CheckCapacity(op, buf.Len(), opts.MaxBytes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Quality picks the JPEG quality: explicit, then the level's, then the default.
func (c *Codec) Quality(opts core.EncodeOptions) int {
	switch {
	case opts.Quality > 0:
		return min(opts.Quality, 100)
	case opts.Level != "":
		return core.ProfileFor(opts.Level).ImageQuality
	case c.DefaultQuality > 0:
		return c.DefaultQuality
	}
	return jpeg.DefaultQuality
}

// ── Compress ──────────────────────────────────────────────────────────────────

// Compress downscales to the level's maximum dimension.  The quality side of
// the level is applied by Encode.
func (c *Codec) Compress(ctx context.Context, can core.Canonical, level core.Level) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "image.compress", err)
	}
	ras, err := asRaster(can, "image.compress")
	if err != nil {
		return nil, err
	}
	b := ras.Bounds()
	w, h := utils.FitWithin(b.Dx(), b.Dy(), core.ProfileFor(level).ImageMaxDimension)
	if w == b.Dx() && h == b.Dy() {
		return ras, nil
	}
	return withImage(ras, Resize(ras.Image, w, h, c.Interpolation)), nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// Quantize maps img onto the Plan 9 palette with Floyd-Steinberg dithering.
func Quantize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

func asRaster(c core.Canonical, op string) (*core.Raster, error) {
	r, ok := c.(*core.Raster)
	if !ok || r == nil || r.Image == nil {
		return nil, apperrors.New(apperrors.KindInternal, op,
			fmt.Errorf("expected image raster, got %T", c))
	}
	return r, nil
}

// withImage returns a copy of r carrying img, with dimensions updated.
func withImage(r *core.Raster, img image.Image) *core.Raster {
	out := *r
	out.Image = img
	b := img.Bounds()
	out.Meta.Width, out.Meta.Height = b.Dx(), b.Dy()
	out.Meta.ColorSpace = colorSpace(img)
	return &out
}

// colorSpace returns the colour space of an image.Image.
func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	case *image.YCbCr:
		return core.ColorSpaceYCC
	}
	return core.ColorSpaceRGB
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return true
	}
	return false
}

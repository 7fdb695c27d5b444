package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Steps parses image edit parameters.  Edits run in a fixed order: crop,
// resize, rotate, flip, grayscale.
//
//	crop=x,y,w,h  resize=WxH  interpolation=nearest|bilinear
//	rotate=90|180|270  flip=h|v  grayscale=true
func (c *Codec) Steps(params map[string]string) ([]core.Step, error) {
	if err := utils.CheckKeys(params, "crop", "resize", "interpolation", "rotate", "flip", "grayscale"); err != nil {
		return nil, err
	}
	var steps []core.Step

	if v, ok := params["crop"]; ok {
		r, err := utils.ParseInts("crop", v, 4)
		if err != nil {
			return nil, err
		}
		if r[2] == 0 || r[3] == 0 {
			return nil, invalid("crop", "empty crop rectangle %q", v)
		}
		steps = append(steps, &CropStep{X: r[0], Y: r[1], Width: r[2], Height: r[3]})
	}
	if v, ok := params["resize"]; ok {
		w, h, err := utils.ParseSize("resize", v)
		if err != nil {
			return nil, err
		}
		interp := c.Interpolation
		if s, ok := params["interpolation"]; ok {
			name, err := utils.ParseChoice("interpolation", s,
				string(config.InterpolationNearest), string(config.InterpolationBilinear))
			if err != nil {
				return nil, err
			}
			interp = config.Interpolation(name)
		}
		steps = append(steps, &ResizeStep{Width: w, Height: h, Interpolation: interp})
	}
	if v, ok := params["rotate"]; ok {
		deg, err := utils.ParseChoice("rotate", v, "90", "180", "270")
		if err != nil {
			return nil, err
		}
		steps = append(steps, &RotateStep{Degrees: map[string]int{"90": 90, "180": 180, "270": 270}[deg]})
	}
	if v, ok := params["flip"]; ok {
		axis, err := utils.ParseChoice("flip", v, "h", "v")
		if err != nil {
			return nil, err
		}
		steps = append(steps, &FlipStep{Vertical: axis == "v"})
	}
	if v, ok := params["grayscale"]; ok {
		on, err := utils.ParseBool("grayscale", v)
		if err != nil {
			return nil, err
		}
		if on {
			steps = append(steps, &GrayscaleStep{})
		}
	}
	return steps, nil
}

func invalid(op, format string, args ...any) error {
	return apperrors.New(apperrors.KindInvalidParameters, "image."+op,
		fmt.Errorf("%w: %s", apperrors.ErrInvalidParameters, fmt.Sprintf(format, args...)))
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep resizes the image to the given dimensions, preserving aspect ratio
// when one axis is 0.
type ResizeStep struct {
	Width, Height int
	Interpolation config.Interpolation
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	ras, err := asRaster(c, "image.resize")
	if err != nil {
		return nil, err
	}
	b := ras.Bounds()
	w, h := utils.ScaleDimensions(b.Dx(), b.Dy(), s.Width, s.Height)
	if w == b.Dx() && h == b.Dy() {
		return ras, nil
	}
	return withImage(ras, Resize(ras.Image, w, h, s.Interpolation)), nil
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// CropStep crops a rectangle from the image.
type CropStep struct {
	X, Y, Width, Height int
}

func (s *CropStep) Name() string { return "crop" }

func (s *CropStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	ras, err := asRaster(c, "image.crop")
	if err != nil {
		return nil, err
	}
	b := ras.Bounds()
	rect := image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height).Add(b.Min)
	if !rect.In(b) {
		return nil, invalid("crop", "crop rect %v exceeds image bounds %v", rect, b)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(dst, dst.Bounds(), ras.Image, rect.Min, draw.Src)
	return withImage(ras, dst), nil
}

// ── Rotate / Flip ─────────────────────────────────────────────────────────────

// RotateStep rotates clockwise by 90, 180 or 270 degrees.
type RotateStep struct {
	Degrees int
}

func (s *RotateStep) Name() string { return "rotate" }

func (s *RotateStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	ras, err := asRaster(c, "image.rotate")
	if err != nil {
		return nil, err
	}
	o, ok := map[int]int{90: 6, 180: 3, 270: 8}[s.Degrees]
	if !ok {
		return nil, invalid("rotate", "unsupported angle %d", s.Degrees)
	}
	return withImage(ras, Orient(ras.Image, o)), nil
}

// FlipStep mirrors the image horizontally, or vertically when Vertical.
type FlipStep struct {
	Vertical bool
}

func (s *FlipStep) Name() string { return "flip" }

func (s *FlipStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	ras, err := asRaster(c, "image.flip")
	if err != nil {
		return nil, err
	}
	o := 2
	if s.Vertical {
		o = 4
	}
	return withImage(ras, Orient(ras.Image, o)), nil
}

// ── Grayscale ─────────────────────────────────────────────────────────────────

// GrayscaleStep converts the image to grayscale.
type GrayscaleStep struct{}

func (s *GrayscaleStep) Name() string { return "grayscale" }

func (s *GrayscaleStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	ras, err := asRaster(c, "image.grayscale")
	if err != nil {
		return nil, err
	}
	src := ras.Image
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	out := withImage(ras, dst)
	out.Meta.HasAlpha = false
	return out, nil
}

package imaging_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Skryldev/fileforge/adapters/imaging"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func row(px ...color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(px), 1))
	for x, c := range px {
		img.SetNRGBA(x, 0, c)
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func newCodec() *imaging.Codec { return imaging.New(config.Default()) }

func TestResize_NearestClampRule(t *testing.T) {
	src := row(red, green, blue)
	tests := []struct {
		w    int
		want []color.NRGBA
	}{
		{2, []color.NRGBA{red, green}},
		{5, []color.NRGBA{red, red, green, green, blue}},
		{1, []color.NRGBA{red}},
	}
	for _, tc := range tests {
		out := imaging.Resize(src, tc.w, 1, config.InterpolationNearest)
		if b := out.Bounds(); b.Dx() != tc.w || b.Dy() != 1 {
			t.Fatalf("w=%d: bounds %v", tc.w, b)
		}
		for x, want := range tc.want {
			if got := color.NRGBAModel.Convert(out.At(x, 0)).(color.NRGBA); got != want {
				t.Errorf("w=%d x=%d: got %v, want %v", tc.w, x, got, want)
			}
		}
	}
}

func TestResize_ExactDimensions(t *testing.T) {
	src := gradient(7, 5)
	for _, interp := range []config.Interpolation{config.InterpolationNearest, config.InterpolationBilinear} {
		for _, size := range [][2]int{{1, 1}, {3, 11}, {14, 10}, {7, 5}} {
			out := imaging.Resize(src, size[0], size[1], interp)
			if b := out.Bounds(); b.Dx() != size[0] || b.Dy() != size[1] {
				t.Errorf("%s %v: got %v", interp, size, b)
			}
		}
	}
}

func TestOrient(t *testing.T) {
	src := row(red, green)

	cw := imaging.Orient(src, 6)
	if b := cw.Bounds(); b.Dx() != 1 || b.Dy() != 2 {
		t.Fatalf("rotate 90 bounds: %v", b)
	}
	if cw.At(0, 0) != red || cw.At(0, 1) != green {
		t.Errorf("rotate 90: got %v,%v", cw.At(0, 0), cw.At(0, 1))
	}

	ccw := imaging.Orient(src, 8)
	if ccw.At(0, 0) != green || ccw.At(0, 1) != red {
		t.Errorf("rotate 270: got %v,%v", ccw.At(0, 0), ccw.At(0, 1))
	}

	mirror := imaging.Orient(src, 2)
	if mirror.At(0, 0) != green || mirror.At(1, 0) != red {
		t.Errorf("mirror: got %v,%v", mirror.At(0, 0), mirror.At(1, 0))
	}

	if imaging.Orient(src, 1) != image.Image(src) {
		t.Error("orientation 1 should be a no-op")
	}
}

func TestRoundTrip_AllWritableFormats(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	ras := &core.Raster{Image: gradient(32, 24)}

	for _, ext := range []string{".jpg", ".png", ".gif", ".bmp", ".tiff"} {
		data, err := c.Encode(ctx, ras, ext, core.EncodeOptions{})
		if err != nil {
			t.Fatalf("%s encode: %v", ext, err)
		}
		can, err := c.Decode(ctx, data, ext)
		if err != nil {
			t.Fatalf("%s decode: %v", ext, err)
		}
		got := can.(*core.Raster)
		if got.Meta.Width != 32 || got.Meta.Height != 24 {
			t.Errorf("%s: got %dx%d, want 32x24", ext, got.Meta.Width, got.Meta.Height)
		}
	}
}

func TestEncode_QualityFollowsLevel(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	ras := &core.Raster{Image: gradient(128, 128)}

	low, err := c.Encode(ctx, ras, ".jpg", core.EncodeOptions{Level: core.LevelLow})
	if err != nil {
		t.Fatal(err)
	}
	high, err := c.Encode(ctx, ras, ".jpg", core.EncodeOptions{Level: core.LevelHigh})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) >= len(low) {
		t.Errorf("high level should be smaller: low=%d high=%d", len(low), len(high))
	}
}

func TestEncode_Errors(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	ras := &core.Raster{Image: gradient(64, 64)}

	_, err := c.Encode(ctx, ras, ".png", core.EncodeOptions{MaxBytes: 10})
	if !errors.Is(err, apperrors.ErrBufferTooSmall) {
		t.Errorf("capacity: got %v, want BufferTooSmall", err)
	}
	_, err = c.Encode(ctx, ras, ".webp", core.EncodeOptions{})
	if !errors.Is(err, apperrors.ErrIllegalConversion) {
		t.Errorf("webp encode: got %v, want IllegalConversion", err)
	}
	_, err = c.Decode(ctx, []byte("definitely not a png"), ".png")
	if !errors.Is(err, apperrors.ErrDecodeFailure) {
		t.Errorf("garbage decode: got %v, want DecodeFailure", err)
	}
}

func TestCompress_FitsLevelDimension(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	ras := &core.Raster{Image: image.NewNRGBA(image.Rect(0, 0, 3000, 1000))}

	out, err := c.Compress(ctx, ras, core.LevelHigh)
	if err != nil {
		t.Fatal(err)
	}
	if b := out.(*core.Raster).Bounds(); b.Dx() != 1280 || b.Dy() != 426 {
		t.Errorf("high: got %v, want 1280x426", b)
	}

	out, err = c.Compress(ctx, ras, core.LevelLow)
	if err != nil {
		t.Fatal(err)
	}
	if out != core.Canonical(ras) {
		t.Error("low level should keep dimensions")
	}
}

func TestSteps(t *testing.T) {
	ctx := context.Background()
	c := newCodec()

	steps, err := c.Steps(map[string]string{
		"grayscale": "true",
		"rotate":    "90",
		"crop":      "0,0,20,10",
		"resize":    "10x0",
	})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	var can core.Canonical = &core.Raster{Image: gradient(40, 30)}
	for _, s := range steps {
		names = append(names, s.Name())
		if can, err = s.Apply(ctx, can); err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
	}
	if got := len(names); got != 4 || names[0] != "crop" || names[3] != "grayscale" {
		t.Errorf("order: got %v", names)
	}
	ras := can.(*core.Raster)
	// crop 20x10, resize 10x5, rotate → 5x10.
	if ras.Meta.Width != 5 || ras.Meta.Height != 10 || ras.Meta.ColorSpace != core.ColorSpaceGray {
		t.Errorf("result: %+v", ras.Meta)
	}

	for _, bad := range []map[string]string{
		{"sharpen": "1"},
		{"rotate": "45"},
		{"resize": "0x0"},
		{"crop": "1,2,3"},
	} {
		if _, err := c.Steps(bad); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("%v: got %v, want invalid parameters", bad, err)
		}
	}

	crop, _ := c.Steps(map[string]string{"crop": "30,0,20,10"})
	if _, err := crop[0].Apply(ctx, &core.Raster{Image: gradient(40, 30)}); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("out-of-bounds crop: got %v", err)
	}
}

func TestDecode_PixelLimit(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	data, err := c.Encode(ctx, &core.Raster{Image: gradient(20, 20)}, ".png", core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	c.MaxPixels = 399
	_, err = c.Decode(ctx, data, ".png")
	if !apperrors.IsKind(err, apperrors.KindDecodeFailure) || !errors.Is(err, apperrors.ErrInputTooLarge) {
		t.Errorf("over limit: got %v", err)
	}

	c.MaxPixels = 400
	if _, err := c.Decode(ctx, data, ".png"); err != nil {
		t.Errorf("at limit: %v", err)
	}
}

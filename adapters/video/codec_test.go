package video_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/Skryldev/fileforge/adapters/video"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

func newClip(t *testing.T, n, w, h int, fps float64) *core.Clip {
	t.Helper()
	clip := &core.Clip{Width: w, Height: h, FrameRate: fps}
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		shade := uint8(i * 255 / max(1, n-1))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{R: shade, G: uint8(x * 8), B: 64, A: 255})
			}
		}
		clip.Frames = append(clip.Frames, img)
	}
	return clip
}

func newCodec() *video.Codec { return video.New(config.Default()) }

func TestAVI_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	in := newClip(t, 6, 32, 16, 12.5)

	data, err := c.Encode(ctx, in, ".avi", core.EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		t.Fatalf("not a RIFF AVI: %q", data[:12])
	}

	can, err := c.Decode(ctx, data, ".avi")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := can.(*core.Clip)
	if len(got.Frames) != 6 || got.Width != 32 || got.Height != 16 || got.FrameRate != 12.5 {
		t.Errorf("clip: %d frames %dx%d @ %v fps", len(got.Frames), got.Width, got.Height, got.FrameRate)
	}
}

func TestMJPEG_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newCodec()

	data, err := c.Encode(ctx, newClip(t, 4, 24, 24, 10), ".mjpeg", core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	can, err := c.Decode(ctx, data, ".mjpeg")
	if err != nil {
		t.Fatal(err)
	}
	got := can.(*core.Clip)
	if len(got.Frames) != 4 || got.FrameRate != 25 {
		t.Errorf("clip: %d frames @ %v fps, want 4 @ 25", len(got.Frames), got.FrameRate)
	}
}

func TestGIF_Export(t *testing.T) {
	data, err := newCodec().Encode(context.Background(), newClip(t, 3, 8, 8, 4), ".gif", core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Image) != 3 || anim.Delay[0] != 25 {
		t.Errorf("gif: %d frames delay %d, want 3 frames delay 25", len(anim.Image), anim.Delay[0])
	}
}

func TestDecode_Errors(t *testing.T) {
	ctx := context.Background()
	c := newCodec()

	good, _ := c.Encode(ctx, newClip(t, 2, 8, 8, 5), ".avi", core.EncodeOptions{})
	for name, data := range map[string][]byte{
		"garbage":   []byte("RIFF....WAVEfmt "),
		"truncated": good[:len(good)/2],
	} {
		if _, err := c.Decode(ctx, data, ".avi"); !errors.Is(err, apperrors.ErrDecodeFailure) {
			t.Errorf("%s: got %v, want DecodeFailure", name, err)
		}
	}
	if _, err := c.Decode(ctx, []byte{1, 2, 3}, ".mjpeg"); !errors.Is(err, apperrors.ErrDecodeFailure) {
		t.Errorf("mjpeg garbage: got %v", err)
	}
	if _, err := c.Encode(ctx, newClip(t, 1, 8, 8, 5), ".mp4", core.EncodeOptions{}); !errors.Is(err, apperrors.ErrIllegalConversion) {
		t.Errorf("mp4: got %v", err)
	}
}

func TestCompress_High(t *testing.T) {
	out, err := newCodec().Compress(context.Background(), newClip(t, 10, 1280, 720, 24), core.LevelHigh)
	if err != nil {
		t.Fatal(err)
	}
	clip := out.(*core.Clip)
	if len(clip.Frames) != 5 || clip.FrameRate != 12 {
		t.Errorf("decimation: %d frames @ %v", len(clip.Frames), clip.FrameRate)
	}
	if clip.Width != 640 || clip.Height != 360 {
		t.Errorf("size: %dx%d, want 640x360", clip.Width, clip.Height)
	}
	if b := clip.Frames[0].Bounds(); b.Dx() != 640 || b.Dy() != 360 {
		t.Errorf("frame bounds %v", b)
	}
}

func TestSteps(t *testing.T) {
	ctx := context.Background()
	c := newCodec()
	steps, err := c.Steps(map[string]string{"resize": "8x0", "fps": "5", "trim": "1:2"})
	if err != nil {
		t.Fatal(err)
	}
	if steps[0].Name() != "trim" || steps[1].Name() != "fps" || steps[2].Name() != "resize" {
		t.Fatalf("order: %s %s %s", steps[0].Name(), steps[1].Name(), steps[2].Name())
	}

	var can core.Canonical = newClip(t, 40, 16, 8, 10)
	for _, s := range steps {
		if can, err = s.Apply(ctx, can); err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
	}
	clip := can.(*core.Clip)
	// 4s @ 10fps; trim 1s..3s = 20 frames; 5 fps = 10 frames; 8x4.
	if len(clip.Frames) != 10 || clip.FrameRate != 5 || clip.Width != 8 || clip.Height != 4 {
		t.Errorf("result: %d frames @ %v, %dx%d", len(clip.Frames), clip.FrameRate, clip.Width, clip.Height)
	}

	trim, _ := c.Steps(map[string]string{"trim": "100:1"})
	if _, err := trim[0].Apply(ctx, newClip(t, 5, 8, 8, 10)); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("trim past end: got %v", err)
	}
	if _, err := c.Steps(map[string]string{"speed": "2"}); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("unknown key: got %v", err)
	}
}

func TestSteps_RejectOutOfRangeParams(t *testing.T) {
	c := newCodec()
	for _, params := range []map[string]string{
		{"trim": "NaN:1"},
		{"trim": "0:inf"},
		{"fps": "1e-300"},
		{"fps": "Inf"},
		{"fps": "NaN"},
		{"fps": "1000"},
	} {
		if _, err := c.Steps(params); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("%v: got %v, want invalid parameters", params, err)
		}
	}
}

func TestSteps_HugeSpansStayInBounds(t *testing.T) {
	ctx := context.Background()
	clip := newClip(t, 10, 4, 4, 10)

	if _, err := (&video.TrimStep{Start: 1e300, Duration: -1}).Apply(ctx, clip); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("huge start: got %v", err)
	}
	can, err := (&video.TrimStep{Start: 0.5, Duration: 1e300}).Apply(ctx, clip)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(can.(*core.Clip).Frames); n != 5 {
		t.Errorf("huge duration: got %d frames, want 5", n)
	}

	can, err = (&video.FPSStep{FPS: 1e-300}).Apply(ctx, clip)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(can.(*core.Clip).Frames); n != 1 {
		t.Errorf("tiny fps: got %d frames, want 1", n)
	}
	if _, err := newCodec().Encode(ctx, can, ".avi", core.EncodeOptions{}); err != nil {
		t.Errorf("encode at tiny fps: %v", err)
	}
}

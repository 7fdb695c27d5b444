// Package video is the video codec.  A clip is a constant-rate sequence of
// independent frames; containers are MJPEG AVI and raw MJPEG, with animated
// GIF as an export target.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"math"

	"github.com/Skryldev/fileforge/adapters/imaging"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Codec implements core.Codec for the video category.
type Codec struct {
	Interpolation  config.Interpolation
	DefaultQuality int
	MaxPixels      int64 // per frame; 0 = no limit
}

// New returns a video codec configured from cfg.
func New(cfg config.Config) *Codec {
	q := cfg.DefaultQuality
	if q <= 0 {
		q = 85
	}
	return &Codec{Interpolation: cfg.Interpolation, DefaultQuality: q, MaxPixels: cfg.MaxImagePixels}
}

func (c *Codec) Category() core.Category { return core.CategoryVideo }

// ── Decode ────────────────────────────────────────────────────────────────────

func (c *Codec) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "video.decode", err)
	}
	op := "video" + ext + ".decode"
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, apperrors.ErrEmptyInput)
	}

	var (
		raw [][]byte
		fps = defaultFPS
	)
	switch ext {
	case ".avi":
		s, err := demuxAVI(data)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
		}
		raw, fps = s.frames, s.fps
	case ".mjpeg":
		frames, err := splitMJPEG(data)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, err)
		}
		raw = frames
	default:
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, "video.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext))
	}
	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.KindDecodeFailure, op, fmt.Errorf("no video frames"))
	}

	clip := &core.Clip{FrameRate: fps, Frames: make([]image.Image, 0, len(raw))}
	for i, f := range raw {
		if err := imaging.CheckPixels(f, ".jpg", c.MaxPixels); err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, fmt.Errorf("frame %d: %w", i, err))
		}
		img, err := jpeg.Decode(bytes.NewReader(f))
		if err != nil {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op, fmt.Errorf("frame %d: %w", i, err))
		}
		b := img.Bounds()
		if i == 0 {
			clip.Width, clip.Height = b.Dx(), b.Dy()
		} else if b.Dx() != clip.Width || b.Dy() != clip.Height {
			return nil, apperrors.New(apperrors.KindDecodeFailure, op,
				fmt.Errorf("frame %d is %dx%d, stream is %dx%d", i, b.Dx(), b.Dy(), clip.Width, clip.Height))
		}
		clip.Frames = append(clip.Frames, img)
	}
	return clip, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

func (c *Codec) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "video.encode", err)
	}
	clip, err := asClip(can, "video.encode")
	if err != nil {
		return nil, err
	}
	op := "video" + ext + ".encode"
	if len(clip.Frames) == 0 {
		return nil, apperrors.New(apperrors.KindEncodeFailure, op, fmt.Errorf("clip has no frames"))
	}
	fps := clampFPS(clip.FrameRate)

	var out []byte
	switch ext {
	case ".avi", ".mjpeg":
		frames := make([][]byte, len(clip.Frames))
		q := c.quality(opts)
		for i, f := range clip.Frames {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, f, &jpeg.Options{Quality: q}); err != nil {
				return nil, apperrors.New(apperrors.KindEncodeFailure, op, fmt.Errorf("frame %d: %w", i, err))
			}
			frames[i] = buf.Bytes()
		}
		if ext == ".avi" {
			out = muxAVI(frames, clip.Width, clip.Height, fps)
		} else {
			out = bytes.Join(frames, nil)
		}
	case ".gif":
		delay := max(1, int(math.Round(100/fps)))
		anim := &gif.GIF{LoopCount: 0}
		for _, f := range clip.Frames {
			anim.Image = append(anim.Image, imaging.Quantize(f))
			anim.Delay = append(anim.Delay, delay)
		}
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, anim); err != nil {
			return nil, apperrors.New(apperrors.KindEncodeFailure, op, err)
		}
		out = buf.Bytes()
	default:
		return nil, apperrors.New(apperrors.KindIllegalConversion, "video.encode",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, ext))
	}
	if err := core.CheckCapacity(op, len(out), opts.MaxBytes); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Codec) quality(opts core.EncodeOptions) int {
	switch {
	case opts.Quality > 0:
		return min(opts.Quality, 100)
	case opts.Level != "":
		return core.ProfileFor(opts.Level).VideoQuality
	case c.DefaultQuality > 0:
		return c.DefaultQuality
	}
	return jpeg.DefaultQuality
}

// ── Compress ──────────────────────────────────────────────────────────────────

// Compress decimates frames by the level's step and downscales every frame
// to its maximum dimension.  Frame quality is applied by Encode.
func (c *Codec) Compress(ctx context.Context, can core.Canonical, level core.Level) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "video.compress", err)
	}
	clip, err := asClip(can, "video.compress")
	if err != nil {
		return nil, err
	}
	prof := core.ProfileFor(level)
	out := Decimate(clip, prof.VideoFrameStep)
	w, h := utils.FitWithin(out.Width, out.Height, prof.VideoMaxDimension)
	return ResizeClip(out, w, h, c.Interpolation), nil
}

// Decimate keeps every step-th frame and divides the frame rate by step.
func Decimate(clip *core.Clip, step int) *core.Clip {
	if step <= 1 {
		return clip
	}
	out := *clip
	out.Frames = nil
	for i := 0; i < len(clip.Frames); i += step {
		out.Frames = append(out.Frames, clip.Frames[i])
	}
	out.FrameRate = clip.FrameRate / float64(step)
	return &out
}

// ResizeClip scales every frame to w×h.
func ResizeClip(clip *core.Clip, w, h int, interp config.Interpolation) *core.Clip {
	if w == clip.Width && h == clip.Height {
		return clip
	}
	out := *clip
	out.Width, out.Height = w, h
	out.Frames = make([]image.Image, len(clip.Frames))
	for i, f := range clip.Frames {
		out.Frames[i] = imaging.Resize(f, w, h, interp)
	}
	return &out
}

func asClip(c core.Canonical, op string) (*core.Clip, error) {
	clip, ok := c.(*core.Clip)
	if !ok || clip == nil {
		return nil, apperrors.New(apperrors.KindInternal, op,
			fmt.Errorf("expected video clip, got %T", c))
	}
	return clip, nil
}

// clampFPS keeps a rate inside the range the containers can express.
func clampFPS(fps float64) float64 {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return defaultFPS
	}
	return math.Min(math.Max(fps, utils.MinFPS), utils.MaxFPS)
}

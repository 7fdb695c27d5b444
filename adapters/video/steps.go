package video

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Steps parses video edit parameters.  Edits run in a fixed order: trim,
// fps, resize.
//
//	trim=start:duration (seconds)  fps=N  resize=WxH  interpolation=nearest|bilinear
func (c *Codec) Steps(params map[string]string) ([]core.Step, error) {
	if err := utils.CheckKeys(params, "trim", "fps", "resize", "interpolation"); err != nil {
		return nil, err
	}
	var steps []core.Step

	if v, ok := params["trim"]; ok {
		start, dur, err := utils.ParseSpan("trim", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &TrimStep{Start: start, Duration: dur})
	}
	if v, ok := params["fps"]; ok {
		fps, err := utils.ParseFPS("fps", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &FPSStep{FPS: fps})
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
	return steps, nil
}

// TrimStep keeps the frames inside a time span.
type TrimStep struct {
	Start    float64 // seconds
	Duration float64 // seconds; negative means to the end
}

func (s *TrimStep) Name() string { return "trim" }

func (s *TrimStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	clip, err := asClip(c, "video.trim")
	if err != nil {
		return nil, err
	}
	fs := math.Floor(s.Start * clip.FrameRate)
	if !(fs >= 0 && fs < float64(len(clip.Frames))) {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "video.trim",
			fmt.Errorf("%w: start %.3fs is past the end (%s)", apperrors.ErrInvalidParameters, s.Start, clip.Duration()))
	}
	first := int(fs)
	last := len(clip.Frames)
	if s.Duration >= 0 {
		if n := math.Max(1, math.Round(s.Duration*clip.FrameRate)); n < float64(last-first) {
			last = first + int(n)
		}
	}
	out := *clip
	out.Frames = append([]image.Image(nil), clip.Frames[first:last]...)
	return &out, nil
}

// FPSStep lowers the frame rate by dropping frames.  Rates at or above the
// current one leave the clip unchanged.
type FPSStep struct {
	FPS float64
}

func (s *FPSStep) Name() string { return "fps" }

func (s *FPSStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	clip, err := asClip(c, "video.fps")
	if err != nil {
		return nil, err
	}
	if !(s.FPS > 0) || math.IsInf(s.FPS, 0) {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "video.fps",
			fmt.Errorf("%w: fps %g", apperrors.ErrInvalidParameters, s.FPS))
	}
	if s.FPS >= clip.FrameRate {
		return clip, nil
	}
	ratio := clip.FrameRate / s.FPS
	out := *clip
	out.Frames = nil
	for k := 0; ; k++ {
		at := math.Round(float64(k) * ratio)
		if !(at < float64(len(clip.Frames))) {
			break
		}
		out.Frames = append(out.Frames, clip.Frames[int(at)])
	}
	out.FrameRate = s.FPS
	return &out, nil
}

// ResizeStep scales every frame, preserving aspect ratio when one axis is 0.
type ResizeStep struct {
	Width, Height int
	Interpolation config.Interpolation
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	clip, err := asClip(c, "video.resize")
	if err != nil {
		return nil, err
	}
	w, h := utils.ScaleDimensions(clip.Width, clip.Height, s.Width, s.Height)
	return ResizeClip(clip, w, h, s.Interpolation), nil
}

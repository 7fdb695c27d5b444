package audio

import (
	"context"
	"fmt"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Steps parses audio edit parameters.  Edits run in a fixed order: trim,
// resample, mono, gain.
//
//	trim=start:duration (seconds)  resample=Hz  mono=true  gain=dB
func (c *Codec) Steps(params map[string]string) ([]core.Step, error) {
	if err := utils.CheckKeys(params, "trim", "resample", "mono", "gain"); err != nil {
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
	if v, ok := params["resample"]; ok {
		rate, err := utils.ParseInt("resample", v)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &ResampleStep{Rate: rate})
	}
	if v, ok := params["mono"]; ok {
		on, err := utils.ParseBool("mono", v)
		if err != nil {
			return nil, err
		}
		if on {
			steps = append(steps, &MonoStep{})
		}
	}
	if v, ok := params["gain"]; ok {
		db, err := utils.ParseFloat("gain", v, false)
		if err != nil {
			return nil, err
		}
		steps = append(steps, &GainStep{DB: db})
	}
	return steps, nil
}

// TrimStep keeps a time span of the stream.
type TrimStep struct {
	Start    float64 // seconds
	Duration float64 // seconds; negative means to the end
}

func (s *TrimStep) Name() string { return "trim" }

func (s *TrimStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	pcm, err := asPCM(c, "audio.trim")
	if err != nil {
		return nil, err
	}
	out, ok := Trim(pcm, s.Start, s.Duration)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "audio.trim",
			fmt.Errorf("%w: start %.3fs is past the end (%s)", apperrors.ErrInvalidParameters, s.Start, pcm.Duration()))
	}
	return out, nil
}

// ResampleStep changes the sample rate.
type ResampleStep struct {
	Rate int
}

func (s *ResampleStep) Name() string { return "resample" }

func (s *ResampleStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	pcm, err := asPCM(c, "audio.resample")
	if err != nil {
		return nil, err
	}
	return Resample(pcm, s.Rate), nil
}

// MonoStep mixes down to one channel.
type MonoStep struct{}

func (s *MonoStep) Name() string { return "mono" }

func (s *MonoStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	pcm, err := asPCM(c, "audio.mono")
	if err != nil {
		return nil, err
	}
	return Mono(pcm), nil
}

// GainStep amplifies or attenuates by DB decibels.
type GainStep struct {
	DB float64
}

func (s *GainStep) Name() string { return "gain" }

func (s *GainStep) Apply(_ context.Context, c core.Canonical) (core.Canonical, error) {
	pcm, err := asPCM(c, "audio.gain")
	if err != nil {
		return nil, err
	}
	return Gain(pcm, s.DB), nil
}

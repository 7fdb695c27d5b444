package audio

import (
	"math"

	"github.com/Skryldev/fileforge/core"
)

// Downsample keeps one frame per window of step frames.  Each output sample
// is the rounded mean of its channel's samples in the window; a trailing
// short window averages what remains.  Frames are never split.
func Downsample(p *core.PCM, step int) *core.PCM {
	if step <= 1 {
		return p
	}
	frames, ch := p.Frames(), p.Channels
	outFrames := (frames + step - 1) / step
	out := make([]int, 0, outFrames*ch)
	for f := 0; f < frames; f += step {
		end := min(f+step, frames)
		for c := 0; c < ch; c++ {
			sum := 0
			for i := f; i < end; i++ {
				sum += p.Samples[i*ch+c]
			}
			out = append(out, roundDiv(sum, end-f))
		}
	}
	return &core.PCM{
		SampleRate: int(math.Round(float64(p.SampleRate) / float64(step))),
		Channels:   ch,
		BitDepth:   p.BitDepth,
		Samples:    out,
	}
}

// Resample converts p to rate.  Lowering the rate averages each output
// frame's source window; raising it repeats source frames.
func Resample(p *core.PCM, rate int) *core.PCM {
	if rate <= 0 || rate == p.SampleRate {
		return p
	}
	frames, ch := p.Frames(), p.Channels
	outFrames := int(int64(frames) * int64(rate) / int64(p.SampleRate))
	out := make([]int, 0, outFrames*ch)
	for f := 0; f < outFrames; f++ {
		start := int(int64(f) * int64(p.SampleRate) / int64(rate))
		end := int(int64(f+1) * int64(p.SampleRate) / int64(rate))
		end = min(max(end, start+1), frames)
		for c := 0; c < ch; c++ {
			sum := 0
			for i := start; i < end; i++ {
				sum += p.Samples[i*ch+c]
			}
			out = append(out, roundDiv(sum, end-start))
		}
	}
	return &core.PCM{SampleRate: rate, Channels: ch, BitDepth: p.BitDepth, Samples: out}
}

// Mono mixes all channels into one by rounded averaging.
func Mono(p *core.PCM) *core.PCM {
	if p.Channels <= 1 {
		return p
	}
	frames, ch := p.Frames(), p.Channels
	out := make([]int, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += p.Samples[f*ch+c]
		}
		out[f] = roundDiv(sum, ch)
	}
	return &core.PCM{SampleRate: p.SampleRate, Channels: 1, BitDepth: p.BitDepth, Samples: out}
}

// Trim keeps the frames in [start, start+dur) seconds; a negative dur keeps
// everything from start.  The bool is false when start is past the end.
func Trim(p *core.PCM, start, dur float64) (*core.PCM, bool) {
	frames := p.Frames()
	// Bounds are compared as floats so huge spans cannot overflow int.
	fs := math.Round(start * float64(p.SampleRate))
	if !(fs >= 0 && fs < float64(frames)) {
		return nil, false
	}
	first := int(fs)
	last := frames
	if dur >= 0 {
		if n := math.Round(dur * float64(p.SampleRate)); n < float64(frames-first) {
			last = first + int(n)
		}
	}
	out := make([]int, (last-first)*p.Channels)
	copy(out, p.Samples[first*p.Channels:last*p.Channels])
	return &core.PCM{SampleRate: p.SampleRate, Channels: p.Channels, BitDepth: p.BitDepth, Samples: out}, true
}

// Gain scales every sample by db decibels, saturating at the bit depth.
func Gain(p *core.PCM, db float64) *core.PCM {
	factor := math.Pow(10, db/20)
	out := make([]int, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = clamp(int(math.Round(float64(s)*factor)), p.BitDepth)
	}
	return &core.PCM{SampleRate: p.SampleRate, Channels: p.Channels, BitDepth: p.BitDepth, Samples: out}
}

// Widen returns p rescaled to depth bits.  p is returned as is when it is
// already that deep.
func Widen(p *core.PCM, depth int) *core.PCM {
	if p.BitDepth == depth {
		return p
	}
	return &core.PCM{SampleRate: p.SampleRate, Channels: p.Channels, BitDepth: depth,
		Samples: convertDepth(p.Samples, p.BitDepth, depth)}
}

// convertDepth rescales samples from one signed bit depth to another.
func convertDepth(samples []int, from, to int) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		if to >= from {
			out[i] = s << (to - from)
		} else {
			out[i] = s >> (from - to)
		}
	}
	return out
}

// clamp saturates v to the signed range of depth bits.
func clamp(v, depth int) int {
	if depth <= 0 || depth > 32 {
		depth = 16
	}
	hi := 1<<(depth-1) - 1
	lo := -(1 << (depth - 1))
	return min(max(v, lo), hi)
}

// roundDiv divides with rounding half away from zero.
func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

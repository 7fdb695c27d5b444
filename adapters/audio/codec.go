// Package audio is the audio codec: WAV, MP3, FLAC and Ogg Vorbis decoding
// into interleaved PCM, WAV encoding, and frame-based transforms.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Codec implements core.Codec for the audio category.
type Codec struct{}

// New returns an audio codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Category() core.Category { return core.CategoryAudio }

// ── Decode ────────────────────────────────────────────────────────────────────

func (c *Codec) Decode(ctx context.Context, data []byte, ext string) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "audio.decode", err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "audio.decode", apperrors.ErrEmptyInput)
	}

	var (
		pcm *core.PCM
		err error
	)
	switch ext {
	case ".wav":
		pcm, err = decodeWAV(data)
	case ".mp3":
		pcm, err = decodeMP3(data)
	case ".flac":
		pcm, err = decodeFLAC(data)
	case ".ogg":
		pcm, err = decodeOgg(data)
	default:
		return nil, apperrors.New(apperrors.KindUnsupportedFormat, "audio.decode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "audio"+ext+".decode", err)
	}
	if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "audio"+ext+".decode",
			fmt.Errorf("invalid stream: %d Hz, %d channels", pcm.SampleRate, pcm.Channels))
	}
	// Drop a trailing partial frame.
	pcm.Samples = pcm.Samples[:pcm.Frames()*pcm.Channels]
	return pcm, nil
}

func decodeWAV(data []byte) (*core.PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	if d.WavAudioFormat != 1 && d.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("unsupported WAV encoding %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	pcm := &core.PCM{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Samples:    buf.Data,
	}
	if pcm.BitDepth == 8 {
		// 8-bit WAV is unsigned; widen to signed 16-bit.
		for i, s := range pcm.Samples {
			pcm.Samples[i] = (s - 128) << 8
		}
		pcm.BitDepth = 16
	}
	return pcm, nil
}

func decodeMP3(data []byte) (*core.PCM, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	// go-mp3 always yields 16-bit little-endian stereo.
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return &core.PCM{SampleRate: d.SampleRate(), Channels: 2, BitDepth: 16, Samples: samples}, nil
}

func decodeFLAC(data []byte) (*core.PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	// NSamples comes from the header; a compressed sample is at least one
	// bit, so the input size caps the hint.
	hint := min(info.NSamples*uint64(channels), uint64(len(data))*8)
	pcm := &core.PCM{
		SampleRate: int(info.SampleRate),
		Channels:   channels,
		BitDepth:   int(info.BitsPerSample),
		Samples:    make([]int, 0, int(hint)),
	}
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(frame.Subframes) < channels {
			return nil, fmt.Errorf("flac: frame has %d of %d channels", len(frame.Subframes), channels)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				pcm.Samples = append(pcm.Samples, int(frame.Subframes[ch].Samples[i]))
			}
		}
	}
	if got := uint64(pcm.Frames()); info.NSamples > 0 && got < info.NSamples {
		return nil, fmt.Errorf("flac: stream truncated: %d of %d samples", got, info.NSamples)
	}
	return pcm, nil
}

func decodeOgg(data []byte) (*core.PCM, error) {
	// Length() comes from the last page's granule position and is not
	// trusted for allocation.
	r, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	channels := r.Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("ogg: stream declares %d channels", channels)
	}
	var samples []int
	chunk := make([]float32, 4096*channels)
	for {
		n, err := r.Read(chunk)
		for _, f := range chunk[:n] {
			samples = append(samples, clamp(int(math.Round(float64(f)*32767)), 16))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, io.ErrNoProgress
		}
	}
	return &core.PCM{SampleRate: r.SampleRate(), Channels: channels, BitDepth: 16, Samples: samples}, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

func (c *Codec) Encode(ctx context.Context, can core.Canonical, ext string, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "audio.encode", err)
	}
	pcm, err := asPCM(can, "audio.encode")
	if err != nil {
		return nil, err
	}
	if ext != ".wav" {
		return nil, apperrors.New(apperrors.KindIllegalConversion, "audio.encode",
			fmt.Errorf("%w: cannot write %s", apperrors.ErrIllegalConversion, ext))
	}

	depth := pcm.BitDepth
	samples := pcm.Samples
	switch {
	case depth <= 8:
		samples = convertDepth(samples, depth, 16)
		depth = 16
	case depth%8 != 0:
		samples = convertDepth(samples, depth, depth+8-depth%8)
		depth += 8 - depth%8
	}

	var ws utils.WriteSeekBuffer
	enc := wav.NewEncoder(&ws, pcm.SampleRate, depth, pcm.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: pcm.Channels, SampleRate: pcm.SampleRate},
		Data:           samples,
		SourceBitDepth: depth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, "audio.wav.encode", err)
	}
	if err := enc.Close(); err != nil {
		return nil, apperrors.New(apperrors.KindEncodeFailure, "audio.wav.encode", err)
	}
	if err := core.CheckCapacity("audio.wav.encode", ws.Len(), opts.MaxBytes); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}

// ── Compress ──────────────────────────────────────────────────────────────────

// Compress downsamples to the level's maximum rate by window averaging and
// mixes to mono where the level asks for it.
func (c *Codec) Compress(ctx context.Context, can core.Canonical, level core.Level) (core.Canonical, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindCancelled, "audio.compress", err)
	}
	pcm, err := asPCM(can, "audio.compress")
	if err != nil {
		return nil, err
	}
	prof := core.ProfileFor(level)
	out := pcm
	if prof.AudioMaxRate > 0 && out.SampleRate > prof.AudioMaxRate {
		step := (out.SampleRate + prof.AudioMaxRate - 1) / prof.AudioMaxRate
		out = Downsample(out, step)
	}
	if prof.AudioMono && out.Channels > 1 {
		out = Mono(out)
	}
	return out, nil
}

func asPCM(c core.Canonical, op string) (*core.PCM, error) {
	p, ok := c.(*core.PCM)
	if !ok || p == nil {
		return nil, apperrors.New(apperrors.KindInternal, op,
			fmt.Errorf("expected PCM buffer, got %T", c))
	}
	return p, nil
}

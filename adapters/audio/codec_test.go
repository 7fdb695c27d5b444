package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/Skryldev/fileforge/adapters/audio"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// sine builds a 16-bit PCM buffer of a 440 Hz tone.
func sine(t *testing.T, rate, channels int, seconds float64) *core.PCM {
	t.Helper()
	frames := int(float64(rate) * seconds)
	samples := make([]int, 0, frames*channels)
	for f := 0; f < frames; f++ {
		v := int(math.Round(12000 * math.Sin(2*math.Pi*440*float64(f)/float64(rate))))
		for c := 0; c < channels; c++ {
			samples = append(samples, v)
		}
	}
	return &core.PCM{SampleRate: rate, Channels: channels, BitDepth: 16, Samples: samples}
}

func TestDownsample_WindowAverage(t *testing.T) {
	in := &core.PCM{SampleRate: 44100, Channels: 2, BitDepth: 16,
		Samples: []int{1, 10, 2, 21, -1, -2, -2, -2, 5, 31}}

	out := audio.Downsample(in, 2)
	want := []int{2, 16, -2, -2, 5, 31}
	if !slices.Equal(out.Samples, want) {
		t.Errorf("samples: got %v, want %v", out.Samples, want)
	}
	if out.SampleRate != 22050 || out.Channels != 2 {
		t.Errorf("format: got %d Hz %d ch", out.SampleRate, out.Channels)
	}
	if len(out.Samples)%out.Channels != 0 {
		t.Error("frame split")
	}
}

func TestWAV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := audio.New()
	in := sine(t, 8000, 2, 0.5)

	data, err := c.Encode(ctx, in, ".wav", core.EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	can, err := c.Decode(ctx, data, ".wav")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := can.(*core.PCM)
	if got.SampleRate != 8000 || got.Channels != 2 || got.BitDepth != 16 {
		t.Errorf("format: %d Hz %d ch %d bit", got.SampleRate, got.Channels, got.BitDepth)
	}
	if !slices.Equal(got.Samples, in.Samples) {
		t.Errorf("samples differ after round trip (%d vs %d)", len(got.Samples), len(in.Samples))
	}
}

func TestCompress_Levels(t *testing.T) {
	ctx := context.Background()
	c := audio.New()
	tests := []struct {
		rate     int
		level    core.Level
		wantRate int
		wantCh   int
	}{
		{44100, core.LevelLow, 44100, 2},
		{44100, core.LevelMedium, 22050, 2},
		{44100, core.LevelHigh, 11025, 1},
		{48000, core.LevelMedium, 16000, 2},
		{8000, core.LevelHigh, 8000, 1},
	}
	for _, tc := range tests {
		out, err := c.Compress(ctx, sine(t, tc.rate, 2, 0.1), tc.level)
		if err != nil {
			t.Fatal(err)
		}
		p := out.(*core.PCM)
		if p.SampleRate != tc.wantRate || p.Channels != tc.wantCh {
			t.Errorf("%d Hz @ %s: got %d Hz %d ch, want %d Hz %d ch",
				tc.rate, tc.level, p.SampleRate, p.Channels, tc.wantRate, tc.wantCh)
		}
	}
}

func TestCompress_ShrinksEncodedOutput(t *testing.T) {
	ctx := context.Background()
	c := audio.New()
	in := sine(t, 44100, 2, 0.5)

	orig, _ := c.Encode(ctx, in, ".wav", core.EncodeOptions{})
	small, _ := c.Compress(ctx, in, core.LevelHigh)
	out, err := c.Encode(ctx, small, ".wav", core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if ratio := core.CompressionRatio(int64(len(orig)), int64(len(out))); ratio < 80 {
		t.Errorf("ratio: got %.1f%%, want >= 80%%", ratio)
	}
}

func TestCodec_Errors(t *testing.T) {
	ctx := context.Background()
	c := audio.New()

	if _, err := c.Encode(ctx, sine(t, 8000, 1, 0.1), ".mp3", core.EncodeOptions{}); !errors.Is(err, apperrors.ErrIllegalConversion) {
		t.Errorf("mp3 encode: got %v", err)
	}
	for _, ext := range []string{".wav", ".mp3", ".flac", ".ogg"} {
		if _, err := c.Decode(ctx, []byte("this is not audio at all"), ext); !errors.Is(err, apperrors.ErrDecodeFailure) {
			t.Errorf("%s garbage: got %v, want DecodeFailure", ext, err)
		}
	}
	if _, err := c.Encode(ctx, sine(t, 8000, 1, 0.5), ".wav", core.EncodeOptions{MaxBytes: 100}); !errors.Is(err, apperrors.ErrBufferTooSmall) {
		t.Errorf("capacity: got %v", err)
	}
}

func TestTrimGainResample(t *testing.T) {
	in := &core.PCM{SampleRate: 1000, Channels: 1, BitDepth: 16, Samples: make([]int, 1000)}
	for i := range in.Samples {
		in.Samples[i] = i
	}

	trimmed, ok := audio.Trim(in, 0.25, 0.5)
	if !ok || len(trimmed.Samples) != 500 || trimmed.Samples[0] != 250 {
		t.Errorf("trim: ok=%v len=%d first=%v", ok, len(trimmed.Samples), trimmed.Samples[:1])
	}
	if _, ok := audio.Trim(in, 2, -1); ok {
		t.Error("trim past end accepted")
	}

	loud := audio.Gain(&core.PCM{SampleRate: 1, Channels: 1, BitDepth: 16, Samples: []int{30000, -30000, 100}}, 6)
	if loud.Samples[0] != 32767 || loud.Samples[1] != -32768 || loud.Samples[2] != 200 {
		t.Errorf("gain: got %v", loud.Samples)
	}

	if down := audio.Resample(in, 500); down.Frames() != 500 || down.Samples[0] != 1 {
		t.Errorf("resample down: frames=%d first=%d", down.Frames(), down.Samples[0])
	}
	if up := audio.Resample(in, 2000); up.Frames() != 2000 || up.Samples[1] != 0 || up.Samples[2] != 1 {
		t.Errorf("resample up: frames=%d head=%v", up.Frames(), up.Samples[:3])
	}
}

func TestSteps(t *testing.T) {
	c := audio.New()
	steps, err := c.Steps(map[string]string{"gain": "-3", "trim": "0:1", "mono": "yes", "resample": "8000"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range steps {
		names = append(names, s.Name())
	}
	if !slices.Equal(names, []string{"trim", "resample", "mono", "gain"}) {
		t.Errorf("order: got %v", names)
	}

	ctx := context.Background()
	var can core.Canonical = sine(t, 16000, 2, 2)
	for _, s := range steps {
		if can, err = s.Apply(ctx, can); err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
	}
	p := can.(*core.PCM)
	if p.SampleRate != 8000 || p.Channels != 1 || p.Frames() != 8000 {
		t.Errorf("result: %d Hz %d ch %d frames", p.SampleRate, p.Channels, p.Frames())
	}

	for _, bad := range []map[string]string{{"echo": "1"}, {"trim": "x"}, {"resample": "-1"}, {"gain": "loud"}} {
		if _, err := c.Steps(bad); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("%v: got %v", bad, err)
		}
	}
}

func TestTrim_HugeAndNonFiniteSpans(t *testing.T) {
	in := &core.PCM{SampleRate: 1000, Channels: 2, BitDepth: 16, Samples: make([]int, 2000)}

	if _, ok := audio.Trim(in, 1e300, -1); ok {
		t.Error("huge start accepted")
	}
	if _, ok := audio.Trim(in, math.NaN(), 1); ok {
		t.Error("NaN start accepted")
	}
	if out, ok := audio.Trim(in, 0.5, 1e300); !ok || out.Frames() != 500 {
		t.Errorf("huge duration: ok=%v", ok)
	}
}

func TestSteps_RejectNonFiniteParams(t *testing.T) {
	c := audio.New()
	for _, params := range []map[string]string{
		{"trim": "NaN:1"},
		{"trim": "inf"},
		{"trim": "0:inf"},
		{"trim": "-Inf:2"},
		{"gain": "NaN"},
	} {
		if _, err := c.Steps(params); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("%v: got %v, want invalid parameters", params, err)
		}
	}
}

// flacHeader builds a STREAMINFO-only FLAC stream with no audio frames.
func flacHeader(channels int, samples uint64) []byte {
	b := []byte("fLaC")
	b = append(b, 0x80, 0, 0, 34)         // last block, STREAMINFO, 34 bytes
	b = append(b, 0x10, 0x00, 0x10, 0x00) // block size 4096..4096
	b = append(b, 0, 0, 0, 0, 0, 0)       // frame sizes unknown
	packed := uint64(44100)<<44 | uint64(channels-1)<<41 | uint64(15)<<36 | samples
	b = binary.BigEndian.AppendUint64(b, packed)
	return append(b, make([]byte, 16)...) // MD5
}

func TestDecodeFLAC_HeaderCannotForceAllocation(t *testing.T) {
	data := flacHeader(8, 1<<36-1)
	if len(data) != 42 {
		t.Fatalf("header length %d", len(data))
	}
	_, err := audio.New().Decode(context.Background(), data, ".flac")
	if !apperrors.IsKind(err, apperrors.KindDecodeFailure) {
		t.Errorf("got %v, want decode failure", err)
	}
}

// Package merge combines several decoded inputs into one canonical value.
//
// Inputs are combined in the order given.  Every rule that rejects an input
// reports its index so that callers can name the offending file.
package merge

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/samber/lo"
	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/fileforge/adapters/audio"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/utils"
)

// Input is one file taking part in a merge.
type Input struct {
	Name string // basename; names archive entries and manifest parts
	Size int64
	// Canonical is the decoded form.  Archive targets ignore it and use Raw.
	Canonical core.Canonical
	Raw       []byte
}

// Options tunes merges that need more than the inputs themselves.
type Options struct {
	// FPS is the frame rate of a slideshow built from images.
	FPS float64
}

// Combine merges inputs into a canonical value of the target category and
// returns the manifest describing where each input landed.
func Combine(ctx context.Context, inputs []Input, target core.Category, opts Options) (core.Canonical, []core.Part, error) {
	if len(inputs) == 0 {
		return nil, nil, apperrors.New(apperrors.KindInvalidParameters, "merge", apperrors.ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindCancelled, "merge", err)
	}

	switch target {
	case core.CategoryArchive:
		return bundle(inputs)
	case core.CategoryDocument:
		return documents(inputs)
	case core.CategoryAudio:
		return pcm(inputs)
	case core.CategoryImage:
		return stack(inputs)
	case core.CategoryVideo:
		if _, ok := inputs[0].Canonical.(*core.Raster); ok {
			return slideshow(inputs, opts.FPS)
		}
		return clips(inputs)
	}
	return nil, nil, apperrors.New(apperrors.KindIllegalConversion, "merge",
		fmt.Errorf("%w: cannot merge into %s", apperrors.ErrIllegalConversion, target))
}

// ── Archive ───────────────────────────────────────────────────────────────────

func bundle(inputs []Input) (core.Canonical, []core.Part, error) {
	taken := make(map[string]bool, len(inputs))
	out := &core.Bundle{Entries: make([]core.Entry, 0, len(inputs))}
	parts := make([]core.Part, 0, len(inputs))
	for i, in := range inputs {
		name := utils.UniqueName(in.Name, func(n string) bool { return taken[n] })
		taken[name] = true
		out.Entries = append(out.Entries, core.Entry{Name: name, Data: in.Raw})
		parts = append(parts, core.Part{Input: i, Name: name, Size: in.Size, Unit: "entries", Start: i, Length: 1})
	}
	return out, parts, nil
}

// ── Document ──────────────────────────────────────────────────────────────────

func documents(inputs []Input) (core.Canonical, []core.Part, error) {
	docs, err := collect[*core.Document](inputs)
	if err != nil {
		return nil, nil, err
	}
	out := &core.Document{}
	if first, ok := lo.Find(docs, func(d *core.Document) bool { return d.Title != "" }); ok {
		out.Title = first.Title
	}
	parts := make([]core.Part, len(docs))
	for i, d := range docs {
		parts[i] = part(inputs[i], i, "pages", len(out.Pages), len(d.Pages))
		out.Pages = append(out.Pages, d.Pages...)
	}
	return out, parts, nil
}

// ── Audio ─────────────────────────────────────────────────────────────────────

func pcm(inputs []Input) (core.Canonical, []core.Part, error) {
	streams, err := collect[*core.PCM](inputs)
	if err != nil {
		return nil, nil, err
	}
	first := streams[0]
	for i, p := range streams[1:] {
		if p.SampleRate != first.SampleRate || p.Channels != first.Channels {
			return nil, nil, mismatch(i+1, "%d Hz/%d ch, expected %d Hz/%d ch",
				p.SampleRate, p.Channels, first.SampleRate, first.Channels)
		}
	}
	depth := lo.Max(lo.Map(streams, func(p *core.PCM, _ int) int { return p.BitDepth }))

	out := &core.PCM{SampleRate: first.SampleRate, Channels: first.Channels, BitDepth: depth}
	parts := make([]core.Part, len(streams))
	for i, p := range streams {
		parts[i] = part(inputs[i], i, "frames", out.Frames(), p.Frames())
		out.Samples = append(out.Samples, audio.Widen(p, depth).Samples[:p.Frames()*p.Channels]...)
	}
	return out, parts, nil
}

// ── Image ─────────────────────────────────────────────────────────────────────

// stack places images top to bottom, left-aligned on a transparent canvas
// as wide as the widest input.
func stack(inputs []Input) (core.Canonical, []core.Part, error) {
	rasters, err := collect[*core.Raster](inputs)
	if err != nil {
		return nil, nil, err
	}
	width := lo.Max(lo.Map(rasters, func(r *core.Raster, _ int) int { return r.Bounds().Dx() }))
	height := lo.SumBy(rasters, func(r *core.Raster) int { return r.Bounds().Dy() })

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	parts := make([]core.Part, len(rasters))
	y := 0
	for i, r := range rasters {
		b := r.Bounds()
		xdraw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), r.Image, b.Min, xdraw.Src)
		parts[i] = part(inputs[i], i, "rows", y, b.Dy())
		y += b.Dy()
	}
	return &core.Raster{
		Image: canvas,
		Meta: core.ImageMeta{
			Width:      width,
			Height:     height,
			ColorSpace: core.ColorSpaceRGBA,
			HasAlpha:   true,
		},
	}, parts, nil
}

// ── Video ─────────────────────────────────────────────────────────────────────

func clips(inputs []Input) (core.Canonical, []core.Part, error) {
	cs, err := collect[*core.Clip](inputs)
	if err != nil {
		return nil, nil, err
	}
	first := cs[0]
	for i, c := range cs[1:] {
		if c.Width != first.Width || c.Height != first.Height {
			return nil, nil, mismatch(i+1, "%dx%d, expected %dx%d", c.Width, c.Height, first.Width, first.Height)
		}
		if math.Abs(c.FrameRate-first.FrameRate) > 1e-6 {
			return nil, nil, mismatch(i+1, "%g fps, expected %g fps", c.FrameRate, first.FrameRate)
		}
	}
	out := &core.Clip{Width: first.Width, Height: first.Height, FrameRate: first.FrameRate}
	parts := make([]core.Part, len(cs))
	for i, c := range cs {
		parts[i] = part(inputs[i], i, "frames", len(out.Frames), len(c.Frames))
		out.Frames = append(out.Frames, c.Frames...)
	}
	return out, parts, nil
}

// slideshow turns same-sized images into one frame each.
func slideshow(inputs []Input, fps float64) (core.Canonical, []core.Part, error) {
	if !(fps >= utils.MinFPS && fps <= utils.MaxFPS) {
		return nil, nil, apperrors.New(apperrors.KindInvalidParameters, "merge.slideshow",
			fmt.Errorf("%w: fps %g outside %g-%d", apperrors.ErrInvalidParameters, fps, utils.MinFPS, utils.MaxFPS))
	}
	rasters, err := collect[*core.Raster](inputs)
	if err != nil {
		return nil, nil, err
	}
	b0 := rasters[0].Bounds()
	out := &core.Clip{Width: b0.Dx(), Height: b0.Dy(), FrameRate: fps}
	parts := make([]core.Part, len(rasters))
	for i, r := range rasters {
		if b := r.Bounds(); b.Dx() != b0.Dx() || b.Dy() != b0.Dy() {
			return nil, nil, mismatch(i, "%dx%d, expected %dx%d", b.Dx(), b.Dy(), b0.Dx(), b0.Dy())
		}
		parts[i] = part(inputs[i], i, "frames", i, 1)
		out.Frames = append(out.Frames, r.Image)
	}
	return out, parts, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// collect asserts that every input decoded to T.
func collect[T core.Canonical](inputs []Input) ([]T, error) {
	out := make([]T, len(inputs))
	for i, in := range inputs {
		v, ok := in.Canonical.(T)
		if !ok {
			var want T
			return nil, mismatch(i, "got %s, expected %s", category(in.Canonical), want.Category())
		}
		out[i] = v
	}
	return out, nil
}

func category(c core.Canonical) string {
	if c == nil {
		return "nothing"
	}
	return string(c.Category())
}

func part(in Input, idx int, unit string, start, length int) core.Part {
	return core.Part{Input: idx, Name: in.Name, Size: in.Size, Unit: unit, Start: start, Length: length}
}

func mismatch(idx int, format string, args ...any) error {
	return apperrors.WithInput(apperrors.New(apperrors.KindIncompatibleMergeInputs, "merge",
		fmt.Errorf("%w: %s", apperrors.ErrIncompatibleMergeInputs, fmt.Sprintf(format, args...))), idx)
}

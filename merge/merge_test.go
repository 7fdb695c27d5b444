package merge_test

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/merge"
)

func solid(w, h int, c color.NRGBA) *core.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &core.Raster{Image: img, Meta: core.ImageMeta{Width: w, Height: h}}
}

func in(name string, c core.Canonical) merge.Input {
	return merge.Input{Name: name, Size: 10, Canonical: c}
}

func TestCombine_ArchiveRenamesCollisions(t *testing.T) {
	inputs := []merge.Input{
		{Name: "a.txt", Raw: []byte("1")},
		{Name: "a.txt", Raw: []byte("2")},
		{Name: "b.png", Raw: []byte("3")},
		{Name: "a.txt", Raw: []byte("4")},
	}
	can, parts, err := merge.Combine(context.Background(), inputs, core.CategoryArchive, merge.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "a (1).txt", "b.png", "a (2).txt"}
	b := can.(*core.Bundle)
	for i, name := range want {
		if b.Entries[i].Name != name || parts[i].Name != name {
			t.Errorf("entry %d: got %q / part %q, want %q", i, b.Entries[i].Name, parts[i].Name, name)
		}
	}
	if string(b.Entries[3].Data) != "4" {
		t.Errorf("entry data overwritten: %q", b.Entries[3].Data)
	}
}

func TestCombine_DocumentsKeepOrder(t *testing.T) {
	inputs := []merge.Input{
		in("a.txt", &core.Document{Pages: []core.Page{{Text: "a1"}, {Text: "a2"}}}),
		in("b.md", &core.Document{Title: "B", Pages: []core.Page{{Text: "b1"}}}),
		in("c.md", &core.Document{Title: "C", Pages: []core.Page{{Text: "c1"}}}),
	}
	can, parts, err := merge.Combine(context.Background(), inputs, core.CategoryDocument, merge.Options{})
	if err != nil {
		t.Fatal(err)
	}
	doc := can.(*core.Document)
	if doc.Title != "B" || len(doc.Pages) != 4 || doc.Pages[2].Text != "b1" {
		t.Errorf("got title %q pages %v", doc.Title, doc.Pages)
	}
	if parts[2].Start != 3 || parts[2].Length != 1 || parts[0].Length != 2 || parts[0].Unit != "pages" {
		t.Errorf("parts: %+v", parts)
	}
}

func TestCombine_AudioWidensDepth(t *testing.T) {
	inputs := []merge.Input{
		in("a.wav", &core.PCM{SampleRate: 8000, Channels: 1, BitDepth: 16, Samples: []int{1, -1}}),
		in("b.wav", &core.PCM{SampleRate: 8000, Channels: 1, BitDepth: 24, Samples: []int{256}}),
	}
	can, parts, err := merge.Combine(context.Background(), inputs, core.CategoryAudio, merge.Options{})
	if err != nil {
		t.Fatal(err)
	}
	p := can.(*core.PCM)
	if p.BitDepth != 24 || len(p.Samples) != 3 || p.Samples[0] != 256 || p.Samples[1] != -256 || p.Samples[2] != 256 {
		t.Errorf("got depth %d samples %v", p.BitDepth, p.Samples)
	}
	if parts[1].Start != 2 || parts[1].Unit != "frames" {
		t.Errorf("parts: %+v", parts)
	}

	inputs[1].Canonical = &core.PCM{SampleRate: 44100, Channels: 1, BitDepth: 16}
	_, _, err = merge.Combine(context.Background(), inputs, core.CategoryAudio, merge.Options{})
	if !apperrors.IsKind(err, apperrors.KindIncompatibleMergeInputs) || apperrors.InputOf(err) != 1 {
		t.Errorf("rate mismatch: got %v", err)
	}
}

func TestCombine_ImageStack(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	inputs := []merge.Input{in("r.png", solid(4, 2, red)), in("b.png", solid(2, 3, blue))}

	can, parts, err := merge.Combine(context.Background(), inputs, core.CategoryImage, merge.Options{})
	if err != nil {
		t.Fatal(err)
	}
	img := can.(*core.Raster).Image
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 5 {
		t.Fatalf("canvas %v, want 4x5", b)
	}
	if got := color.NRGBAModel.Convert(img.At(1, 3)).(color.NRGBA); got != blue {
		t.Errorf("stacked pixel: %v", got)
	}
	if _, _, _, a := img.At(3, 4).RGBA(); a != 0 {
		t.Errorf("padding should be transparent, alpha %d", a)
	}
	if parts[1].Unit != "rows" || parts[1].Start != 2 || parts[1].Length != 3 {
		t.Errorf("parts: %+v", parts)
	}
}

func TestCombine_Video(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	clip := func(n int, fps float64) *core.Clip {
		c := &core.Clip{Width: 8, Height: 8, FrameRate: fps}
		for i := 0; i < n; i++ {
			c.Frames = append(c.Frames, frame)
		}
		return c
	}
	inputs := []merge.Input{in("a.avi", clip(3, 10)), in("b.avi", clip(2, 10))}
	can, parts, err := merge.Combine(context.Background(), inputs, core.CategoryVideo, merge.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(can.(*core.Clip).Frames) != 5 || parts[1].Start != 3 {
		t.Errorf("frames %d parts %+v", len(can.(*core.Clip).Frames), parts)
	}

	inputs[1].Canonical = clip(2, 25)
	if _, _, err := merge.Combine(context.Background(), inputs, core.CategoryVideo, merge.Options{}); apperrors.InputOf(err) != 1 {
		t.Errorf("fps mismatch: got %v", err)
	}
}

func TestCombine_Slideshow(t *testing.T) {
	white := color.NRGBA{255, 255, 255, 255}
	inputs := []merge.Input{in("1.png", solid(6, 4, white)), in("2.png", solid(6, 4, white))}
	can, _, err := merge.Combine(context.Background(), inputs, core.CategoryVideo, merge.Options{FPS: 2})
	if err != nil {
		t.Fatal(err)
	}
	c := can.(*core.Clip)
	if c.FrameRate != 2 || len(c.Frames) != 2 || c.Width != 6 {
		t.Errorf("got %+v", c)
	}

	inputs = append(inputs, in("3.png", solid(5, 4, white)))
	_, _, err = merge.Combine(context.Background(), inputs, core.CategoryVideo, merge.Options{FPS: 2})
	if !apperrors.IsKind(err, apperrors.KindIncompatibleMergeInputs) || apperrors.InputOf(err) != 2 {
		t.Errorf("size mismatch: got %v", err)
	}
}

func TestCombine_WrongCategory(t *testing.T) {
	inputs := []merge.Input{
		in("a.txt", &core.Document{}),
		in("b.png", solid(1, 1, color.NRGBA{})),
	}
	_, _, err := merge.Combine(context.Background(), inputs, core.CategoryDocument, merge.Options{})
	if !apperrors.IsKind(err, apperrors.KindIncompatibleMergeInputs) || apperrors.InputOf(err) != 1 {
		t.Errorf("got %v", err)
	}
	if _, _, err := merge.Combine(context.Background(), nil, core.CategoryDocument, merge.Options{}); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("empty: got %v", err)
	}
}

package fileforge_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/fileforge"
	"github.com/Skryldev/fileforge/adapters/audio"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newRedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newProc(t *testing.T) *fileforge.Processor {
	t.Helper()
	cfg := fileforge.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.QueueSize = 16
	p, err := fileforge.New(cfg, fileforge.WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	t.Cleanup(p.Stop)
	return p
}

func fromBytes(t *testing.T, p *fileforge.Processor, name string, data []byte) fileforge.FileHandle {
	t.Helper()
	fh, err := p.FromBytes(name, data)
	if err != nil {
		t.Fatalf("FromBytes(%s): %v", name, err)
	}
	return fh
}

// ── Synchronous helpers ───────────────────────────────────────────────────────

func TestConvert_JPEGToPNG(t *testing.T) {
	proc := newProc(t)
	raw := newRedJPEG(t, 80, 60)

	res, err := proc.Convert(context.Background(), fromBytes(t, proc, "red.jpg", raw), "png", fileforge.LevelMedium)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(res.Output))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 60 {
		t.Errorf("dimensions %v, want 80x60", b)
	}
	if res.OriginalSize != int64(len(raw)) || res.OutputSize != int64(len(res.Output)) {
		t.Errorf("sizes: %d -> %d", res.OriginalSize, res.OutputSize)
	}
}

func TestCompress_KeepsFormat(t *testing.T) {
	proc := newProc(t)
	raw := newRedJPEG(t, 3000, 200)

	res, err := proc.Compress(context.Background(), fromBytes(t, proc, "wide.jpg", raw), fileforge.LevelHigh)
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != ".jpg" {
		t.Errorf("format %q", res.Format)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Output))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 1280 {
		t.Errorf("width %d, want 1280", cfg.Width)
	}
}

func TestMerge_DocumentsToMarkdown(t *testing.T) {
	proc := newProc(t)
	inputs := []fileforge.FileHandle{
		fromBytes(t, proc, "a.txt", []byte("first")),
		fromBytes(t, proc, "b.md", []byte("# Title B\n\nsecond")),
	}
	res, err := proc.Merge(context.Background(), inputs, ".md")
	if err != nil {
		t.Fatal(err)
	}
	want := "# Title B\n\nfirst\n\n<!-- pagebreak -->\n\n# Title B\n\nsecond\n"
	if string(res.Output) != want {
		t.Errorf("got %q, want %q", res.Output, want)
	}
}

func TestEdit_ImageResize(t *testing.T) {
	proc := newProc(t)
	res, err := proc.Edit(context.Background(), fromBytes(t, proc, "red.jpg", newRedJPEG(t, 100, 50)),
		map[string]string{"resize": "40x0"}, ".png")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(res.Output))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("got %dx%d, want 40x20", cfg.Width, cfg.Height)
	}
}

func TestEdit_NonFiniteTrimIsInvalid(t *testing.T) {
	proc := newProc(t)
	pcm := &core.PCM{SampleRate: 8000, Channels: 1, BitDepth: 16, Samples: make([]int, 8000)}
	wav, err := audio.New().Encode(context.Background(), pcm, ".wav", core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	in := fromBytes(t, proc, "tone.wav", wav)

	for _, trim := range []string{"NaN:1", "inf", "0:inf"} {
		_, err := proc.Edit(context.Background(), in, map[string]string{"trim": trim}, "")
		if !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
			t.Errorf("trim=%s: got %v, want invalid parameters", trim, err)
		}
	}

	h, err := proc.SubmitJob(context.Background(), fileforge.Job{
		Operation: fileforge.OpEdit,
		Inputs:    []fileforge.FileHandle{in},
		Params:    map[string]string{"trim": "NaN:1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := proc.Await(context.Background(), h); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("async: got %v, want invalid parameters", err)
	}

	res, err := proc.Edit(context.Background(), in, map[string]string{"trim": "0.5:1e300"}, "")
	if err != nil {
		t.Fatalf("huge duration: %v", err)
	}
	if res.OutputSize == 0 {
		t.Error("empty output")
	}
}

func TestFromPath(t *testing.T) {
	proc := newProc(t)
	path := filepath.Join(t.TempDir(), "photo.JPEG")
	if err := os.WriteFile(path, newRedJPEG(t, 8, 8), 0o644); err != nil {
		t.Fatal(err)
	}
	fh, err := proc.FromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if fh.Ext != ".jpg" || fh.Category != core.CategoryImage || fh.InMemory() {
		t.Errorf("handle: %+v", fh)
	}
	res, err := proc.Convert(context.Background(), fh, ".bmp", "")
	if err != nil || res.Format != ".bmp" {
		t.Errorf("convert from path: %v", err)
	}
}

// ── Asynchronous jobs ─────────────────────────────────────────────────────────

func TestSubmitJob_ProgressAndAwait(t *testing.T) {
	proc := newProc(t)
	ctx := context.Background()
	h, err := proc.SubmitJob(ctx, fileforge.Job{
		Operation: fileforge.OpConvert,
		Inputs:    []fileforge.FileHandle{fromBytes(t, proc, "red.jpg", newRedJPEG(t, 32, 32))},
		Target:    ".gif",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := proc.Await(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if res.OutputSize == 0 {
		t.Error("empty output")
	}

	// Subscribing after completion replays the whole stream.
	events, err := proc.Subscribe(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	var phases []string
	last := -1.0
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			if ev.Percent < last {
				t.Errorf("percent decreased: %v after %v", ev.Percent, last)
			}
			last = ev.Percent
			phases = append(phases, ev.Phase)
		case <-timeout:
			t.Fatal("progress stream did not close")
		}
	}
	if phases[0] != string(core.StatePending) || phases[len(phases)-1] != string(core.StateComplete) || last != 100 {
		t.Errorf("phases %v, last %v", phases, last)
	}
	if st, _ := proc.Status(h); st != core.StateComplete {
		t.Errorf("status %s", st)
	}
}

func TestCancel_AfterCompletionIsRejected(t *testing.T) {
	proc := newProc(t)
	ctx := context.Background()
	h, err := proc.SubmitJob(ctx, fileforge.Job{
		Operation: fileforge.OpConvert,
		Inputs:    []fileforge.FileHandle{fromBytes(t, proc, "a.txt", []byte("hello"))},
		Target:    ".html",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := proc.Await(ctx, h); err != nil {
		t.Fatal(err)
	}
	if proc.Cancel(h) {
		t.Error("cancel accepted after completion")
	}
	if proc.Cancel("no-such-job") {
		t.Error("cancel accepted for unknown job")
	}
}

func TestSubmitJob_ValidationFailure(t *testing.T) {
	proc := newProc(t)
	ctx := context.Background()
	h, err := proc.SubmitJob(ctx, fileforge.Job{
		Operation: fileforge.OpConvert,
		Inputs:    []fileforge.FileHandle{fromBytes(t, proc, "a.txt", []byte("x"))},
		Target:    ".wav",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = proc.Await(ctx, h)
	if !errors.Is(err, apperrors.ErrIllegalConversion) {
		t.Errorf("got %v, want IllegalConversion", err)
	}
	if st, _ := proc.Status(h); st != core.StateFailed {
		t.Errorf("status %s", st)
	}
}

// ── Batch + concurrency ───────────────────────────────────────────────────────

func TestBatch(t *testing.T) {
	proc := newProc(t)
	jobs := []fileforge.Job{
		{Operation: fileforge.OpConvert, Inputs: []fileforge.FileHandle{fromBytes(t, proc, "a.jpg", newRedJPEG(t, 16, 16))}, Target: ".png"},
		{Operation: fileforge.OpConvert, Inputs: []fileforge.FileHandle{fromBytes(t, proc, "b.txt", []byte("hi"))}, Target: ".mp3"},
		{Operation: fileforge.OpCompress, Inputs: []fileforge.FileHandle{fromBytes(t, proc, "c.txt", []byte("a  b\n\n\n\nc"))}, Level: fileforge.LevelHigh},
	}
	results, errs := proc.Batch(context.Background(), jobs, 2)
	if errs[0] != nil || results[0].Format != ".png" {
		t.Errorf("job 0: %v", errs[0])
	}
	if !apperrors.IsKind(errs[1], apperrors.KindIllegalConversion) {
		t.Errorf("job 1: got %v", errs[1])
	}
	if errs[2] != nil || string(results[2].Output) != "a b\n\nc" {
		t.Errorf("job 2: %v %q", errs[2], results[2].Output)
	}

	stats := proc.Stats()
	if stats.Processed != 2 || stats.Failed != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if stats.Metrics.PhaseCalls[string(core.StateEncoding)] != 2 {
		t.Errorf("metrics: %+v", stats.Metrics)
	}
}

func TestProcess_ConcurrentSafety(t *testing.T) {
	proc := newProc(t)
	raw := newRedJPEG(t, 64, 64)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fh, err := proc.FromBytes("x.jpg", raw)
			if err == nil {
				_, err = proc.Compress(context.Background(), fh, fileforge.LevelLow)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := fileforge.DefaultConfig()
	cfg.DefaultQuality = 0
	if _, err := fileforge.New(cfg); !apperrors.IsKind(err, apperrors.KindInvalidParameters) {
		t.Errorf("got %v", err)
	}
}

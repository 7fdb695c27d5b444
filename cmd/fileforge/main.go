// Command fileforge converts, compresses, merges and edits files from the
// command line.
//
//	fileforge convert  -to png photo.jpg
//	fileforge compress -level high -out ./small scan.pdf
//	fileforge merge    -to pdf notes.txt chapter.md
//	fileforge edit     -set resize=800x0 -set rotate=90 photo.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Skryldev/fileforge"
	"github.com/Skryldev/fileforge/adapters/storage"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
)

// backendOptions and backendShutdown are filled in by optional backends
// compiled in with build tags.
var (
	backendOptions  []fileforge.Option
	backendShutdown []func()
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// paramFlags collects repeated -set key=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string { return fmt.Sprint(map[string]string(p)) }

func (p paramFlags) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[strings.TrimSpace(k)] = strings.TrimSpace(val)
	return nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: fileforge <convert|compress|merge|edit> [flags] inputs...")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	op := core.Operation(args[0])
	switch op {
	case core.OpConvert, core.OpCompress, core.OpMerge, core.OpEdit:
	default:
		usage(stderr)
		return 2
	}

	// ── Flags ─────────────────────────────────────────────────────────────────
	cfg, err := config.FromEnv(config.EnvPrefix, config.Default())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	params := paramFlags{}
	fs := flag.NewFlagSet("fileforge "+string(op), flag.ContinueOnError)
	fs.SetOutput(stderr)
	target := fs.String("to", "", "target format, e.g. png or .pdf")
	level := fs.String("level", "", "compression level: low, medium or high")
	fs.Var(params, "set", "edit or merge parameter key=value (repeatable)")
	outDir := fs.String("out", cfg.Local.OutputDir, "output directory")
	workers := fs.Int("workers", cfg.WorkerCount, "worker count (0 = one per CPU)")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	jsonLogs := fs.Bool("json-logs", cfg.LogFormat == "json", "emit JSON logs")
	capacity := fs.Int64("capacity", cfg.MaxOutputBytes, "maximum output size in bytes (0 = unbounded)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	cfg.WorkerCount = *workers
	cfg.LogLevel = *logLevel
	cfg.LogFormat = "text"
	if *jsonLogs {
		cfg.LogFormat = "json"
	}
	lvl, err := core.ParseLevel(*level)
	if err != nil {
		return fail(stderr, err)
	}

	// ── Processor ─────────────────────────────────────────────────────────────
	for _, shutdown := range backendShutdown {
		defer shutdown()
	}
	proc, err := fileforge.New(cfg, append(backendOptions, fileforge.WithLogOutput(stderr))...)
	if err != nil {
		return fail(stderr, err)
	}
	proc.Start()
	defer proc.Stop()

	store, err := storage.NewLocal(*outDir, os.FileMode(cfg.Local.Permissions))
	if err != nil {
		return fail(stderr, err)
	}
	store = store.WithFormats(proc.Formats())

	inputs := make([]core.FileHandle, 0, fs.NArg())
	for _, path := range fs.Args() {
		fh, err := store.Open(path)
		if err != nil {
			return fail(stderr, err)
		}
		inputs = append(inputs, fh)
	}

	job := core.Job{
		Operation:      op,
		Inputs:         inputs,
		Target:         *target,
		Level:          lvl,
		OutputCapacity: *capacity,
	}
	if len(params) > 0 {
		job.Params = params
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := proc.SubmitJob(ctx, job)
	if err != nil {
		return fail(stderr, err)
	}
	go func() {
		<-ctx.Done()
		proc.Cancel(h)
	}()

	events, err := proc.Subscribe(ctx, h)
	if err == nil {
		for ev := range events {
			fmt.Fprintf(stderr, "[%3.0f%%] %s\n", ev.Percent, ev.Phase)
		}
	}

	res, err := proc.Await(context.WithoutCancel(ctx), h)
	if err != nil {
		return fail(stderr, err)
	}

	path, err := store.Save(ctx, outputName(inputs, op), res)
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "%s\t%d -> %d bytes\t%.2f%% saved\n", path, res.OriginalSize, res.OutputSize, res.Ratio)
	return 0
}

// outputName derives the saved file's stem from the first input.
func outputName(inputs []core.FileHandle, op core.Operation) string {
	if op == core.OpMerge {
		return "merged"
	}
	return filepath.Base(inputs[0].Basename())
}

func fail(w io.Writer, err error) int {
	kind := apperrors.KindOf(err)
	fmt.Fprintf(w, "fileforge: %s: %v\n", kind, err)
	if kind == apperrors.KindInvalidParameters {
		return 2
	}
	return 1
}

// Package fileforge converts, compresses, merges and edits files offline.
//
// A Processor owns a worker pool.  Jobs are submitted asynchronously and
// observed through a progress stream, or run synchronously with Process and
// the Convert/Compress/Merge/Edit helpers.
package fileforge

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/fileforge/adapters/archive"
	"github.com/Skryldev/fileforge/adapters/audio"
	"github.com/Skryldev/fileforge/adapters/document"
	"github.com/Skryldev/fileforge/adapters/imaging"
	"github.com/Skryldev/fileforge/adapters/video"
	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/formats"
	"github.com/Skryldev/fileforge/hooks"
	"github.com/Skryldev/fileforge/pipeline"
)

// Re-exported types so callers rarely need to import core.
type (
	Job           = core.Job
	JobHandle     = core.JobHandle
	JobResult     = core.JobResult
	FileHandle    = core.FileHandle
	ProgressEvent = core.ProgressEvent
	Level         = core.Level
	State         = core.State
)

// Re-export levels and operations for convenience.
const (
	LevelLow    = core.LevelLow
	LevelMedium = core.LevelMedium
	LevelHigh   = core.LevelHigh

	OpConvert  = core.OpConvert
	OpCompress = core.OpCompress
	OpMerge    = core.OpMerge
	OpEdit     = core.OpEdit
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Processor is the primary entry point.
type Processor struct {
	cfg     config.Config
	inner   *core.Processor
	runner  *pipeline.Runner
	codecs  *core.DefaultRegistry
	formats *formats.Registry
	metrics *hooks.InMemoryMetrics
	logger  core.Logger
}

type options struct {
	formats   *formats.Registry
	codecs    []core.Codec
	hooks     []core.Hook
	logger    core.Logger
	logOutput io.Writer
}

// Option customises New.
type Option func(*options)

// WithFormats replaces the built-in format registry.
func WithFormats(reg *formats.Registry) Option { return func(o *options) { o.formats = reg } }

// WithCodec installs c in place of the built-in codec for its category.
func WithCodec(c core.Codec) Option { return func(o *options) { o.codecs = append(o.codecs, c) } }

// WithHook registers an extra phase observer.
func WithHook(h core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h) } }

// WithLogger replaces the logger built from the config.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithLogOutput sends the config-built logger to w instead of stderr.
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.logOutput = w } }

// New creates a fully wired Processor with every built-in codec registered.
// Call Start before submitting jobs and Stop when done.
func New(cfg config.Config, opts ...Option) (*Processor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "config", err)
	}
	o := options{formats: formats.Default(), logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = hooks.NewLogger(cfg.LogLevel, cfg.LogFormat, o.logOutput)
	}

	codecs := core.NewRegistry(
		imaging.New(cfg),
		audio.New(),
		video.New(cfg),
		document.New(),
		archive.New(cfg.MaxInputBytes),
	)
	for _, c := range o.codecs {
		codecs.RegisterCodec(c)
	}

	metrics := hooks.NewInMemoryMetrics()
	runner := pipeline.NewRunner(cfg, o.formats, codecs)
	runner.SetLogger(o.logger)
	runner.AddHook(hooks.NewLoggingHook(o.logger))
	runner.AddHook(hooks.NewMetricsHook(metrics))
	for _, h := range o.hooks {
		runner.AddHook(h)
	}

	inner := core.New(cfg, runner)
	inner.SetLogger(o.logger)
	return &Processor{
		cfg:     cfg,
		inner:   inner,
		runner:  runner,
		codecs:  codecs,
		formats: o.formats,
		metrics: metrics,
		logger:  o.logger,
	}, nil
}

// Start starts the background worker pool.
func (p *Processor) Start() { p.inner.Start() }

// Stop shuts down the worker pool.  Queued jobs fail as cancelled.
func (p *Processor) Stop() { p.inner.Stop() }

// ── Inputs ────────────────────────────────────────────────────────────────────

// FromPath identifies the file at path.  Its bytes are read when a job runs.
func (p *Processor) FromPath(path string) (FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "from_path", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "from_path", err)
	}
	head := make([]byte, 3072)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return FileHandle{}, apperrors.New(apperrors.KindInvalidParameters, "from_path", err)
	}
	return p.formats.PathHandle(path, info.Size(), head[:n])
}

// FromBytes wraps in-memory content declared as name.
func (p *Processor) FromBytes(name string, data []byte) (FileHandle, error) {
	return p.formats.Handle(name, data)
}

// Formats is the registry jobs are validated against.
func (p *Processor) Formats() *formats.Registry { return p.formats }

// ── Asynchronous jobs ─────────────────────────────────────────────────────────

// SubmitJob enqueues job and returns immediately.
func (p *Processor) SubmitJob(ctx context.Context, job Job) (JobHandle, error) {
	return p.inner.Submit(ctx, job)
}

// Subscribe returns the job's progress stream from its first event.
func (p *Processor) Subscribe(ctx context.Context, h JobHandle) (<-chan ProgressEvent, error) {
	return p.inner.Subscribe(ctx, h)
}

// Await blocks until the job is terminal or ctx is done.
func (p *Processor) Await(ctx context.Context, h JobHandle) (*JobResult, error) {
	return p.inner.Await(ctx, h)
}

// Cancel requests cancellation and reports whether it was accepted.
func (p *Processor) Cancel(h JobHandle) bool { return p.inner.Cancel(h) }

// Status returns the job's current state.
func (p *Processor) Status(h JobHandle) (State, error) { return p.inner.Status(h) }

// ── Synchronous helpers ───────────────────────────────────────────────────────

// Process runs job on the calling goroutine.
func (p *Processor) Process(ctx context.Context, job Job) (*JobResult, error) {
	return p.inner.Process(ctx, job)
}

// Convert rewrites in as target.  A level only affects encode quality.
func (p *Processor) Convert(ctx context.Context, in FileHandle, target string, level Level) (*JobResult, error) {
	return p.Process(ctx, Job{Operation: OpConvert, Inputs: []FileHandle{in}, Target: target, Level: level})
}

// Compress reduces in at level, keeping its format.
func (p *Processor) Compress(ctx context.Context, in FileHandle, level Level) (*JobResult, error) {
	return p.Process(ctx, Job{Operation: OpCompress, Inputs: []FileHandle{in}, Level: level})
}

// Merge combines inputs, in order, into one file of format target.
func (p *Processor) Merge(ctx context.Context, inputs []FileHandle, target string) (*JobResult, error) {
	return p.Process(ctx, Job{Operation: OpMerge, Inputs: inputs, Target: target})
}

// Edit applies params to in.  An empty target keeps the input format.
func (p *Processor) Edit(ctx context.Context, in FileHandle, params map[string]string, target string) (*JobResult, error) {
	return p.Process(ctx, Job{Operation: OpEdit, Inputs: []FileHandle{in}, Params: params, Target: target})
}

// Batch runs jobs concurrently, at most limit at a time (limit <= 0 uses
// the configured worker count).  results[i] and errs[i] belong to jobs[i].
func (p *Processor) Batch(ctx context.Context, jobs []Job, limit int) ([]*JobResult, []error) {
	if limit <= 0 {
		limit = max(p.cfg.WorkerCount, 1)
	}
	results := make([]*JobResult, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range jobs {
		g.Go(func() error {
			results[i], errs[i] = p.Process(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// ── Stats ─────────────────────────────────────────────────────────────────────

// Stats summarises the processor's activity.
type Stats struct {
	Processed int64
	Failed    int64
	Metrics   hooks.MetricsSnapshot
}

// Stats returns lightweight processing statistics.
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.inner.ProcessedCount(),
		Failed:    p.inner.ErrorCount(),
		Metrics:   p.metrics.Snapshot(),
	}
}

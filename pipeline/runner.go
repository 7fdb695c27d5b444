package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Skryldev/fileforge/config"
	"github.com/Skryldev/fileforge/core"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/formats"
	"github.com/Skryldev/fileforge/merge"
	"github.com/Skryldev/fileforge/utils"
)

// Progress marks for each phase.
const (
	pctValidated = 5.0
	pctDecoded   = 40.0
	pctMerged    = 55.0
	pctEncoding  = 70.0
	pctEncoded   = 95.0
	pctComplete  = 100.0
)

// Runner executes jobs against a format registry and a set of codecs.  It
// implements core.Runner and is safe for concurrent use once configured.
type Runner struct {
	cfg     config.Config
	formats *formats.Registry
	codecs  core.Registry
	hooks   []core.Hook
	logger  core.Logger
}

// NewRunner returns a Runner.  A nil registry means formats.Default().
func NewRunner(cfg config.Config, reg *formats.Registry, codecs core.Registry) *Runner {
	if reg == nil {
		reg = formats.Default()
	}
	return &Runner{cfg: cfg, formats: reg, codecs: codecs, logger: core.NopLogger()}
}

// AddHook registers an observer.  Hooks must be added before the first Run.
func (r *Runner) AddHook(h core.Hook) *Runner {
	r.hooks = append(r.hooks, h)
	return r
}

// SetLogger attaches a structured logger.
func (r *Runner) SetLogger(l core.Logger) {
	if l != nil {
		r.logger = l
	}
}

// plan is everything validation resolved about a job.
type plan struct {
	exts     []string
	target   formats.Descriptor
	steps    *Chain
	fps      float64
	rawMerge bool // archive merges bundle the input bytes undecoded
}

// run is the state of one job execution.
type run struct {
	*Runner
	ctx context.Context //nolint:containedctx // scoped to a single Run call
	job *core.Job
	rep core.Reporter
	res *core.JobResult
}

// Run drives job to a terminal state.  On failure the returned result
// carries the failure report but no output.
func (r *Runner) Run(ctx context.Context, job *core.Job, rep core.Reporter) (*core.JobResult, error) {
	x := &run{
		Runner: r,
		ctx:    ctx,
		job:    job,
		rep:    rep,
		res:    &core.JobResult{JobID: job.ID, Timings: make(map[core.State]time.Duration)},
	}
	err := x.execute()
	if err != nil {
		x.res.Output = nil
		x.res.OutputSize = 0
		x.res.Ratio = 0
		return x.res, err
	}
	return x.res, nil
}

func (x *run) execute() error {
	var p *plan
	err := x.observe(core.StateValidated, func() (err error) {
		p, err = x.validate()
		return err
	})
	if err != nil {
		return err
	}
	if err := x.checkpoint(core.StateValidated, pctValidated, "validated"); err != nil {
		return err
	}

	inputs, err := x.decode(p)
	if err != nil {
		return err
	}
	can, err := x.transform(p, inputs)
	if err != nil {
		return err
	}
	if err := x.encode(p, can); err != nil {
		return err
	}
	return x.checkpoint(core.StateComplete, pctComplete, "")
}

// ── Validated ─────────────────────────────────────────────────────────────────

// validate resolves formats and parameters.  No codec is invoked here.
func (x *run) validate() (*plan, error) {
	job := x.job
	if !job.Operation.Valid() {
		return nil, invalid("job", "unknown operation %q", job.Operation)
	}
	if len(job.Inputs) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "job", apperrors.ErrEmptyInput)
	}
	if job.Operation != core.OpMerge && len(job.Inputs) != 1 {
		return nil, invalid("job", "%s takes exactly one input, got %d", job.Operation, len(job.Inputs))
	}
	if _, err := core.ParseLevel(string(job.Level)); err != nil {
		return nil, err
	}

	p := &plan{exts: make([]string, len(job.Inputs))}
	cats := make([]core.Category, len(job.Inputs))
	for i, in := range job.Inputs {
		ext := in.Ext
		if ext == "" {
			name, _ := lo.Coalesce(in.Name, in.Path)
			ext = formats.ExtOf(name)
		}
		d, err := x.formats.Lookup(ext)
		if err != nil {
			return nil, apperrors.WithInput(err, i)
		}
		p.exts[i], cats[i] = d.Ext, d.Category
	}

	switch job.Operation {
	case core.OpMerge:
		if err := x.validateMerge(p, cats); err != nil {
			return nil, err
		}
	default:
		if err := x.validateSingle(p); err != nil {
			return nil, err
		}
	}

	if job.Level != "" && !x.formats.LevelLegalFor(p.target.Ext, job.Level) {
		return nil, invalid("level", "level %q is not legal for %s", job.Level, p.target.Ext)
	}
	for i, ext := range p.exts {
		if p.rawMerge {
			break
		}
		d, _ := x.formats.Lookup(ext)
		if !d.Decode {
			return nil, apperrors.WithInput(apperrors.New(apperrors.KindUnsupportedFormat, "validate",
				fmt.Errorf("%w: cannot read %s", apperrors.ErrUnsupportedFormat, ext)), i)
		}
		if _, ok := x.codecs.CodecFor(d.Category); !ok {
			return nil, apperrors.WithInput(noCodec(d.Category), i)
		}
	}
	out := cats[0]
	if job.Operation == core.OpMerge {
		out = p.target.Category
	}
	if _, ok := x.codecs.CodecFor(out); !ok {
		return nil, noCodec(out)
	}
	return p, nil
}

func (x *run) validateSingle(p *plan) error {
	job := x.job
	src, _ := x.formats.Lookup(p.exts[0])

	target := job.Target
	if target == "" {
		if job.Operation == core.OpConvert {
			return invalid("target", "convert needs a target format")
		}
		target = src.Ext
		if !src.Encode && len(src.Targets) > 0 {
			target = src.Targets[0]
		}
	}
	if !x.formats.IsConversionLegal(src.Ext, target) {
		if _, err := x.formats.Lookup(target); err != nil {
			return err
		}
		return apperrors.New(apperrors.KindIllegalConversion, "validate",
			fmt.Errorf("%w: %s to %s", apperrors.ErrIllegalConversion, src.Ext, formats.Normalize(target)))
	}
	p.target, _ = x.formats.Lookup(target)

	switch job.Operation {
	case core.OpConvert:
		return utils.CheckKeys(job.Params)
	case core.OpCompress:
		if job.Level == "" {
			return invalid("level", "compress needs a level")
		}
		return utils.CheckKeys(job.Params)
	case core.OpEdit:
		if len(job.Params) == 0 {
			return invalid("params", "edit needs at least one parameter")
		}
		codec, ok := x.codecs.CodecFor(src.Category)
		if !ok {
			return noCodec(src.Category)
		}
		editor, ok := codec.(core.Editor)
		if !ok {
			return invalid("params", "%s files cannot be edited", src.Category)
		}
		steps, err := editor.Steps(job.Params)
		if err != nil {
			return err
		}
		p.steps = NewChain(steps...)
	}
	return nil
}

func (x *run) validateMerge(p *plan, cats []core.Category) error {
	job := x.job
	if job.Target == "" {
		return invalid("target", "merge needs a target format")
	}
	if err := x.formats.MergeTargetLegal(cats, job.Target); err != nil {
		return err
	}
	p.target, _ = x.formats.Lookup(job.Target)
	p.rawMerge = p.target.Category == core.CategoryArchive

	if err := utils.CheckKeys(job.Params, "fps"); err != nil {
		return err
	}
	p.fps = x.cfg.SlideshowFPS
	if v, ok := job.Params["fps"]; ok {
		fps, err := utils.ParseFPS("fps", v)
		if err != nil {
			return err
		}
		p.fps = fps
	}
	return nil
}

// ── Decoding ──────────────────────────────────────────────────────────────────

func (x *run) decode(p *plan) ([]merge.Input, error) {
	if err := x.checkpoint(core.StateDecoding, pctValidated, "decoding"); err != nil {
		return nil, err
	}
	n := len(x.job.Inputs)
	inputs := make([]merge.Input, n)
	err := x.observe(core.StateDecoding, func() error {
		for i, fh := range x.job.Inputs {
			if err := x.cancelled(core.StateDecoding); err != nil {
				return err
			}
			data, err := x.read(fh)
			if err != nil {
				return x.fail(i, fh, err)
			}
			x.res.OriginalSize += int64(len(data))
			inputs[i] = merge.Input{Name: fh.Basename(), Size: int64(len(data)), Raw: data}

			if !p.rawMerge {
				d, _ := x.formats.Lookup(p.exts[i])
				codec, _ := x.codecs.CodecFor(d.Category)
				can, err := codec.Decode(context.WithoutCancel(x.ctx), data, d.Ext)
				if err != nil {
					return x.fail(i, fh, apperrors.Wrap(apperrors.KindDecodeFailure, "decode", err))
				}
				inputs[i].Canonical = can
				inputs[i].Raw = nil
			}

			pct := pctValidated + (pctDecoded-pctValidated)*float64(i+1)/float64(n)
			if err := x.rep.Report(core.StateDecoding, pct, "decoded "+fh.Basename()); err != nil {
				return err
			}
		}
		return nil
	})
	return inputs, err
}

// read loads one input with the configured size limit.
func (x *run) read(fh core.FileHandle) ([]byte, error) {
	rc, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidParameters, "open", err)
	}
	defer rc.Close()
	data, err := utils.ReadAll(x.ctx, rc, x.cfg.MaxInputBytes, x.cfg.ChunkSize)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, apperrors.ErrInputTooLarge):
		return nil, apperrors.New(apperrors.KindInvalidParameters, "read", err)
	case x.ctx.Err() != nil:
		return nil, apperrors.New(apperrors.KindCancelled, "read", x.ctx.Err())
	}
	return nil, apperrors.New(apperrors.KindDecodeFailure, "read", err)
}

// fail attributes err to input i and records it in the failure report.
func (x *run) fail(i int, fh core.FileHandle, err error) error {
	err = apperrors.WithInput(err, i)
	if !apperrors.IsKind(err, apperrors.KindCancelled) {
		x.res.Failures = append(x.res.Failures, core.InputFailure{
			Input: i,
			Name:  fh.Basename(),
			Kind:  apperrors.KindOf(err),
			Err:   err,
		})
	}
	return err
}

// ── Transforming ──────────────────────────────────────────────────────────────

func (x *run) transform(p *plan, inputs []merge.Input) (core.Canonical, error) {
	if err := x.checkpoint(core.StateTransforming, pctDecoded, "transforming"); err != nil {
		return nil, err
	}
	var can core.Canonical
	err := x.observe(core.StateTransforming, func() error {
		ctx := context.WithoutCancel(x.ctx)
		switch x.job.Operation {
		case core.OpMerge:
			merged, parts, err := merge.Combine(ctx, inputs, p.target.Category, merge.Options{FPS: p.fps})
			if err != nil {
				if i := apperrors.InputOf(err); i >= 0 {
					return x.fail(i, x.job.Inputs[i], err)
				}
				return err
			}
			can, x.res.Parts = merged, parts
			return x.checkpoint(core.StateTransforming, pctMerged, "merged")

		case core.OpCompress:
			codec, _ := x.codecs.CodecFor(inputs[0].Canonical.Category())
			out, err := codec.Compress(ctx, inputs[0].Canonical, x.job.Level)
			if err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "compress", err)
			}
			can = out
			return nil

		case core.OpEdit:
			out, timings, err := p.steps.Run(x.ctx, inputs[0].Canonical, func(done, total int, step string) error {
				pct := pctDecoded + (pctEncoding-pctDecoded)*float64(done)/float64(total)
				return x.rep.Report(core.StateTransforming, pct, step)
			})
			for name, d := range timings {
				x.logger.Debug("pipeline.step.done", "job_id", x.job.ID, "step", name, "duration_ms", d.Milliseconds())
			}
			if err != nil {
				return err
			}
			can = out
			return nil
		}
		can = inputs[0].Canonical
		return nil
	})
	return can, err
}

// ── Encoding ──────────────────────────────────────────────────────────────────

func (x *run) encode(p *plan, can core.Canonical) error {
	if err := x.checkpoint(core.StateEncoding, pctEncoding, "encoding"); err != nil {
		return err
	}
	return x.observe(core.StateEncoding, func() error {
		codec, ok := x.codecs.CodecFor(can.Category())
		if !ok {
			return noCodec(can.Category())
		}
		capacity := x.job.OutputCapacity
		if capacity <= 0 {
			capacity = x.cfg.MaxOutputBytes
		}
		out, err := codec.Encode(context.WithoutCancel(x.ctx), can, p.target.Ext, core.EncodeOptions{
			Level:    x.job.Level,
			MaxBytes: capacity,
		})
		if err != nil {
			return apperrors.Wrap(apperrors.KindEncodeFailure, "encode", err)
		}

		x.res.Output = out
		x.res.Format = p.target.Ext
		x.res.MIME = p.target.MIME
		x.res.Category = can.Category()
		x.res.OutputSize = int64(len(out))
		x.res.Ratio = core.CompressionRatio(x.res.OriginalSize, x.res.OutputSize)
		return x.rep.Report(core.StateEncoding, pctEncoded, "encoded")
	})
}

// ── phase plumbing ────────────────────────────────────────────────────────────

// checkpoint fails the job if it was cancelled, otherwise reports progress.
func (x *run) checkpoint(state core.State, pct float64, msg string) error {
	if err := x.cancelled(state); err != nil {
		return err
	}
	return x.rep.Report(state, pct, msg)
}

func (x *run) cancelled(state core.State) error {
	if err := x.ctx.Err(); err != nil {
		return apperrors.New(apperrors.KindCancelled, string(state), err)
	}
	return nil
}

// observe runs fn between the hooks of state and records its duration.
func (x *run) observe(state core.State, fn func() error) error {
	for _, h := range x.hooks {
		h.BeforePhase(x.ctx, x.job, state)
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	x.res.Timings[state] = d
	for _, h := range x.hooks {
		h.AfterPhase(x.ctx, x.job, state, d, err)
	}
	return err
}

func invalid(op, format string, args ...any) error {
	return apperrors.New(apperrors.KindInvalidParameters, op,
		fmt.Errorf("%w: %s", apperrors.ErrInvalidParameters, fmt.Sprintf(format, args...)))
}

func noCodec(cat core.Category) error {
	return apperrors.New(apperrors.KindUnsupportedFormat, "codec",
		fmt.Errorf("%w: no codec registered for %s", apperrors.ErrUnsupportedFormat, cat))
}

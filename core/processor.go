package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/fileforge/config"
	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/progress"
)

// Processor schedules jobs on a bounded worker pool and keeps each job's
// progress stream and result until it is collected or expires.  It is safe
// for concurrent use.
type Processor struct {
	cfg    config.Config
	runner Runner
	logger Logger

	// Worker pool.
	jobQueue chan *task
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}

	mu      sync.RWMutex
	tasks   map[JobHandle]*task
	stopped bool

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// task is the scheduler's record of one submitted job.
type task struct {
	job     Job
	ctx     context.Context //nolint:containedctx // lives exactly as long as the job
	cancel  context.CancelFunc
	tracker *progress.Tracker
	done    chan struct{}

	mu              sync.Mutex
	state           State
	cancelRequested bool
	result          *JobResult
	err             error
	finishedAt      time.Time
}

// New creates a Processor.  Call Start() before submitting jobs; call Stop()
// when done.
func New(cfg config.Config, runner Runner) *Processor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Processor{
		cfg:      cfg,
		runner:   runner,
		logger:   NopLogger(),
		jobQueue: make(chan *task, queueSize),
		shutdown: make(chan struct{}),
		tasks:    make(map[JobHandle]*task),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// Start launches the worker pool and the result janitor.  It is idempotent.
func (p *Processor) Start() {
	p.once.Do(func() {
		workerCount := p.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			p.wg.Add(1)
			go p.worker()
		}
		if p.cfg.ResultTTL > 0 {
			p.wg.Add(1)
			go p.janitor()
		}
	})
}

// Stop shuts down all workers.  Jobs still queued fail as cancelled so that
// their awaiters are released.  It is idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.shutdown)
		p.wg.Wait()

		for {
			select {
			case t := <-p.jobQueue:
				t.cancel()
				p.finish(t, nil, apperrors.New(apperrors.KindCancelled, "processor.stop", apperrors.ErrEngineStopped))
			default:
				return
			}
		}
	})
}

// Submit enqueues job and returns immediately.  The job runs under ctx:
// cancelling ctx cancels the job.  Returns ErrQueueFull when the queue is
// full and ErrEngineStopped after Stop.
func (p *Processor) Submit(ctx context.Context, job Job) (JobHandle, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	jobCtx, cancel := context.WithCancel(ctx)
	t := &task{
		job:     job,
		ctx:     jobCtx,
		cancel:  cancel,
		tracker: progress.NewTracker(job.ID),
		done:    make(chan struct{}),
		state:   StatePending,
	}
	h := JobHandle(job.ID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		cancel()
		return "", apperrors.New(apperrors.KindCancelled, "submit", apperrors.ErrEngineStopped)
	}
	if _, exists := p.tasks[h]; exists {
		cancel()
		return "", apperrors.New(apperrors.KindInvalidParameters, "submit",
			fmt.Errorf("%w: duplicate job id %q", apperrors.ErrInvalidParameters, job.ID))
	}
	t.tracker.Publish(string(StatePending), 0, "queued")
	select {
	case p.jobQueue <- t:
	default:
		cancel()
		return "", apperrors.New(apperrors.KindInternal, "submit", apperrors.ErrQueueFull)
	}
	p.tasks[h] = t
	p.logger.Debug("job.submitted", "job_id", job.ID, "operation", job.Operation, "inputs", len(job.Inputs))
	return h, nil
}

// Subscribe returns the job's progress stream, replayed from its first
// event.  The channel closes after the terminal event or when ctx is done.
func (p *Processor) Subscribe(ctx context.Context, h JobHandle) (<-chan ProgressEvent, error) {
	t, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return t.tracker.Subscribe(ctx), nil
}

// Await blocks until the job is terminal or ctx is done.  A failed job
// returns its error together with a result carrying the failure report.
func (p *Processor) Await(ctx context.Context, h JobHandle) (*JobResult, error) {
	t, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Cancel requests cancellation.  It reports whether the request was accepted
// before the job reached a terminal state; an accepted request guarantees
// the job ends as Failed(Cancelled).
func (p *Processor) Cancel(h JobHandle) bool {
	t, err := p.lookup(h)
	if err != nil {
		return false
	}
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.cancelRequested = true
	t.mu.Unlock()
	t.cancel()
	p.logger.Info("job.cancel_requested", "job_id", t.job.ID)
	return true
}

// Status returns the job's current state.
func (p *Processor) Status(h JobHandle) (State, error) {
	t, err := p.lookup(h)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, nil
}

// Process runs job synchronously on the calling goroutine.
func (p *Processor) Process(ctx context.Context, job Job) (*JobResult, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if timeout := p.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := p.run(ctx, &job, discardReporter{})
	p.count(err)
	return res, err
}

// run executes job, turning a panic in the pipeline into an Internal error.
func (p *Processor) run(ctx context.Context, job *Job, rep Reporter) (res *JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, apperrors.New(apperrors.KindInternal, "processor.run", fmt.Errorf("panic: %v", r))
		}
	}()
	return p.runner.Run(ctx, job, rep)
}

// ── worker pool internals ──────────────────────────────────────────────────────

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case t := <-p.jobQueue:
			p.processTask(t)
		}
	}
}

func (p *Processor) processTask(t *task) {
	ctx := t.ctx
	if timeout := p.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer t.cancel()

	res, err := p.run(ctx, &t.job, &taskReporter{t: t})
	p.finish(t, res, err)
}

// finish records the outcome and ends the progress stream.
func (p *Processor) finish(t *task, res *JobResult, err error) {
	final := StateComplete
	if err != nil {
		final = StateFailed
	}
	if err != nil && res == nil {
		res = &JobResult{JobID: t.job.ID}
	}

	t.mu.Lock()
	reported := t.state == final
	t.state = final
	t.result = res
	t.err = err
	t.finishedAt = time.Now()
	t.mu.Unlock()

	if !reported {
		last, _ := t.tracker.Last()
		pct, msg := 100.0, ""
		if err != nil {
			pct, msg = last.Percent, string(apperrors.KindOf(err))
		}
		t.tracker.Publish(string(final), pct, msg)
	}
	p.count(err)
	t.tracker.Close()
	close(t.done)

	switch {
	case err == nil:
		p.logger.Info("job.completed", "job_id", t.job.ID, "operation", t.job.Operation,
			"output_bytes", res.OutputSize, "ratio", res.Ratio)
	case errors.Is(err, apperrors.ErrCancelled):
		p.logger.Info("job.cancelled", "job_id", t.job.ID, "error", err.Error())
	default:
		p.logger.Error("job.failed", "job_id", t.job.ID, "kind", apperrors.KindOf(err), "error", err.Error())
	}
}

func (p *Processor) count(err error) {
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return
	}
	atomic.AddInt64(&p.processedCount, 1)
}

// janitor evicts finished jobs once their results have outlived ResultTTL.
func (p *Processor) janitor() {
	defer p.wg.Done()
	interval := p.cfg.ResultTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			p.evict(now.Add(-p.cfg.ResultTTL))
		}
	}
}

func (p *Processor) evict(before time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for h, t := range p.tasks {
		t.mu.Lock()
		expired := t.state.Terminal() && !t.finishedAt.IsZero() && t.finishedAt.Before(before)
		t.mu.Unlock()
		if expired {
			delete(p.tasks, h)
		}
	}
}

func (p *Processor) lookup(h JobHandle) (*task, error) {
	p.mu.RLock()
	t, ok := p.tasks[h]
	p.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "lookup",
			fmt.Errorf("%w: %s", apperrors.ErrUnknownJob, h))
	}
	return t, nil
}

// ProcessedCount returns the total number of successfully completed jobs.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of failed jobs.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }

// ── reporters ─────────────────────────────────────────────────────────────────

// taskReporter applies runner transitions to the task and its tracker.  Once
// a cancellation has been accepted every transition except Failed is refused.
type taskReporter struct {
	t *task
}

func (r *taskReporter) Report(state State, percent float64, message string) error {
	t := r.t
	t.mu.Lock()
	if state != StateFailed && t.cancelRequested {
		t.mu.Unlock()
		return apperrors.New(apperrors.KindCancelled, string(state), apperrors.ErrCancelled)
	}
	if !CanTransition(t.state, state) && t.state != state {
		t.mu.Unlock()
		return apperrors.New(apperrors.KindInternal, "transition",
			fmt.Errorf("invalid transition: %s -> %s", t.state, state))
	}
	t.state = state
	t.mu.Unlock()

	t.tracker.Publish(string(state), percent, message)
	return nil
}

type discardReporter struct{}

func (discardReporter) Report(State, float64, string) error { return nil }

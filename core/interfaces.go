package core

import (
	"context"
	"io"
	"time"
)

// Codec decodes, transforms and encodes every format of one category.
// Implementations live in adapters/ and must be safe for concurrent use.
type Codec interface {
	Category() Category
	// Decode parses data declared as format ext into the canonical form.
	Decode(ctx context.Context, data []byte, ext string) (Canonical, error)
	// Encode serialises c as format ext.
	Encode(ctx context.Context, c Canonical, ext string, opts EncodeOptions) ([]byte, error)
	// Compress applies the level's lossy or lossless reduction to c.
	Compress(ctx context.Context, c Canonical, level Level) (Canonical, error)
}

// Step is one edit applied to a canonical value.
type Step interface {
	Name() string
	Apply(ctx context.Context, c Canonical) (Canonical, error)
}

// Editor is implemented by codecs that support the edit operation.  Steps
// parses edit parameters into the codec's fixed application order; unknown
// keys or malformed values yield InvalidParameters.
type Editor interface {
	Steps(params map[string]string) ([]Step, error)
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int   // 1-100; 0 = use encoder default
	Level    Level // compression level in effect, if any
	MaxBytes int64 // output capacity; 0 = unbounded
}

// Registry maps categories to codecs.
type Registry interface {
	CodecFor(c Category) (Codec, bool)
	RegisterCodec(c Codec)
}

// Reporter receives state transitions from a running job.  A non-nil error
// means the transition was refused (the job was cancelled) and the runner
// must fail the job instead.
type Reporter interface {
	Report(state State, percent float64, message string) error
}

// Runner executes one job to a terminal state.  It lets core schedule jobs
// without importing the pipeline package.
type Runner interface {
	Run(ctx context.Context, job *Job, rep Reporter) (*JobResult, error)
}

// Hook is an optional observer invoked around pipeline phases.
type Hook interface {
	BeforePhase(ctx context.Context, job *Job, state State)
	AfterPhase(ctx context.Context, job *Job, state State, d time.Duration, err error)
}

// StorageAdapter persists job outputs and retrieves them later.
// Implementations live in adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Exists(ctx context.Context, key StorageKey) (bool, error)
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(phase string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(phase string, kind string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

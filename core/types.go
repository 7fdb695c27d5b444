package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/Skryldev/fileforge/errors"
	"github.com/Skryldev/fileforge/progress"
)

// Category groups formats that share a canonical representation and codec.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryImage, CategoryAudio, CategoryVideo, CategoryDocument, CategoryArchive}

// Level is a compression level.  The empty Level means "not requested".
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Levels lists the legal compression levels from lightest to strongest.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

// ParseLevel accepts "", "low", "medium" and "high".
func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case "", LevelLow, LevelMedium, LevelHigh:
		return l, nil
	}
	return "", apperrors.New(apperrors.KindInvalidParameters, "level",
		fmt.Errorf("%w: unknown compression level %q", apperrors.ErrInvalidParameters, s))
}

// Operation is what a Job asks the pipeline to do.
type Operation string

const (
	OpConvert  Operation = "convert"
	OpCompress Operation = "compress"
	OpMerge    Operation = "merge"
	OpEdit     Operation = "edit"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpConvert, OpCompress, OpMerge, OpEdit:
		return true
	}
	return false
}

// FileHandle identifies one input.  It is immutable once created and is read
// by the pipeline only through Open.
type FileHandle struct {
	Path     string // filesystem path; empty for in-memory content
	Name     string // declared name, used for format lookup and archive entries
	Size     int64
	MIME     string
	Ext      string // normalised extension including the dot
	Category Category

	data []byte
}

// WithContent returns a copy of f backed by data instead of the filesystem.
func (f FileHandle) WithContent(data []byte) FileHandle {
	f.data = data
	f.Size = int64(len(data))
	return f
}

// InMemory reports whether f carries its own content.
func (f FileHandle) InMemory() bool { return f.data != nil }

// Open returns a fresh reader over the file's bytes.
func (f FileHandle) Open() (io.ReadCloser, error) {
	if f.data != nil {
		return io.NopCloser(bytes.NewReader(f.data)), nil
	}
	if f.Path == "" {
		return nil, apperrors.New(apperrors.KindInvalidParameters, "file.open", apperrors.ErrEmptyInput)
	}
	return os.Open(f.Path)
}

// Basename is the name an output entry derived from f should carry.
func (f FileHandle) Basename() string {
	if f.Name != "" {
		return filepath.Base(f.Name)
	}
	return filepath.Base(f.Path)
}

// JobHandle refers to a submitted job.
type JobHandle string

// Job encapsulates a single unit of work.
type Job struct {
	ID        string
	Operation Operation
	Inputs    []FileHandle
	Target    string // target extension; empty keeps the first input's format
	Level     Level
	// Params carries operation-specific settings such as edits
	// ("resize": "640x480") and merge options ("fps": "2").
	Params map[string]string
	// OutputCapacity bounds the encoded output in bytes; 0 = unbounded.
	OutputCapacity int64
}

// Part describes where input Input ended up inside the output.  Start and
// Length are measured in Unit (pages, frames, samples, rows or entries).
type Part struct {
	Input  int
	Name   string
	Size   int64
	Unit   string
	Start  int
	Length int
}

// InputFailure names the input that aborted a job.
type InputFailure struct {
	Input int
	Name  string
	Kind  apperrors.Kind
	Err   error
}

// JobResult is returned to the caller after a job reaches a terminal state.
type JobResult struct {
	JobID    string
	Output   []byte
	Format   string
	MIME     string
	Category Category

	OriginalSize int64
	OutputSize   int64
	Ratio        float64 // percent saved, clamped to [0,100]

	Parts    []Part
	Failures []InputFailure

	Timings map[State]time.Duration
}

// ProgressEvent is one entry in a job's progress stream.
type ProgressEvent = progress.Event

// StorageKey uniquely identifies a stored output.
type StorageKey struct {
	Bucket string
	Path   string
}

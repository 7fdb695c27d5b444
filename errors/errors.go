package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can translate it without parsing
// messages.  Every failed job carries exactly one Kind.
type Kind string

const (
	KindUnsupportedFormat       Kind = "unsupported_format"
	KindIllegalConversion       Kind = "illegal_conversion"
	KindDecodeFailure           Kind = "decode_failure"
	KindEncodeFailure           Kind = "encode_failure"
	KindIncompatibleMergeInputs Kind = "incompatible_merge_inputs"
	KindBufferTooSmall          Kind = "buffer_too_small"
	KindCancelled               Kind = "cancelled"
	KindInvalidParameters       Kind = "invalid_parameters"
	KindInternal                Kind = "internal"
)

// NoInput marks an error that is not attributable to a single input file.
const NoInput = -1

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Kind  Kind
	Op    string // operation name
	Input int    // index of the offending input, or NoInput
	Err   error
}

func (e *ProcessingError) Error() string {
	if e.Input >= 0 {
		return fmt.Sprintf("[%s] %s (input %d): %v", e.Kind, e.Op, e.Input, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is matches the sentinel that belongs to e.Kind, so
// errors.Is(err, ErrCancelled) holds for any cancelled job.
func (e *ProcessingError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// New creates a ProcessingError not tied to a particular input.
func New(kind Kind, op string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Op: op, Input: NoInput, Err: err}
}

// Wrap wraps err with context.  An error that is already classified keeps
// its kind; only unclassified errors take the given one.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return New(kind, op, err)
}

// WithInput attributes err to the input at index idx.  Unclassified errors
// become KindInternal.
func WithInput(err error, idx int) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		cp := *pe
		cp.Input = idx
		return &cp
	}
	return &ProcessingError{Kind: KindInternal, Op: "input", Input: idx, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// InputOf returns the input index recorded on err, or NoInput.
func InputOf(err error) int {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Input
	}
	return NoInput
}

// Sentinel errors, one per kind.
var (
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrIllegalConversion       = errors.New("illegal conversion")
	ErrDecodeFailure           = errors.New("decode failure")
	ErrEncodeFailure           = errors.New("encode failure")
	ErrIncompatibleMergeInputs = errors.New("incompatible merge inputs")
	ErrBufferTooSmall          = errors.New("output exceeds capacity")
	ErrCancelled               = errors.New("cancelled")
	ErrInvalidParameters       = errors.New("invalid parameters")
)

// API-level sentinel errors.
var (
	ErrEmptyInput    = errors.New("empty input")
	ErrInputTooLarge = errors.New("input exceeds size limit")
	ErrQueueFull     = errors.New("job queue full")
	ErrUnknownJob    = errors.New("unknown job")
	ErrEngineStopped = errors.New("engine stopped")
)

var kindSentinels = map[Kind]error{
	KindUnsupportedFormat:       ErrUnsupportedFormat,
	KindIllegalConversion:       ErrIllegalConversion,
	KindDecodeFailure:           ErrDecodeFailure,
	KindEncodeFailure:           ErrEncodeFailure,
	KindIncompatibleMergeInputs: ErrIncompatibleMergeInputs,
	KindBufferTooSmall:          ErrBufferTooSmall,
	KindCancelled:               ErrCancelled,
	KindInvalidParameters:       ErrInvalidParameters,
}

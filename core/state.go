package core

// State is a job's position in the pipeline state machine.
type State string

const (
	StatePending      State = "pending"
	StateValidated    State = "validated"
	StateDecoding     State = "decoding"
	StateTransforming State = "transforming"
	StateEncoding     State = "encoding"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition enforces the allowed job state machine edges.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StatePending:
		return to == StateValidated
	case StateValidated:
		return to == StateDecoding
	case StateDecoding:
		return to == StateTransforming
	case StateTransforming:
		return to == StateEncoding
	case StateEncoding:
		return to == StateComplete
	default:
		return false
	}
}

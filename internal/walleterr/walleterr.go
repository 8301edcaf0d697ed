// Package walleterr defines the tagged error taxonomy the wallet core
// surfaces, replacing the teacher's ad hoc errors.New(...) calls (see
// zerocash/ledger.go, internal/zerocash/tx.go) with a structured variant
// a caller can switch on via errors.As.
package walleterr

import "fmt"

// Kind enumerates the error categories the core can surface.
type Kind int

const (
	InvalidInput Kind = iota
	CommitmentMismatch
	OwnershipMismatch
	InsufficientNote
	ValueConservationViolation
	NoteSpent
	RootMismatch
	UnknownRoot
	NoLeafIndex
	ProverFailure
	NetworkUnavailable
	EventMalformed
	StorageUnavailable
	DecryptionFailed
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case CommitmentMismatch:
		return "CommitmentMismatch"
	case OwnershipMismatch:
		return "OwnershipMismatch"
	case InsufficientNote:
		return "InsufficientNote"
	case ValueConservationViolation:
		return "ValueConservationViolation"
	case NoteSpent:
		return "NoteSpent"
	case RootMismatch:
		return "RootMismatch"
	case UnknownRoot:
		return "UnknownRoot"
	case NoLeafIndex:
		return "NoLeafIndex"
	case ProverFailure:
		return "ProverFailure"
	case NetworkUnavailable:
		return "NetworkUnavailable"
	case EventMalformed:
		return "EventMalformed"
	case StorageUnavailable:
		return "StorageUnavailable"
	case DecryptionFailed:
		return "DecryptionFailed"
	case RateLimited:
		return "RateLimited"
	default:
		return "Unknown"
	}
}

// Error is the tagged variant every core-surfaced failure is wrapped in.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, walleterr.Kind) style matching via a sentinel
// wrapper: New(k, "").Is compares kinds only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind with a message.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Wrap constructs an Error of the given kind, wrapping an underlying cause.
func Wrap(k Kind, msg string, err error) *Error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// Sentinel returns a zero-payload *Error usable with errors.Is to test kind
// membership: errors.Is(err, walleterr.Sentinel(walleterr.NoteSpent)).
func Sentinel(k Kind) *Error {
	return &Error{Kind: k}
}

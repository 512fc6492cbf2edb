package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMalformedRequest = errors.New("malformed request")

	// ErrUnreachable means the rendezvous service could not be reached or
	// did not answer like one. Callers fall back instead of reporting it.
	ErrUnreachable = errors.New("signaling server unreachable")
)

type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// fromCode maps an error reply code back onto its sentinel.
func fromCode(code string) error {
	switch code {
	case "peer_not_found":
		return ErrPeerNotFound
	case "room_not_found":
		return ErrRoomNotFound
	case "malformed_request":
		return ErrMalformedRequest
	default:
		return ErrUnreachable
	}
}

func (r *errorReply) err(op string) error {
	return WrapError(op, fromCode(r.Code), r.Error)
}

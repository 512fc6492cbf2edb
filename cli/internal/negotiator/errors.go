package negotiator

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState     = errors.New("invalid state for operation")
	ErrCandidateDropped = errors.New("candidate arrived before remote description")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrConnectionFailed = errors.New("connection failed")
	ErrBadSignal        = errors.New("malformed signal")
)

type Error struct {
	Op     string
	PeerID string
	Err    error
}

func (e *Error) Error() string {
	if e.PeerID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.PeerID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op, peerID string, err error) *Error {
	return &Error{Op: op, PeerID: peerID, Err: err}
}

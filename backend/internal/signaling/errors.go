package signaling

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMalformedRequest = errors.New("malformed request")
)

// Error codes carried in error replies so clients can map them back to a kind.
const (
	CodePeerNotFound     = "peer_not_found"
	CodeRoomNotFound     = "room_not_found"
	CodeMalformedRequest = "malformed_request"
	CodeInternal         = "internal"
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

// Code returns the wire code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPeerNotFound):
		return CodePeerNotFound
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrMalformedRequest):
		return CodeMalformedRequest
	default:
		return CodeInternal
	}
}

// StatusCode returns the HTTP status used when err is reported over the
// request/response endpoint.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrPeerNotFound), errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

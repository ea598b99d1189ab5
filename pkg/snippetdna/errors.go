package snippetdna

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed or too-short audio and reference data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState marks an operation the session lifecycle no longer allows.
	ErrInvalidState = errors.New("invalid state")
	// ErrInternal marks an unexpected failure inside extraction or comparison.
	// The session is unusable afterwards.
	ErrInternal = errors.New("internal error")
	// ErrEndOfStream is returned by Next once the session is closed and drained.
	ErrEndOfStream = errors.New("end of stream")
	// ErrUnknownHandle is returned for released or never issued handles.
	ErrUnknownHandle = fmt.Errorf("%w: unknown session handle", ErrInvalidState)
)

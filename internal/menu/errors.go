package menu

import (
	"errors"
	"fmt"
)

// ErrNoSnapshot signals that no pipeline run has completed yet.
var ErrNoSnapshot = errors.New("no snapshot recorded yet")

// ErrNotFound signals that the requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// NetworkError wraps a failed or timed-out request. It is never fatal: the
// pipeline falls through to the next strategy.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError wraps malformed JSON or HTML encountered by a strategy. Like
// NetworkError it only causes fallthrough, never a hard failure.
type ParseError struct {
	Strategy Strategy
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse (%s): %v", e.Strategy, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

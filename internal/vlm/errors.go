package vlm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChoices is returned when the upstream reply carries no choices.
	ErrNoChoices = errors.New("upstream reply has no choices")
	// ErrEmptyContent is returned when the first choice has no message content.
	ErrEmptyContent = errors.New("upstream reply has empty content")
)

// UnavailableError reports that the endpoint could not be reached or kept
// failing transiently until the retry budget was spent.
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ProtocolError reports a reply that arrived but not in the expected
// transport shape. It is never retried.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "upstream protocol error: " + e.Err.Error() }

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var e *UnavailableError
	return errors.As(err, &e)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

package analyzer

import "errors"

var (
	// ErrUnavailable is returned when the analyzer cannot be reached or
	// responds with a non-success status.
	ErrUnavailable = errors.New("analyzer unavailable")
	// ErrTimeout is returned when the analyzer does not respond within
	// the configured deadline.
	ErrTimeout = errors.New("analyzer timed out")
	// ErrMalformed is returned when the analyzer response cannot be decoded.
	ErrMalformed = errors.New("malformed analyzer response")
)

package session

import "errors"

// Sentinel kinds for session errors.
var (
	// ErrSessionNotFound is returned when a session is unknown or already closed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when policy forbids a concurrent session
	// for the same user. The caller must close the existing session first.
	ErrDuplicateSession = errors.New("duplicate session")
)

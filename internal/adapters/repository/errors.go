package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("store unavailable")
	ErrInvalidLimit = errors.New("invalid listing limit")
)

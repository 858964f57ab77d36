package identity

import "errors"

// ErrUnauthenticated is returned when a credential cannot be verified.
var ErrUnauthenticated = errors.New("unauthenticated")

package common

import "errors"

var (
	// ErrNotAuthenticated: a protected operation was attempted with no
	// session on this device.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnavailable: the account service could not be reached.
	ErrUnavailable = errors.New("server unavailable")

	// ErrCeremonySuperseded: a newer ceremony of the same kind replaced this
	// one; its late result is discarded.
	ErrCeremonySuperseded = errors.New("ceremony superseded")
)

package inflight

import "errors"

var (
	// ErrBusy is returned when the id already has an action in flight.
	ErrBusy = errors.New("action already in flight")
	// ErrFull is returned when the guard holds its maximum number of ids.
	ErrFull = errors.New("too many actions in flight")
)

package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel kinds for reconciler errors.
var (
	ErrActionInFlight = errors.New("another action on this record is still in flight")
	ErrForbidden      = errors.New("record does not belong to this venue")
	ErrNotFound       = errors.New("this item no longer exists, please refresh")
)

// RemoteWriteError reports a store write that failed after the local
// change was applied. The local change has been rolled back.
type RemoteWriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("%s %s: remote write failed, change rolled back: %v", e.Op, e.ID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// NotFoundError reports a booking, event or venue that no longer exists.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

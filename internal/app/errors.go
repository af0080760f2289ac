package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted           = errors.New("service not started")
	ErrNoVenue              = errors.New("caller does not own a venue")
	ErrDuplicateApplication = errors.New("musician already has an open application for this event")
	ErrUnknownDriver        = errors.New("unknown store driver")
)

// Package repository defines the booking store port and an in-memory
// implementation of it.
package repository

import (
	"context"

	"github.com/okian/gigbook/internal/domain/model"
)

// Store is the remote source of truth for venues, events and bookings.
// Implementations return ErrNotFound (possibly wrapped) for unknown ids.
// Writes are last-write-wins; the store does not validate transitions.
type Store interface {
	CreateVenue(ctx context.Context, f model.VenueFields) (model.Venue, error)
	GetVenue(ctx context.Context, id string) (model.Venue, error)
	// VenueByOwner returns the venue owned by userID.
	VenueByOwner(ctx context.Context, userID string) (model.Venue, error)

	CreateEvent(ctx context.Context, f model.EventFields) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, p model.EventPatch) (model.Event, error)
	// ListEventsForVenue returns the venue's events ordered by date.
	ListEventsForVenue(ctx context.Context, venueID string) ([]model.Event, error)

	CreateBooking(ctx context.Context, f model.BookingFields) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	UpdateBooking(ctx context.Context, id string, p model.BookingPatch) (model.Booking, error)
	// ListBookingsForVenue returns bookings whose venue id is venueID or
	// whose event belongs to venueID, ordered by creation time.
	ListBookingsForVenue(ctx context.Context, venueID string) ([]model.Booking, error)
}

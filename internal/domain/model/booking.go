package model

import (
	"strings"
	"time"
)

// Booking is one musician's claim on one event, created either by the
// musician applying or by the venue booking directly.
type Booking struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	MusicianID    string        `json:"musician_id"`
	VenueID       string        `json:"venue_id,omitempty"` // empty until a venue accepts
	BookedBy      string        `json:"booked_by"`
	Status        BookingStatus `json:"status"`
	ProposedRate  float64       `json:"proposed_rate"`
	MusicianPitch string        `json:"musician_pitch,omitempty"`
	AppliedAt     *time.Time    `json:"applied_at,omitempty"`
	SelectedAt    *time.Time    `json:"selected_at,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of b.
func (b Booking) Clone() Booking {
	b.AppliedAt = cloneTime(b.AppliedAt)
	b.SelectedAt = cloneTime(b.SelectedAt)
	b.ConfirmedAt = cloneTime(b.ConfirmedAt)
	b.CancelledAt = cloneTime(b.CancelledAt)
	b.CompletedAt = cloneTime(b.CompletedAt)
	return b
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// BookingFields carries the fields needed to create a booking.
type BookingFields struct {
	EventID       string        `json:"event_id"`
	MusicianID    string        `json:"musician_id"`
	VenueID       string        `json:"venue_id,omitempty"`
	BookedBy      string        `json:"booked_by"`
	Status        BookingStatus `json:"status"`
	ProposedRate  float64       `json:"proposed_rate"`
	MusicianPitch string        `json:"musician_pitch,omitempty"`
}

// Validate checks required fields and the creation status. Bookings start
// as applied (musician path) or selected/confirmed (venue direct path).
func (f BookingFields) Validate() error {
	switch {
	case strings.TrimSpace(f.EventID) == "":
		return validationf("missing event_id")
	case strings.TrimSpace(f.MusicianID) == "":
		return validationf("missing musician_id")
	case strings.TrimSpace(f.BookedBy) == "":
		return validationf("missing booked_by")
	case f.ProposedRate < 0:
		return validationf("proposed_rate must not be negative")
	}
	switch f.Status {
	case BookingApplied:
	case BookingSelected, BookingConfirmed:
		if strings.TrimSpace(f.VenueID) == "" {
			return validationf("direct booking requires venue_id")
		}
	default:
		return validationf("bookings cannot be created as %q", f.Status)
	}
	return nil
}

// BookingPatch updates the status-relevant fields of a booking. Nil means
// unchanged.
type BookingPatch struct {
	Status      *BookingStatus `json:"status,omitempty"`
	VenueID     *string        `json:"venue_id,omitempty"`
	SelectedAt  *time.Time     `json:"selected_at,omitempty"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p BookingPatch) Empty() bool {
	return p == BookingPatch{}
}

// ApplyTo returns a copy of b with the patch applied.
func (p BookingPatch) ApplyTo(b Booking) Booking {
	b = b.Clone()
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.VenueID != nil {
		b.VenueID = *p.VenueID
	}
	if p.SelectedAt != nil {
		b.SelectedAt = cloneTime(p.SelectedAt)
	}
	if p.ConfirmedAt != nil {
		b.ConfirmedAt = cloneTime(p.ConfirmedAt)
	}
	if p.CancelledAt != nil {
		b.CancelledAt = cloneTime(p.CancelledAt)
	}
	if p.CompletedAt != nil {
		b.CompletedAt = cloneTime(p.CompletedAt)
	}
	return b
}

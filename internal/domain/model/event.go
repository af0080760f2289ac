// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Event is a scheduled performance opportunity owned by a venue.
type Event struct {
	ID          string      `json:"id"`
	VenueID     string      `json:"venue_id"`
	MusicianID  string      `json:"musician_id,omitempty"` // set when pre-booked
	Title       string      `json:"title"`
	Date        time.Time   `json:"date"`
	StartTime   string      `json:"start_time,omitempty"` // HH:MM, venue local
	EndTime     string      `json:"end_time,omitempty"`
	Capacity    int         `json:"capacity"`
	TicketPrice float64     `json:"ticket_price"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EventFields carries the fields needed to create an event.
type EventFields struct {
	VenueID     string      `json:"venue_id"`
	MusicianID  string      `json:"musician_id,omitempty"`
	Title       string      `json:"title"`
	Date        time.Time   `json:"date"`
	StartTime   string      `json:"start_time,omitempty"`
	EndTime     string      `json:"end_time,omitempty"`
	Capacity    int         `json:"capacity"`
	TicketPrice float64     `json:"ticket_price"`
	Status      EventStatus `json:"status,omitempty"`
}

// Validate checks required fields and value ranges.
func (f EventFields) Validate() error {
	switch {
	case strings.TrimSpace(f.VenueID) == "":
		return validationf("missing venue_id")
	case strings.TrimSpace(f.Title) == "":
		return validationf("missing title")
	case f.Date.IsZero():
		return validationf("missing date")
	case f.Capacity < 0:
		return validationf("capacity must not be negative")
	case f.TicketPrice < 0:
		return validationf("ticket_price must not be negative")
	case !f.Status.Valid():
		return validationf("unknown status %q", f.Status)
	}
	return nil
}

// EventPatch updates a subset of event fields. Nil means unchanged.
type EventPatch struct {
	Title       *string      `json:"title,omitempty"`
	Date        *time.Time   `json:"date,omitempty"`
	StartTime   *string      `json:"start_time,omitempty"`
	EndTime     *string      `json:"end_time,omitempty"`
	Capacity    *int         `json:"capacity,omitempty"`
	TicketPrice *float64     `json:"ticket_price,omitempty"`
	Status      *EventStatus `json:"status,omitempty"`
	MusicianID  *string      `json:"musician_id,omitempty"`
}

// Validate checks the values that are set.
func (p EventPatch) Validate() error {
	switch {
	case p.Title != nil && strings.TrimSpace(*p.Title) == "":
		return validationf("title must not be empty")
	case p.Date != nil && p.Date.IsZero():
		return validationf("date must not be zero")
	case p.Capacity != nil && *p.Capacity < 0:
		return validationf("capacity must not be negative")
	case p.TicketPrice != nil && *p.TicketPrice < 0:
		return validationf("ticket_price must not be negative")
	case p.Status != nil && !p.Status.Valid():
		return validationf("unknown status %q", *p.Status)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p == EventPatch{}
}

// ApplyTo returns a copy of e with the patch applied.
func (p EventPatch) ApplyTo(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.TicketPrice != nil {
		e.TicketPrice = *p.TicketPrice
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.MusicianID != nil {
		e.MusicianID = *p.MusicianID
	}
	return e
}

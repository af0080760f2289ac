package model

import (
	"encoding/json"
	"fmt"
)

// BookingStatus is the lifecycle state of a booking or application.
type BookingStatus string

const (
	BookingApplied             BookingStatus = "applied"
	BookingSelected            BookingStatus = "selected"
	BookingPendingConfirmation BookingStatus = "pending_confirmation"
	BookingConfirmed           BookingStatus = "confirmed"
	BookingPendingCancel       BookingStatus = "pending_cancel"
	BookingCancelled           BookingStatus = "cancelled"
	BookingCompleted           BookingStatus = "completed"
)

// BookingStatuses lists every valid booking status.
var BookingStatuses = []BookingStatus{
	BookingApplied,
	BookingSelected,
	BookingPendingConfirmation,
	BookingConfirmed,
	BookingPendingCancel,
	BookingCancelled,
	BookingCompleted,
}

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingApplied, BookingSelected, BookingPendingConfirmation, BookingConfirmed,
		BookingPendingCancel, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

func (s BookingStatus) String() string { return string(s) }

// ParseBookingStatus converts raw into a BookingStatus.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: booking status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// UnmarshalJSON rejects unknown statuses.
func (s *BookingStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseBookingStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EventStatus is the raw status an owner sets on an event.
type EventStatus string

const (
	EventOpen    EventStatus = "open"
	EventInvited EventStatus = "invited"
	EventDraft   EventStatus = "draft"
	EventClosed  EventStatus = "closed"
)

// Valid reports whether s is a known event status. The empty status is
// valid and means open.
func (s EventStatus) Valid() bool {
	switch s {
	case "", EventOpen, EventInvited, EventDraft, EventClosed:
		return true
	}
	return false
}

func (s EventStatus) String() string { return string(s) }

// ParseEventStatus converts raw into an EventStatus.
func ParseEventStatus(raw string) (EventStatus, error) {
	s := EventStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: event status %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// UnmarshalJSON rejects unknown statuses.
func (s *EventStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseEventStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DisplayStatus is the status shown for an event, derived from its bookings.
type DisplayStatus string

const (
	DisplayCompleted           DisplayStatus = "completed"
	DisplayCancelled           DisplayStatus = "cancelled"
	DisplayCancelRequested     DisplayStatus = "cancel_requested"
	DisplayConfirmed           DisplayStatus = "confirmed"
	DisplaySelected            DisplayStatus = "selected"
	DisplayApplicationReceived DisplayStatus = "application_received"
	DisplayInvited             DisplayStatus = "invited"
	DisplayOpen                DisplayStatus = "open"
	DisplayDraft               DisplayStatus = "draft"
	DisplayClosed              DisplayStatus = "closed"
)

func (s DisplayStatus) String() string { return string(s) }

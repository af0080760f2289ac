// Package status derives the display status of an event from its bookings.
//
// The raw status an owner stores on an event is not kept in sync with its
// bookings, so every view reads the derived value instead.
package status

import "github.com/okian/gigbook/internal/domain/model"

// Derive returns the display status of e given the bookings that reference
// it. Bookings for other events are ignored. Derive is total: with no
// relevant bookings it falls back to the raw event status, open when unset.
//
// Precedence, first match wins:
//
//	completed > cancelled > pending_cancel > confirmed > selected > applied > raw status
//
// A cancellation only wins when no other booking on the event is still
// live, so a cancelled application next to a confirmed or selected one
// does not mark the event cancelled.
func Derive(e model.Event, bookings []model.Booking) model.DisplayStatus {
	var seen tally
	for i := range bookings {
		if bookings[i].EventID != e.ID {
			continue
		}
		seen.add(bookings[i].Status)
	}

	switch {
	case seen.completed:
		return model.DisplayCompleted
	case seen.cancelled && !seen.live():
		return model.DisplayCancelled
	case seen.pendingCancel:
		return model.DisplayCancelRequested
	case seen.confirmed:
		return model.DisplayConfirmed
	case seen.selected:
		return model.DisplaySelected
	case seen.applied:
		return model.DisplayApplicationReceived
	}
	return fromRaw(e.Status)
}

// DeriveAll groups bookings by event and derives every event's status.
func DeriveAll(events []model.Event, bookings []model.Booking) map[string]model.DisplayStatus {
	byEvent := make(map[string][]model.Booking, len(events))
	for _, b := range bookings {
		byEvent[b.EventID] = append(byEvent[b.EventID], b)
	}
	out := make(map[string]model.DisplayStatus, len(events))
	for _, e := range events {
		out[e.ID] = Derive(e, byEvent[e.ID])
	}
	return out
}

type tally struct {
	completed           bool
	cancelled           bool
	pendingCancel       bool
	confirmed           bool
	selected            bool
	applied             bool
	pendingConfirmation bool
}

func (t tally) live() bool {
	return t.pendingCancel || t.confirmed || t.selected || t.applied || t.pendingConfirmation
}

func (t *tally) add(s model.BookingStatus) {
	switch s {
	case model.BookingCompleted:
		t.completed = true
	case model.BookingCancelled:
		t.cancelled = true
	case model.BookingPendingCancel:
		t.pendingCancel = true
	case model.BookingConfirmed:
		t.confirmed = true
	case model.BookingSelected:
		t.selected = true
	case model.BookingApplied:
		t.applied = true
	case model.BookingPendingConfirmation:
		// Live, but has no display status of its own.
		t.pendingConfirmation = true
	}
}

func fromRaw(s model.EventStatus) model.DisplayStatus {
	switch s {
	case model.EventInvited:
		return model.DisplayInvited
	case model.EventDraft:
		return model.DisplayDraft
	case model.EventClosed:
		return model.DisplayClosed
	}
	return model.DisplayOpen
}

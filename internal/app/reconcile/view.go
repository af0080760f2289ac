package reconcile

import (
	"sort"
	"time"

	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/internal/domain/status"
)

// EventView is an event with its derived display status.
type EventView struct {
	model.Event
	DisplayStatus model.DisplayStatus `json:"display_status"`
	Pending       bool                `json:"pending,omitempty"`
}

// BookingView is a booking with the actions currently legal on it.
type BookingView struct {
	model.Booking
	Actions []lifecycle.Action `json:"actions"`
	Pending bool               `json:"pending,omitempty"`
}

// View is a consistent snapshot of one venue's cached collections.
type View struct {
	VenueID  string        `json:"venue_id"`
	Version  uint64        `json:"version"`
	Events   []EventView   `json:"events"`
	Bookings []BookingView `json:"bookings"`
}

// Reason says why an Update was sent.
type Reason string

const (
	ReasonOptimistic Reason = "optimistic"
	ReasonCommitted  Reason = "committed"
	ReasonRollback   Reason = "rollback"
	ReasonRefetch    Reason = "refetch"
	ReasonCreated    Reason = "created"
	// ReasonSnapshot marks the first view sent on a new subscription.
	ReasonSnapshot   Reason = "snapshot"
)

// Notice is a user-visible message attached to an Update.
type Notice struct {
	Level    string `json:"level"`
	Message  string `json:"message"`
	RecordID string `json:"record_id,omitempty"`
}

// Update is delivered to subscribers whenever a venue's view changes.
type Update struct {
	Reason Reason    `json:"reason"`
	View   View      `json:"view"`
	Notice *Notice   `json:"notice,omitempty"`
	At     time.Time `json:"at"`
}

// buildView snapshots st. Callers hold the reconciler lock.
func buildView(venueID string, st *venueState) View {
	events := make([]model.Event, 0, len(st.events))
	for _, e := range st.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})

	bookings := make([]model.Booking, 0, len(st.bookings))
	for _, b := range st.bookings {
		bookings = append(bookings, b.Clone())
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})

	derived := status.DeriveAll(events, bookings)
	v := View{
		VenueID:  venueID,
		Version:  st.version,
		Events:   make([]EventView, len(events)),
		Bookings: make([]BookingView, len(bookings)),
	}
	for i, e := range events {
		v.Events[i] = EventView{Event: e, DisplayStatus: derived[e.ID], Pending: st.pending[e.ID]}
	}
	for i, b := range bookings {
		actions := lifecycle.Allowed(b.Status)
		if actions == nil {
			actions = []lifecycle.Action{}
		}
		v.Bookings[i] = BookingView{Booking: b, Actions: actions, Pending: st.pending[b.ID]}
	}
	return v
}

// Event returns the view of id, if present.
func (v View) Event(id string) (EventView, bool) {
	for _, e := range v.Events {
		if e.ID == id {
			return e, true
		}
	}
	return EventView{}, false
}

// Booking returns the view of id, if present.
func (v View) Booking(id string) (BookingView, bool) {
	for _, b := range v.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return BookingView{}, false
}

// Package lifecycle validates and applies booking status transitions.
//
// The transition table is the single authority for which actions are legal
// from which status. Callers must not write a status to the store that did
// not come out of Apply.
package lifecycle

import (
	"strings"
	"time"

	"github.com/okian/gigbook/internal/domain/model"
)

// Action is a request to move a booking to another status.
type Action string

const (
	ActionSelect              Action = "select"
	ActionReject              Action = "reject"
	ActionRequestConfirmation Action = "request_confirmation"
	ActionConfirm             Action = "confirm"
	ActionCancel              Action = "cancel"
	ActionRequestCancel       Action = "request_cancel"
	ActionApproveCancel       Action = "approve_cancel"
	ActionComplete            Action = "complete"
)

// Actions lists every known action in table order.
var Actions = []Action{
	ActionSelect,
	ActionReject,
	ActionRequestConfirmation,
	ActionConfirm,
	ActionCancel,
	ActionRequestCancel,
	ActionApproveCancel,
	ActionComplete,
}

type rule struct {
	from []model.BookingStatus
	to   model.BookingStatus
}

var table = map[Action]rule{
	ActionSelect:              {from: []model.BookingStatus{model.BookingApplied}, to: model.BookingSelected},
	ActionReject:              {from: []model.BookingStatus{model.BookingApplied}, to: model.BookingCancelled},
	ActionRequestConfirmation: {from: []model.BookingStatus{model.BookingSelected}, to: model.BookingPendingConfirmation},
	ActionConfirm:             {from: []model.BookingStatus{model.BookingSelected, model.BookingPendingConfirmation}, to: model.BookingConfirmed},
	ActionCancel:              {from: []model.BookingStatus{model.BookingApplied, model.BookingSelected, model.BookingPendingConfirmation}, to: model.BookingCancelled},
	ActionRequestCancel:       {from: []model.BookingStatus{model.BookingSelected, model.BookingPendingConfirmation, model.BookingConfirmed}, to: model.BookingPendingCancel},
	ActionApproveCancel:       {from: []model.BookingStatus{model.BookingPendingCancel}, to: model.BookingCancelled},
	ActionComplete:            {from: []model.BookingStatus{model.BookingConfirmed}, to: model.BookingCompleted},
}

// ParseAction converts raw into an Action. "accept" is accepted as an alias
// for select.
func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if a == "accept" {
		return ActionSelect, true
	}
	_, ok := table[a]
	return a, ok
}

// Target returns the status an action leads to.
func (a Action) Target() (model.BookingStatus, bool) {
	r, ok := table[a]
	return r.to, ok
}

// Command is an action plus the context needed for its side effects.
type Command struct {
	Action Action
	// At stamps the transition timestamp. Zero means time.Now().UTC().
	At time.Time
	// VenueID is the acting venue; required for ActionSelect.
	VenueID string
}

// Apply returns b moved through cmd. b is never modified. A
// *TransitionError is returned when the current status is not a legal
// source for the action, which includes repeating an action that already
// took effect.
func Apply(b model.Booking, cmd Command) (model.Booking, error) {
	r, ok := table[cmd.Action]
	if !ok {
		return b, &TransitionError{BookingID: b.ID, From: b.Status, Action: cmd.Action, Reason: "unknown action"}
	}
	if !allowedFrom(r, b.Status) {
		return b, &TransitionError{BookingID: b.ID, From: b.Status, Action: cmd.Action}
	}
	if cmd.Action == ActionSelect && strings.TrimSpace(cmd.VenueID) == "" {
		return b, &TransitionError{BookingID: b.ID, From: b.Status, Action: cmd.Action, Reason: "accepting venue required"}
	}
	if cmd.Action == ActionSelect && b.VenueID != "" && b.VenueID != cmd.VenueID {
		return b, &TransitionError{BookingID: b.ID, From: b.Status, Action: cmd.Action, Reason: "booking belongs to another venue"}
	}

	at := cmd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	out := b.Clone()
	out.Status = r.to
	out.UpdatedAt = at
	switch r.to {
	case model.BookingSelected:
		out.SelectedAt = &at
		out.VenueID = cmd.VenueID
	case model.BookingConfirmed:
		out.ConfirmedAt = &at
	case model.BookingCancelled:
		out.CancelledAt = &at
	case model.BookingCompleted:
		out.CompletedAt = &at
	}
	return out, nil
}

// Allowed lists the actions that are legal from status, in table order.
func Allowed(status model.BookingStatus) []Action {
	var out []Action
	for _, a := range Actions {
		if allowedFrom(table[a], status) {
			out = append(out, a)
		}
	}
	return out
}

// Can reports whether action is legal from status.
func Can(status model.BookingStatus, action Action) bool {
	r, ok := table[action]
	return ok && allowedFrom(r, status)
}

func allowedFrom(r rule, s model.BookingStatus) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

// Diff returns the store patch that turns before into after.
func Diff(before, after model.Booking) model.BookingPatch {
	var p model.BookingPatch
	if before.Status != after.Status {
		s := after.Status
		p.Status = &s
	}
	if before.VenueID != after.VenueID {
		v := after.VenueID
		p.VenueID = &v
	}
	if !sameTime(before.SelectedAt, after.SelectedAt) {
		p.SelectedAt = after.SelectedAt
	}
	if !sameTime(before.ConfirmedAt, after.ConfirmedAt) {
		p.ConfirmedAt = after.ConfirmedAt
	}
	if !sameTime(before.CancelledAt, after.CancelledAt) {
		p.CancelledAt = after.CancelledAt
	}
	if !sameTime(before.CompletedAt, after.CompletedAt) {
		p.CompletedAt = after.CompletedAt
	}
	return p
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

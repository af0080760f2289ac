package scenario

import (
	"fmt"

	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/model"
)

// verifyOutcome checks the venue view a run ended with.
func verifyOutcome(out *outcome) error {
	if out.view.VenueID != out.venue.ID {
		return fmt.Errorf("view is for venue %q, want %q", out.view.VenueID, out.venue.ID)
	}

	var event *reconcile.EventView
	for i := range out.view.Events {
		if out.view.Events[i].ID == out.event.ID {
			event = &out.view.Events[i]
		}
	}
	if event == nil {
		return fmt.Errorf("event %s missing from view", out.event.ID)
	}

	want := model.DisplayOpen
	if out.selected != "" {
		want = model.DisplayConfirmed
	}
	if event.DisplayStatus != want {
		return fmt.Errorf("event %s shows %s, want %s", event.ID, event.DisplayStatus, want)
	}

	statuses := make(map[string]model.BookingStatus, len(out.view.Bookings))
	for _, b := range out.view.Bookings {
		if b.Pending {
			return fmt.Errorf("booking %s still pending after its write returned", b.ID)
		}
		statuses[b.ID] = b.Status
	}
	if out.selected != "" && statuses[out.selected] != model.BookingConfirmed {
		return fmt.Errorf("booking %s is %s, want %s", out.selected, statuses[out.selected], model.BookingConfirmed)
	}
	for _, id := range out.rejected {
		if statuses[id] != model.BookingCancelled {
			return fmt.Errorf("booking %s is %s, want %s", id, statuses[id], model.BookingCancelled)
		}
	}

	if len(out.updates) > 0 && out.updates[0] != reconcile.ReasonSnapshot {
		return fmt.Errorf("first update was %s, want %s", out.updates[0], reconcile.ReasonSnapshot)
	}
	return nil
}

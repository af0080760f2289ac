package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/logger"
)

// outcome is what a single venue run produced, for verification.
type outcome struct {
	venue    model.Venue
	event    model.Event
	selected string
	rejected []string
	view     reconcile.View
	updates  []reconcile.Reason
}

// runVenue drives one venue through the booking flow: publish an event,
// collect applications, accept one, reject the rest, have the musician
// confirm and read back the view.
func runVenue(ctx context.Context, c *client, config *Config, idx int, stats *Stats) (*outcome, error) {
	owner := fmt.Sprintf("owner-%d", idx)
	out := &outcome{}

	if err := c.do(ctx, http.MethodPost, "/venues", owner, map[string]string{"name": fmt.Sprintf("Venue %d", idx)}, &out.venue); err != nil {
		return nil, fmt.Errorf("create venue: %w", err)
	}
	stats.VenuesCreated.Add(1)

	var updates <-chan reconcile.Reason
	if config.Watch {
		conn, err := c.subscribe(ctx, owner, out.venue.ID)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		updates = watch(conn, config.Timeout)
	}

	event := model.EventFields{
		Title: fmt.Sprintf("Live at Venue %d", idx),
		Date:  time.Now().UTC().Add(eventLeadTime).Truncate(time.Second),
	}
	if err := c.do(ctx, http.MethodPost, "/venues/"+out.venue.ID+"/events", owner, event, &out.event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	bookings := make([]model.Booking, 0, config.Applicants)
	for j := 0; j < config.Applicants; j++ {
		musician := musicianID(idx, j)
		app := map[string]any{"proposed_rate": baseRate + rateStep*j, "musician_pitch": "hi from " + musician}
		var b model.Booking
		if err := c.do(ctx, http.MethodPost, "/events/"+out.event.ID+"/applications", musician, app, &b); err != nil {
			return nil, fmt.Errorf("apply as %s: %w", musician, err)
		}
		stats.Applications.Add(1)
		bookings = append(bookings, b)
	}
	if len(bookings) == 0 {
		return out, c.do(ctx, http.MethodGet, "/venues/"+out.venue.ID+"/view", owner, nil, &out.view)
	}

	out.selected = bookings[0].ID
	if err := transition(ctx, c, owner, out.selected, "accept", model.BookingSelected); err != nil {
		return nil, err
	}
	stats.Accepted.Add(1)

	for _, b := range bookings[1:] {
		if err := transition(ctx, c, owner, b.ID, "reject", model.BookingCancelled); err != nil {
			return nil, err
		}
		out.rejected = append(out.rejected, b.ID)
		stats.Rejected.Add(1)
	}

	// Accepting again must be refused.
	err := c.do(ctx, http.MethodPost, "/bookings/"+out.selected+"/accept", owner, nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "illegal_transition" {
		return nil, fmt.Errorf("repeated accept of %s: want illegal_transition, got %v", out.selected, err)
	}
	stats.Conflicts.Add(1)

	if err := transition(ctx, c, musicianID(idx, 0), out.selected, "confirm", model.BookingConfirmed); err != nil {
		return nil, err
	}
	stats.Confirmed.Add(1)

	if err := c.do(ctx, http.MethodGet, "/venues/"+out.venue.ID+"/view", owner, nil, &out.view); err != nil {
		return nil, fmt.Errorf("read view: %w", err)
	}

	if updates != nil {
		out.updates = drain(updates)
		stats.UpdatesReceived.Add(int64(len(out.updates)))
	}

	if config.Verbose {
		logger.Get().Debug(ctx, "venue driven",
			logger.String("venue_id", out.venue.ID),
			logger.String("event_id", out.event.ID),
			logger.Int("applications", len(bookings)),
			logger.Int("updates", len(out.updates)))
	}
	return out, nil
}

func transition(ctx context.Context, c *client, user, bookingID, action string, want model.BookingStatus) error {
	var b model.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings/"+bookingID+"/"+action, user, nil, &b); err != nil {
		return fmt.Errorf("%s %s as %s: %w", action, bookingID, user, err)
	}
	if b.Status != want {
		return fmt.Errorf("%s %s: want %s, got %s", action, bookingID, want, b.Status)
	}
	return nil
}

// drain collects what has already arrived on updates, waiting briefly for
// the last write to land.
func drain(updates <-chan reconcile.Reason) []reconcile.Reason {
	var out []reconcile.Reason
	timer := time.NewTimer(watchSettle)
	defer timer.Stop()
	for {
		select {
		case r, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timer.C:
			return out
		}
	}
}

func musicianID(venue, n int) string {
	return fmt.Sprintf("musician-%d-%d", venue, n)
}

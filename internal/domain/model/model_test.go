package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/gigbook/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBookingStatus(t *testing.T) {
	Convey("Given booking status strings", t, func() {
		Convey("Then every listed status parses", func() {
			for _, s := range model.BookingStatuses {
				parsed, err := model.ParseBookingStatus(string(s))
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, s)
			}
		})

		Convey("Then an unknown status is rejected instead of defaulting", func() {
			_, err := model.ParseBookingStatus("accepted")
			So(errors.Is(err, model.ErrUnknownStatus), ShouldBeTrue)

			var b model.Booking
			err = json.Unmarshal([]byte(`{"id":"b1","status":"accepted"}`), &b)
			So(err, ShouldNotBeNil)
		})

		Convey("Then only cancelled and completed are terminal", func() {
			for _, s := range model.BookingStatuses {
				want := s == model.BookingCancelled || s == model.BookingCompleted
				So(s.Terminal(), ShouldEqual, want)
			}
		})
	})
}

func TestEventStatus(t *testing.T) {
	Convey("Given event status strings", t, func() {
		So(model.EventStatus("").Valid(), ShouldBeTrue)
		So(model.EventInvited.Valid(), ShouldBeTrue)

		_, err := model.ParseEventStatus("sold_out")
		So(errors.Is(err, model.ErrUnknownStatus), ShouldBeTrue)

		var e model.Event
		So(json.Unmarshal([]byte(`{"status":"invited"}`), &e), ShouldBeNil)
		So(e.Status, ShouldEqual, model.EventInvited)
	})
}

func TestBookingPatch(t *testing.T) {
	Convey("Given a booking and a patch", t, func() {
		now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
		b := model.Booking{ID: "b1", Status: model.BookingApplied}
		selected := model.BookingSelected
		venue := "v1"
		p := model.BookingPatch{Status: &selected, VenueID: &venue, SelectedAt: &now}

		Convey("When applying it", func() {
			out := p.ApplyTo(b)

			Convey("Then the copy changes and the original does not", func() {
				So(out.Status, ShouldEqual, model.BookingSelected)
				So(out.VenueID, ShouldEqual, "v1")
				So(*out.SelectedAt, ShouldEqual, now)
				So(b.Status, ShouldEqual, model.BookingApplied)
				So(b.SelectedAt, ShouldBeNil)
			})

			Convey("Then the copy does not alias the patch timestamps", func() {
				*out.SelectedAt = now.Add(time.Hour)
				So(now.Hour(), ShouldEqual, 20)
				So(*p.SelectedAt, ShouldEqual, now)
			})
		})

		Convey("Then an empty patch is detected", func() {
			So(model.BookingPatch{}.Empty(), ShouldBeTrue)
			So(p.Empty(), ShouldBeFalse)
		})
	})
}

func TestFieldsValidation(t *testing.T) {
	Convey("Given creation fields", t, func() {
		Convey("Then a musician application is valid without a venue", func() {
			f := model.BookingFields{EventID: "e1", MusicianID: "m1", BookedBy: "u1", Status: model.BookingApplied, ProposedRate: 150}
			So(f.Validate(), ShouldBeNil)
		})

		Convey("Then a direct booking needs a venue", func() {
			f := model.BookingFields{EventID: "e1", MusicianID: "m1", BookedBy: "u1", Status: model.BookingSelected}
			So(errors.Is(f.Validate(), model.ErrValidation), ShouldBeTrue)
			f.VenueID = "v1"
			So(f.Validate(), ShouldBeNil)
		})

		Convey("Then bookings cannot be created mid-lifecycle", func() {
			f := model.BookingFields{EventID: "e1", MusicianID: "m1", BookedBy: "u1", VenueID: "v1", Status: model.BookingCompleted}
			So(errors.Is(f.Validate(), model.ErrValidation), ShouldBeTrue)
		})

		Convey("Then events need a title and date", func() {
			f := model.EventFields{VenueID: "v1", Title: "Friday Jazz"}
			So(errors.Is(f.Validate(), model.ErrValidation), ShouldBeTrue)
			f.Date = time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)
			So(f.Validate(), ShouldBeNil)
		})

		Convey("Then event patches reject blank titles", func() {
			blank := " "
			So(errors.Is(model.EventPatch{Title: &blank}.Validate(), model.ErrValidation), ShouldBeTrue)
		})
	})
}

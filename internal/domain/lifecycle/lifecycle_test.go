package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var at = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func application(id string) model.Booking {
	applied := at.Add(-24 * time.Hour)
	return model.Booking{
		ID:           id,
		EventID:      "e1",
		MusicianID:   "m-" + id,
		BookedBy:     "u-" + id,
		Status:       model.BookingApplied,
		ProposedRate: 150,
		AppliedAt:    &applied,
	}
}

func TestApply_Select(t *testing.T) {
	Convey("Given an applied booking without a venue", t, func() {
		b := application("b1")

		Convey("When the venue accepts it", func() {
			out, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionSelect, At: at, VenueID: "v1"})

			Convey("Then it is selected, stamped and tied to the venue", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, model.BookingSelected)
				So(out.SelectedAt, ShouldNotBeNil)
				So(out.SelectedAt.Equal(at), ShouldBeTrue)
				So(out.VenueID, ShouldEqual, "v1")
			})

			Convey("Then the input booking is untouched", func() {
				So(b.Status, ShouldEqual, model.BookingApplied)
				So(b.SelectedAt, ShouldBeNil)
				So(b.VenueID, ShouldBeEmpty)
			})

			Convey("Then accepting again is rejected", func() {
				_, err := lifecycle.Apply(out, lifecycle.Command{Action: lifecycle.ActionSelect, At: at, VenueID: "v1"})
				So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)

				var te *lifecycle.TransitionError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.From, ShouldEqual, model.BookingSelected)
				So(te.Action, ShouldEqual, lifecycle.ActionSelect)
			})
		})

		Convey("When no accepting venue is given", func() {
			_, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionSelect})

			Convey("Then the transition is rejected", func() {
				So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
			})
		})

		Convey("When another venue tries to accept a booking addressed to v1", func() {
			b.VenueID = "v1"
			_, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionSelect, VenueID: "v2"})

			Convey("Then the transition is rejected", func() {
				So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
			})
		})
	})
}

func TestApply_Reject(t *testing.T) {
	Convey("Given an applied booking", t, func() {
		b := application("b2")

		Convey("When the venue rejects it", func() {
			out, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionReject, At: at})

			Convey("Then it is cancelled with a timestamp", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, model.BookingCancelled)
				So(out.CancelledAt.Equal(at), ShouldBeTrue)
			})
		})
	})
}

func TestApply_IllegalFromTerminal(t *testing.T) {
	Convey("Given a cancelled booking", t, func() {
		b := application("b3")
		b.Status = model.BookingCancelled

		Convey("Then every action is rejected and nothing changes", func() {
			for _, a := range lifecycle.Actions {
				out, err := lifecycle.Apply(b, lifecycle.Command{Action: a, At: at, VenueID: "v1"})
				So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
				So(out.Status, ShouldEqual, model.BookingCancelled)
			}
		})
	})

	Convey("Given a completed booking", t, func() {
		b := application("b4")
		b.Status = model.BookingCompleted

		Convey("Then no action is allowed", func() {
			So(lifecycle.Allowed(model.BookingCompleted), ShouldBeEmpty)
		})
	})
}

func TestApply_FullPaths(t *testing.T) {
	Convey("Given an application going through the whole lifecycle", t, func() {
		b := application("b5")
		steps := []lifecycle.Action{
			lifecycle.ActionSelect,
			lifecycle.ActionRequestConfirmation,
			lifecycle.ActionConfirm,
			lifecycle.ActionComplete,
		}
		want := []model.BookingStatus{
			model.BookingSelected,
			model.BookingPendingConfirmation,
			model.BookingConfirmed,
			model.BookingCompleted,
		}

		Convey("Then each step lands on the expected status", func() {
			var err error
			for i, a := range steps {
				b, err = lifecycle.Apply(b, lifecycle.Command{Action: a, At: at, VenueID: "v1"})
				So(err, ShouldBeNil)
				So(b.Status, ShouldEqual, want[i])
			}
			So(b.ConfirmedAt, ShouldNotBeNil)
			So(b.CompletedAt, ShouldNotBeNil)
		})
	})

	Convey("Given a confirmed booking", t, func() {
		b := application("b6")
		b.Status = model.BookingConfirmed

		Convey("When a cancellation is requested and approved", func() {
			mid, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionRequestCancel, At: at})
			So(err, ShouldBeNil)
			So(mid.Status, ShouldEqual, model.BookingPendingCancel)

			out, err := lifecycle.Apply(mid, lifecycle.Command{Action: lifecycle.ActionApproveCancel, At: at})

			Convey("Then it ends cancelled", func() {
				So(err, ShouldBeNil)
				So(out.Status, ShouldEqual, model.BookingCancelled)
				So(out.CancelledAt, ShouldNotBeNil)
			})
		})

		Convey("Then direct cancellation is not allowed", func() {
			_, err := lifecycle.Apply(b, lifecycle.Command{Action: lifecycle.ActionCancel, At: at})
			So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
		})
	})
}

func TestApply_UnknownAction(t *testing.T) {
	Convey("Given an unknown action", t, func() {
		_, err := lifecycle.Apply(application("b7"), lifecycle.Command{Action: "promote"})
		So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "unknown action")
	})
}

func TestAllowedAndParse(t *testing.T) {
	Convey("Given the transition table", t, func() {
		So(lifecycle.Allowed(model.BookingApplied), ShouldResemble,
			[]lifecycle.Action{lifecycle.ActionSelect, lifecycle.ActionReject, lifecycle.ActionCancel})
		So(lifecycle.Can(model.BookingPendingCancel, lifecycle.ActionApproveCancel), ShouldBeTrue)
		So(lifecycle.Can(model.BookingApplied, lifecycle.ActionConfirm), ShouldBeFalse)

		a, ok := lifecycle.ParseAction("Accept")
		So(ok, ShouldBeTrue)
		So(a, ShouldEqual, lifecycle.ActionSelect)

		_, ok = lifecycle.ParseAction("promote")
		So(ok, ShouldBeFalse)

		to, ok := lifecycle.ActionReject.Target()
		So(ok, ShouldBeTrue)
		So(to, ShouldEqual, model.BookingCancelled)
	})
}

func TestDiff(t *testing.T) {
	Convey("Given a booking before and after accept", t, func() {
		before := application("b8")
		after, err := lifecycle.Apply(before, lifecycle.Command{Action: lifecycle.ActionSelect, At: at, VenueID: "v1"})
		So(err, ShouldBeNil)

		p := lifecycle.Diff(before, after)

		Convey("Then the patch carries only what changed", func() {
			So(*p.Status, ShouldEqual, model.BookingSelected)
			So(*p.VenueID, ShouldEqual, "v1")
			So(p.SelectedAt.Equal(at), ShouldBeTrue)
			So(p.CancelledAt, ShouldBeNil)
			So(p.ConfirmedAt, ShouldBeNil)
		})

		Convey("Then applying the patch reproduces the transition", func() {
			re := p.ApplyTo(before)
			So(re.Status, ShouldEqual, after.Status)
			So(re.VenueID, ShouldEqual, after.VenueID)
		})

		Convey("Then identical bookings diff to an empty patch", func() {
			So(lifecycle.Diff(after, after).Empty(), ShouldBeTrue)
		})
	})
}

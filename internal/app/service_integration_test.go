package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a venue and an event", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithRefetchDelay(10*time.Millisecond),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		venue, err := svc.CreateVenue(ctx, "owner-1", "Blue Room")
		So(err, ShouldBeNil)
		event, err := svc.CreateEvent(ctx, "owner-1", venue.ID, model.EventFields{
			Title: "Friday Jazz",
			Date:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		})
		So(err, ShouldBeNil)
		So(event.VenueID, ShouldEqual, venue.ID)

		Convey("When two musicians apply", func() {
			b1, err := svc.Apply(ctx, "musician-1", event.ID, service.Application{ProposedRate: 150})
			So(err, ShouldBeNil)
			b2, err := svc.Apply(ctx, "musician-2", event.ID, service.Application{ProposedRate: 120})
			So(err, ShouldBeNil)

			Convey("Then the event shows an application received", func() {
				v, err := svc.View(ctx, "owner-1", venue.ID)
				So(err, ShouldBeNil)
				e, ok := v.Event(event.ID)
				So(ok, ShouldBeTrue)
				So(e.DisplayStatus, ShouldEqual, model.DisplayApplicationReceived)
				So(v.Bookings, ShouldHaveLength, 2)
			})

			Convey("Then a second open application is refused", func() {
				_, err := svc.Apply(ctx, "musician-1", event.ID, service.Application{ProposedRate: 200})
				So(errors.Is(err, service.ErrDuplicateApplication), ShouldBeTrue)
			})

			Convey("And the venue accepts one and rejects the other", func() {
				_, err := svc.Transition(ctx, "owner-1", b1.ID, lifecycle.ActionSelect)
				So(err, ShouldBeNil)
				_, err = svc.Transition(ctx, "owner-1", b2.ID, lifecycle.ActionReject)
				So(err, ShouldBeNil)

				Convey("Then the event shows selected, also after the delayed refetches", func() {
					v, err := svc.View(ctx, "owner-1", venue.ID)
					So(err, ShouldBeNil)
					e, _ := v.Event(event.ID)
					So(e.DisplayStatus, ShouldEqual, model.DisplaySelected)

					time.Sleep(100 * time.Millisecond)
					v, err = svc.View(ctx, "owner-1", venue.ID)
					So(err, ShouldBeNil)
					e, _ = v.Event(event.ID)
					So(e.DisplayStatus, ShouldEqual, model.DisplaySelected)
				})

				Convey("Then the musician can confirm the selected booking", func() {
					b, err := svc.Transition(ctx, "musician-1", b1.ID, lifecycle.ActionConfirm)
					So(err, ShouldBeNil)
					So(b.Status, ShouldEqual, model.BookingConfirmed)

					v, err := svc.View(ctx, "owner-1", venue.ID)
					So(err, ShouldBeNil)
					e, _ := v.Event(event.ID)
					So(e.DisplayStatus, ShouldEqual, model.DisplayConfirmed)
				})

				Convey("Then the musician may not accept on the venue's behalf", func() {
					_, err := svc.Transition(ctx, "musician-2", b2.ID, lifecycle.ActionSelect)
					So(errors.Is(err, reconcile.ErrForbidden), ShouldBeTrue)
				})

				Convey("Then a repeated accept is an illegal transition", func() {
					_, err := svc.Transition(ctx, "owner-1", b1.ID, lifecycle.ActionSelect)
					So(errors.Is(err, lifecycle.ErrIllegalTransition), ShouldBeTrue)
				})
			})
		})

		Convey("When the venue books a musician directly", func() {
			b, err := svc.DirectBooking(ctx, "owner-1", event.ID, service.DirectBooking{MusicianID: "musician-3", ProposedRate: 300, Confirmed: true})
			So(err, ShouldBeNil)

			Convey("Then the booking and the event are confirmed", func() {
				So(b.Status, ShouldEqual, model.BookingConfirmed)
				So(b.VenueID, ShouldEqual, venue.ID)
				v, err := svc.View(ctx, "owner-1", venue.ID)
				So(err, ShouldBeNil)
				e, _ := v.Event(event.ID)
				So(e.DisplayStatus, ShouldEqual, model.DisplayConfirmed)
			})
		})

		Convey("When the event is renamed", func() {
			title := "Saturday Jazz"
			e, err := svc.UpdateEvent(ctx, "owner-1", event.ID, model.EventPatch{Title: &title})

			Convey("Then the new title is stored", func() {
				So(err, ShouldBeNil)
				So(e.Title, ShouldEqual, title)
			})
		})

		Convey("When the same musician applies concurrently", func() {
			const attempts = 8
			errs := make([]error, attempts)
			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Apply(ctx, "musician-5", event.ID, service.Application{ProposedRate: 100})
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one application is created", func() {
				created := 0
				for _, err := range errs {
					if err == nil {
						created++
						continue
					}
					So(errors.Is(err, service.ErrDuplicateApplication), ShouldBeTrue)
				}
				So(created, ShouldEqual, 1)

				v, err := svc.View(ctx, "owner-1", venue.ID)
				So(err, ShouldBeNil)
				So(v.Bookings, ShouldHaveLength, 1)
			})
		})

		Convey("When a rejected musician applies again", func() {
			b, err := svc.Apply(ctx, "musician-6", event.ID, service.Application{ProposedRate: 100})
			So(err, ShouldBeNil)
			_, err = svc.Transition(ctx, "owner-1", b.ID, lifecycle.ActionReject)
			So(err, ShouldBeNil)

			Convey("Then the new application is accepted", func() {
				again, err := svc.Apply(ctx, "musician-6", event.ID, service.Application{ProposedRate: 110})
				So(err, ShouldBeNil)
				So(again.ID, ShouldNotEqual, b.ID)
				So(again.Status, ShouldEqual, model.BookingApplied)
			})
		})

		Convey("When the owner of another venue plays this one", func() {
			_, err := svc.CreateVenue(ctx, "owner-2", "Green Room")
			So(err, ShouldBeNil)
			b, err := svc.Apply(ctx, "owner-2", event.ID, service.Application{ProposedRate: 250})
			So(err, ShouldBeNil)
			_, err = svc.Transition(ctx, "owner-1", b.ID, lifecycle.ActionSelect)
			So(err, ShouldBeNil)

			Convey("Then they can confirm as the musician", func() {
				got, err := svc.Transition(ctx, "owner-2", b.ID, lifecycle.ActionConfirm)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.BookingConfirmed)
			})

			Convey("Then they still may not act as the venue", func() {
				_, err := svc.Transition(ctx, "owner-2", b.ID, lifecycle.ActionReject)
				So(errors.Is(err, reconcile.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When another user reaches for the venue", func() {
			_, err := svc.View(ctx, "stranger", venue.ID)
			So(errors.Is(err, reconcile.ErrForbidden), ShouldBeTrue)

			_, err = svc.CreateEvent(ctx, "stranger", venue.ID, model.EventFields{Title: "x", Date: time.Now()})
			So(errors.Is(err, reconcile.ErrForbidden), ShouldBeTrue)

			_, _, err = svc.Subscribe(ctx, "stranger", venue.ID)
			So(errors.Is(err, reconcile.ErrForbidden), ShouldBeTrue)
		})

		Convey("When the owner subscribes and a musician applies", func() {
			updates, stop, err := svc.Subscribe(ctx, "owner-1", venue.ID)
			So(err, ShouldBeNil)
			defer stop()

			_, err = svc.View(ctx, "owner-1", venue.ID)
			So(err, ShouldBeNil)
			_, err = svc.Apply(ctx, "musician-4", event.ID, service.Application{ProposedRate: 90})
			So(err, ShouldBeNil)

			Convey("Then the subscriber sees the new booking", func() {
				deadline := time.After(2 * time.Second)
				for {
					select {
					case u := <-updates:
						if len(u.View.Bookings) == 1 {
							So(u.View.Bookings[0].MusicianID, ShouldEqual, "musician-4")
							return
						}
					case <-deadline:
						So("no update with the new booking", ShouldBeEmpty)
						return
					}
				}
			})
		})
	})
}

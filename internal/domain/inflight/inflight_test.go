package inflight_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/gigbook/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new guard", t, func() {
		g := inflight.NewGuard()
		So(g.Size(), ShouldEqual, 0)

		Convey("When a booking is acquired", func() {
			So(g.Acquire(ctx, "b1"), ShouldBeNil)

			Convey("Then a second acquire is refused", func() {
				So(g.Acquire(ctx, "b1"), ShouldEqual, inflight.ErrBusy)
				So(g.Size(), ShouldEqual, 1)
			})

			Convey("Then other bookings are unaffected", func() {
				So(g.Acquire(ctx, "b2"), ShouldBeNil)
				So(g.Size(), ShouldEqual, 2)
			})

			Convey("Then it can be acquired again after release", func() {
				g.Release(ctx, "b1")
				So(g.Size(), ShouldEqual, 0)
				So(g.Acquire(ctx, "b1"), ShouldBeNil)
			})
		})

		Convey("When releasing an id that was never acquired", func() {
			Convey("Then nothing changes", func() {
				So(func() { g.Release(ctx, "nope") }, ShouldNotPanic)
				So(g.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded guard", t, func() {
		g := inflight.NewGuard(inflight.WithMaxSize(1))
		So(g.Acquire(ctx, "b1"), ShouldBeNil)

		Convey("Then it refuses ids past capacity", func() {
			So(g.Acquire(ctx, "b2"), ShouldEqual, inflight.ErrFull)
		})
	})

	Convey("Given an unbounded guard", t, func() {
		g := inflight.NewGuard(inflight.WithMaxSize(0))
		failed := 0
		for i := 0; i < 20000; i++ {
			if g.Acquire(ctx, fmt.Sprintf("b%d", i)) != nil {
				failed++
			}
		}
		So(failed, ShouldEqual, 0)
		So(g.Size(), ShouldEqual, 20000)
	})
}

func TestGuardConcurrent(t *testing.T) {
	Convey("Given many goroutines racing for one booking", t, func() {
		g := inflight.NewGuard()
		var won atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.Acquire(context.Background(), "b1") == nil {
					won.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(won.Load(), ShouldEqual, 1)
		})
	})
}

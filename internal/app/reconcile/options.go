package reconcile

import (
	"time"

	"github.com/okian/gigbook/internal/domain/inflight"
	"github.com/okian/gigbook/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithGuard sets the in-flight guard used to refuse concurrent actions.
func WithGuard(g inflight.Guard) Option {
	return func(r *Reconciler) {
		if g != nil {
			r.guard = g
		}
	}
}

// WithScheduler sets where delayed refetch jobs go. Without one, venues
// are only reloaded by Refresh and first use.
func WithScheduler(s Scheduler) Option {
	return func(r *Reconciler) {
		r.scheduler = s
	}
}

// WithInvalidator sets the cross-instance invalidation publisher.
func WithInvalidator(i Invalidator) Option {
	return func(r *Reconciler) {
		r.invalidator = i
	}
}

// WithTransitionPublisher sets the downstream transition publisher.
func WithTransitionPublisher(p TransitionPublisher) Option {
	return func(r *Reconciler) {
		r.publisher = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source for transition stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRefetchDelay sets how long after a commit the venue is refetched.
func WithRefetchDelay(d time.Duration) Option {
	return func(r *Reconciler) {
		if d >= 0 {
			r.refetchDelay = d
		}
	}
}

// WithWriteTimeout bounds each store write and fan-out publish.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber channel size.
func WithSubscriberBuffer(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.subBuffer = n
		}
	}
}

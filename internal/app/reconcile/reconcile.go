// Package reconcile keeps a per-venue cache of events and bookings in step
// with the booking store.
//
// Actions are applied to the cache first and published to subscribers
// right away, then written to the store. A successful write replaces the
// local copy with the stored one and schedules a delayed refetch of the
// whole venue. A failed write restores the pre-action snapshot, publishes
// a notice and also schedules a refetch. Refetch responses carry a sequence
// number and the local version they were issued against; stale responses
// are dropped, and the latest one is reissued so the venue still converges.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gigbook/internal/adapters/mq/broker"
	"github.com/okian/gigbook/internal/adapters/mq/queue"
	"github.com/okian/gigbook/internal/adapters/repository"
	"github.com/okian/gigbook/internal/domain/inflight"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/logger"
	"github.com/okian/gigbook/pkg/metrics"
)

// Default reconciler configuration constants.
const (
	defaultRefetchDelay     = 500 * time.Millisecond
	defaultWriteTimeout     = 5 * time.Second
	defaultSubscriberBuffer = 16
)

// Store is the part of the booking store the reconciler uses.
type Store interface {
	ListEventsForVenue(ctx context.Context, venueID string) ([]model.Event, error)
	ListBookingsForVenue(ctx context.Context, venueID string) ([]model.Booking, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	UpdateEvent(ctx context.Context, id string, p model.EventPatch) (model.Event, error)
	UpdateBooking(ctx context.Context, id string, p model.BookingPatch) (model.Booking, error)
}

// Scheduler accepts delayed refetch jobs.
type Scheduler interface {
	Enqueue(ctx context.Context, j queue.Job) bool
}

// Invalidator tells other instances that a venue changed.
type Invalidator interface {
	Publish(ctx context.Context, venueID string) error
}

// TransitionPublisher announces committed booking transitions downstream.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, ev broker.TransitionEvent) error
}

type venueState struct {
	loaded     bool
	events     map[string]model.Event
	bookings   map[string]model.Booking
	pending    map[string]bool
	version    uint64
	issuedSeq  uint64
	appliedSeq uint64
	subs       map[uint64]chan Update
}

// Reconciler owns the venue caches and runs every mutating action.
type Reconciler struct {
	store       Store
	guard       inflight.Guard
	scheduler   Scheduler
	invalidator Invalidator
	publisher   TransitionPublisher
	reporter    *Reporter
	logger      logger.Logger

	now          func() time.Time
	refetchDelay time.Duration
	writeTimeout time.Duration
	subBuffer    int

	mu       sync.Mutex
	venues   map[string]*venueState
	nextSub  uint64
	subCount int
}

// New creates a reconciler over store.
func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:        store,
		guard:        inflight.NewGuard(),
		logger:       logger.Get().Named("reconciler"),
		now:          func() time.Time { return time.Now().UTC() },
		refetchDelay: defaultRefetchDelay,
		writeTimeout: defaultWriteTimeout,
		subBuffer:    defaultSubscriberBuffer,
		venues:       make(map[string]*venueState),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reporter = NewReporter(r.logger)
	return r
}

// state returns the venue's state, creating it. Callers hold r.mu.
func (r *Reconciler) state(venueID string) *venueState {
	st, ok := r.venues[venueID]
	if !ok {
		st = &venueState{
			events:   make(map[string]model.Event),
			bookings: make(map[string]model.Booking),
			pending:  make(map[string]bool),
			subs:     make(map[uint64]chan Update),
		}
		r.venues[venueID] = st
		metrics.UpdateCachedViews(len(r.venues))
	}
	return st
}

// View returns the venue's current view, loading it on first use.
func (r *Reconciler) View(ctx context.Context, venueID string) (View, error) {
	if err := r.ensureLoaded(ctx, venueID); err != nil {
		return View{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return buildView(venueID, r.state(venueID)), nil
}

func (r *Reconciler) ensureLoaded(ctx context.Context, venueID string) error {
	r.mu.Lock()
	loaded := r.state(venueID).loaded
	r.mu.Unlock()
	if loaded {
		return nil
	}
	return r.Refresh(ctx, venueID)
}

// Refresh reloads the venue from the store now.
func (r *Reconciler) Refresh(ctx context.Context, venueID string) error {
	r.mu.Lock()
	job := r.issue(venueID, r.state(venueID))
	r.mu.Unlock()
	return r.Refetch(ctx, job)
}

// issue hands out the next refetch sequence for the venue. Callers hold r.mu.
func (r *Reconciler) issue(venueID string, st *venueState) queue.Job {
	st.issuedSeq++
	return queue.Job{VenueID: venueID, Seq: st.issuedSeq, Version: st.version}
}

// Refetch loads the venue's collections and applies them unless the
// response is stale: a newer sequence was already applied, or the venue
// changed locally after the job was issued. A venue that was never loaded
// always takes the response. Records with a write in flight keep their
// local copy.
func (r *Reconciler) Refetch(ctx context.Context, job queue.Job) error {
	events, err := r.store.ListEventsForVenue(ctx, job.VenueID)
	if err == nil {
		var bookings []model.Booking
		bookings, err = r.store.ListBookingsForVenue(ctx, job.VenueID)
		if err == nil {
			if retry, ok := r.applyFetched(ctx, job, events, bookings); ok {
				r.schedule(ctx, retry)
			}
			return nil
		}
	}
	r.reporter.RefetchFailed(ctx, Failure{VenueID: job.VenueID, Op: "refetch", Err: err})
	return fmt.Errorf("refetch venue %s: %w", job.VenueID, err)
}

// applyFetched reconciles a refetch result. When the result is discarded
// only because the venue changed locally and no newer refetch is queued, it
// returns a fresh job so the venue still converges on the store.
func (r *Reconciler) applyFetched(ctx context.Context, job queue.Job, events []model.Event, bookings []model.Booking) (queue.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(job.VenueID)
	if st.loaded && (job.Seq <= st.appliedSeq || job.Version != st.version) {
		metrics.RecordRefetch("discarded")
		r.logger.Debug(ctx, "discarding stale refetch",
			logger.String("venue_id", job.VenueID),
			logger.Uint64("seq", job.Seq),
			logger.Uint64("applied_seq", st.appliedSeq),
			logger.Uint64("job_version", job.Version),
			logger.Uint64("version", st.version))
		if job.Seq > st.appliedSeq && job.Seq == st.issuedSeq {
			return r.issue(job.VenueID, st), true
		}
		return queue.Job{}, false
	}

	nextEvents := make(map[string]model.Event, len(events))
	for _, e := range events {
		nextEvents[e.ID] = e
	}
	nextBookings := make(map[string]model.Booking, len(bookings))
	for _, b := range bookings {
		nextBookings[b.ID] = b.Clone()
	}
	for id := range st.pending {
		if e, ok := st.events[id]; ok {
			nextEvents[id] = e
		}
		if b, ok := st.bookings[id]; ok {
			nextBookings[id] = b
		}
	}

	st.events, st.bookings = nextEvents, nextBookings
	st.appliedSeq = job.Seq
	st.loaded = true
	st.version++
	metrics.RecordRefetch("applied")
	r.publish(job.VenueID, st, ReasonRefetch, nil)
	return queue.Job{}, false
}

// Accept selects an applied booking for the venue.
func (r *Reconciler) Accept(ctx context.Context, venueID, bookingID string) (model.Booking, error) {
	return r.Transition(ctx, venueID, bookingID, lifecycle.ActionSelect)
}

// Reject cancels an applied booking.
func (r *Reconciler) Reject(ctx context.Context, venueID, bookingID string) (model.Booking, error) {
	return r.Transition(ctx, venueID, bookingID, lifecycle.ActionReject)
}

// Transition runs action on the booking optimistically. It returns a
// *lifecycle.TransitionError without touching anything when the action is
// illegal, and a *RemoteWriteError or *NotFoundError after rolling back
// when the store refuses the write.
func (r *Reconciler) Transition(ctx context.Context, venueID, bookingID string, action lifecycle.Action) (model.Booking, error) {
	op := string(action)
	reject := func(err error) (model.Booking, error) {
		r.reporter.Rejected(ctx, Failure{VenueID: venueID, Op: op, RecordID: bookingID, Err: err})
		return model.Booking{}, err
	}

	if err := r.ensureLoaded(ctx, venueID); err != nil {
		return model.Booking{}, err
	}
	if err := r.lookupBooking(ctx, venueID, bookingID); err != nil {
		return reject(err)
	}
	if err := r.acquire(ctx, bookingID); err != nil {
		return reject(err)
	}
	defer r.guard.Release(ctx, bookingID)

	r.mu.Lock()
	st := r.state(venueID)
	before, ok := st.bookings[bookingID]
	if !ok {
		r.mu.Unlock()
		return reject(&NotFoundError{Kind: "booking", ID: bookingID})
	}
	before = before.Clone()
	next, err := lifecycle.Apply(before, lifecycle.Command{Action: action, At: r.now(), VenueID: venueID})
	if err != nil {
		r.mu.Unlock()
		return reject(err)
	}
	st.bookings[bookingID] = next
	st.pending[bookingID] = true
	st.version++
	r.publish(venueID, st, ReasonOptimistic, nil)
	r.mu.Unlock()

	stored, err := r.writeBooking(ctx, op, bookingID, lifecycle.Diff(before, next))

	r.mu.Lock()
	st = r.state(venueID)
	delete(st.pending, bookingID)
	if err != nil {
		werr := writeError(op, "booking", bookingID, err)
		if errors.Is(werr, ErrNotFound) {
			delete(st.bookings, bookingID)
		} else {
			st.bookings[bookingID] = before
		}
		st.version++
		notice := r.reporter.WriteFailed(ctx, Failure{VenueID: venueID, Op: op, RecordID: bookingID, Err: werr})
		r.publish(venueID, st, ReasonRollback, &notice)
		resync := r.issue(venueID, st)
		r.mu.Unlock()
		r.schedule(ctx, resync)
		return model.Booking{}, werr
	}
	st.bookings[bookingID] = stored.Clone()
	st.version++
	r.publish(venueID, st, ReasonCommitted, nil)
	job := r.issue(venueID, st)
	r.mu.Unlock()

	metrics.RecordTransitionApplied(op)
	r.schedule(ctx, job)
	r.fanout(ctx, Failure{VenueID: venueID, Op: op, RecordID: bookingID}, broker.NewTransitionEvent(op, before, stored))
	return stored, nil
}

// UpdateEvent patches an event optimistically, with the same rollback
// behaviour as Transition.
func (r *Reconciler) UpdateEvent(ctx context.Context, venueID, eventID string, patch model.EventPatch) (model.Event, error) {
	const op = "update_event"
	reject := func(err error) (model.Event, error) {
		r.reporter.Rejected(ctx, Failure{VenueID: venueID, Op: op, RecordID: eventID, Err: err})
		return model.Event{}, err
	}

	if err := patch.Validate(); err != nil {
		return reject(err)
	}
	if err := r.ensureLoaded(ctx, venueID); err != nil {
		return model.Event{}, err
	}
	if err := r.lookupEvent(ctx, venueID, eventID); err != nil {
		return reject(err)
	}
	if err := r.acquire(ctx, eventID); err != nil {
		return reject(err)
	}
	defer r.guard.Release(ctx, eventID)

	r.mu.Lock()
	st := r.state(venueID)
	before, ok := st.events[eventID]
	if !ok {
		r.mu.Unlock()
		return reject(&NotFoundError{Kind: "event", ID: eventID})
	}
	if patch.Empty() {
		r.mu.Unlock()
		return before, nil
	}
	next := patch.ApplyTo(before)
	next.UpdatedAt = r.now()
	st.events[eventID] = next
	st.pending[eventID] = true
	st.version++
	r.publish(venueID, st, ReasonOptimistic, nil)
	r.mu.Unlock()

	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	stored, err := r.store.UpdateEvent(wctx, eventID, patch)
	cancel()
	observeWrite(op, start, err)

	r.mu.Lock()
	st = r.state(venueID)
	delete(st.pending, eventID)
	if err != nil {
		werr := writeError(op, "event", eventID, err)
		if errors.Is(werr, ErrNotFound) {
			delete(st.events, eventID)
		} else {
			st.events[eventID] = before
		}
		st.version++
		notice := r.reporter.WriteFailed(ctx, Failure{VenueID: venueID, Op: op, RecordID: eventID, Err: werr})
		r.publish(venueID, st, ReasonRollback, &notice)
		resync := r.issue(venueID, st)
		r.mu.Unlock()
		r.schedule(ctx, resync)
		return model.Event{}, werr
	}
	st.events[eventID] = stored
	st.version++
	r.publish(venueID, st, ReasonCommitted, nil)
	job := r.issue(venueID, st)
	r.mu.Unlock()

	r.schedule(ctx, job)
	r.fanout(ctx, Failure{VenueID: venueID, Op: op, RecordID: eventID}, broker.TransitionEvent{})
	return stored, nil
}

// AddEvent records an event created directly in the store.
func (r *Reconciler) AddEvent(ctx context.Context, e model.Event) {
	r.added(ctx, e.VenueID, e.ID, func(st *venueState) { st.events[e.ID] = e })
}

// AddBooking records a booking created directly in the store. venueID is
// the venue that owns the booking's event.
func (r *Reconciler) AddBooking(ctx context.Context, venueID string, b model.Booking) {
	b = b.Clone()
	r.added(ctx, venueID, b.ID, func(st *venueState) { st.bookings[b.ID] = b })
}

func (r *Reconciler) added(ctx context.Context, venueID, id string, put func(*venueState)) {
	r.mu.Lock()
	st := r.state(venueID)
	if !st.loaded {
		r.mu.Unlock()
		r.fanout(ctx, Failure{VenueID: venueID, Op: "create", RecordID: id}, broker.TransitionEvent{})
		return
	}
	put(st)
	st.version++
	r.publish(venueID, st, ReasonCreated, nil)
	job := r.issue(venueID, st)
	r.mu.Unlock()

	r.schedule(ctx, job)
	r.fanout(ctx, Failure{VenueID: venueID, Op: "create", RecordID: id}, broker.TransitionEvent{})
}

// Invalidate schedules a refetch for a cached venue. It is driven by
// invalidations from other instances; unknown venues are ignored.
func (r *Reconciler) Invalidate(ctx context.Context, venueID string) {
	r.mu.Lock()
	st, ok := r.venues[venueID]
	if !ok || !st.loaded {
		r.mu.Unlock()
		return
	}
	job := r.issue(venueID, st)
	r.mu.Unlock()
	r.schedule(ctx, job)
}

// Subscribe returns a channel of the venue's updates and a func that ends
// the subscription. A slow subscriber loses its oldest undelivered update.
func (r *Reconciler) Subscribe(venueID string) (<-chan Update, func()) {
	r.mu.Lock()
	st := r.state(venueID)
	r.nextSub++
	id := r.nextSub
	ch := make(chan Update, r.subBuffer)
	st.subs[id] = ch
	r.subCount++
	metrics.UpdateSubscribers(r.subCount)
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := st.subs[id]; ok {
				delete(st.subs, id)
				close(ch)
				r.subCount--
				metrics.UpdateSubscribers(r.subCount)
			}
		})
	}
}

// Stats reports cache and subscription counts.
func (r *Reconciler) Stats() (venues, subscribers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.venues), r.subCount
}

// Close ends every subscription.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.venues {
		for id, ch := range st.subs {
			delete(st.subs, id)
			close(ch)
		}
	}
	r.subCount = 0
	metrics.UpdateSubscribers(0)
}

// publish sends the current view to every subscriber. Callers hold r.mu.
func (r *Reconciler) publish(venueID string, st *venueState, reason Reason, notice *Notice) {
	if len(st.subs) == 0 {
		return
	}
	u := Update{Reason: reason, View: buildView(venueID, st), Notice: notice, At: r.now()}
	for _, ch := range st.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// lookupBooking makes sure bookingID is cached for the venue, fetching it
// when it was created after the last load.
func (r *Reconciler) lookupBooking(ctx context.Context, venueID, bookingID string) error {
	r.mu.Lock()
	st := r.state(venueID)
	_, ok := st.bookings[bookingID]
	r.mu.Unlock()
	if ok {
		return nil
	}

	b, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Kind: "booking", ID: bookingID, Err: err}
		}
		return fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	owned := b.VenueID == venueID
	if !owned {
		r.mu.Lock()
		_, owned = st.events[b.EventID]
		r.mu.Unlock()
	}
	if !owned {
		e, err := r.store.GetEvent(ctx, b.EventID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load event %s: %w", b.EventID, err)
		}
		owned = err == nil && e.VenueID == venueID
	}
	if !owned {
		return ErrForbidden
	}

	r.mu.Lock()
	if _, exists := st.bookings[bookingID]; !exists {
		st.bookings[bookingID] = b
		st.version++
	}
	r.mu.Unlock()
	return nil
}

// lookupEvent makes sure eventID is cached for the venue.
func (r *Reconciler) lookupEvent(ctx context.Context, venueID, eventID string) error {
	r.mu.Lock()
	st := r.state(venueID)
	_, ok := st.events[eventID]
	r.mu.Unlock()
	if ok {
		return nil
	}

	e, err := r.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Kind: "event", ID: eventID, Err: err}
		}
		return fmt.Errorf("load event %s: %w", eventID, err)
	}
	if e.VenueID != venueID {
		return ErrForbidden
	}

	r.mu.Lock()
	if _, exists := st.events[eventID]; !exists {
		st.events[eventID] = e
		st.version++
	}
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) acquire(ctx context.Context, id string) error {
	err := r.guard.Acquire(ctx, id)
	if errors.Is(err, inflight.ErrBusy) {
		return ErrActionInFlight
	}
	return err
}

func (r *Reconciler) writeBooking(ctx context.Context, op, id string, p model.BookingPatch) (model.Booking, error) {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()
	b, err := r.store.UpdateBooking(wctx, id, p)
	observeWrite(op, start, err)
	return b, err
}

func observeWrite(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordRemoteWriteLatency(op, outcome, float64(time.Since(start).Microseconds())/1000)
}

func writeError(op, kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id, Err: err}
	}
	return &RemoteWriteError{Op: op, ID: id, Err: err}
}

func (r *Reconciler) schedule(ctx context.Context, job queue.Job) {
	if r.scheduler == nil {
		return
	}
	job.Due = r.now().Add(r.refetchDelay)
	if !r.scheduler.Enqueue(context.WithoutCancel(ctx), job) {
		r.reporter.ScheduleFailed(ctx, job.VenueID)
	}
}

// fanout tells other instances about the change and, for booking
// transitions, publishes ev downstream. Failures are reported, not
// returned: the store write already succeeded.
func (r *Reconciler) fanout(ctx context.Context, f Failure, ev broker.TransitionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if r.invalidator != nil {
		if err := r.invalidator.Publish(ctx, f.VenueID); err != nil {
			f.Err = err
			r.reporter.FanoutFailed(ctx, "redis", f)
		}
	}
	if r.publisher != nil && ev.BookingID != "" {
		if err := r.publisher.PublishTransition(ctx, ev); err != nil {
			f.Err = err
			r.reporter.FanoutFailed(ctx, "amqp", f)
		}
	}
}

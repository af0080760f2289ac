// Package service wires the booking store, the reconciler and the refetch
// workers together and implements the dependencies required by the HTTP
// API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/okian/gigbook/internal/adapters/mq/broker"
	"github.com/okian/gigbook/internal/adapters/mq/queue"
	"github.com/okian/gigbook/internal/adapters/mq/redisbus"
	"github.com/okian/gigbook/internal/adapters/mq/worker"
	"github.com/okian/gigbook/internal/adapters/repository"
	"github.com/okian/gigbook/internal/adapters/repository/postgres"
	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/logger"
	"github.com/okian/gigbook/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// musicianActions are the actions a booking's musician may take on it.
var musicianActions = map[lifecycle.Action]bool{
	lifecycle.ActionConfirm:       true,
	lifecycle.ActionCancel:        true,
	lifecycle.ActionRequestCancel: true,
}

// Service implements the API dependencies for the booking system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	rec       *reconcile.Reconciler
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	redis     *redis.Client
	bus       *redisbus.Bus
	publisher *broker.Publisher
	closers   []func() error
	stopBus   context.CancelFunc

	// Configuration
	storeDriver  string
	postgresDSN  string
	redisAddr    string
	amqpURL      string
	workerCount  int
	queueSize    int
	refetchDelay time.Duration
	writeTimeout time.Duration

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a store instead of building one from the driver.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithStoreDriver selects the store built at Start: memory or postgres.
func WithStoreDriver(driver string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = strings.ToLower(driver)
		}
	}
}

// WithPostgresDSN sets the connection string for the postgres driver.
func WithPostgresDSN(dsn string) Option {
	return func(s *Service) {
		s.postgresDSN = dsn
	}
}

// WithRedisAddr enables cross-instance invalidation through redis.
func WithRedisAddr(addr string) Option {
	return func(s *Service) {
		s.redisAddr = addr
	}
}

// WithAMQPURL enables publishing committed transitions to RabbitMQ.
func WithAMQPURL(url string) Option {
	return func(s *Service) {
		s.amqpURL = url
	}
}

// WithWorkerCount sets the number of refetch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the refetch queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefetchDelay sets how long after a commit the venue is refetched.
func WithRefetchDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refetchDelay = d
		}
	}
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:  DriverMemory,
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		refetchDelay: 500 * time.Millisecond,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the configured components and starts the refetch workers.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	defer func() {
		if err != nil {
			s.closeAll(ctx)
		}
	}()

	s.logger.Info(ctx, "starting booking service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}

	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	recOpts := []reconcile.Option{
		reconcile.WithScheduler(s.queue),
		reconcile.WithRefetchDelay(s.refetchDelay),
		reconcile.WithWriteTimeout(s.writeTimeout),
		reconcile.WithLogger(s.logger.Named("reconciler")),
	}

	if s.redisAddr != "" {
		client, err := redisbus.Dial(ctx, s.redisAddr)
		if err != nil {
			return err
		}
		s.redis = client
		s.closers = append(s.closers, client.Close)
		s.bus = redisbus.New(client, redisbus.WithLogger(s.logger.Named("redisbus")))
		recOpts = append(recOpts, reconcile.WithInvalidator(s.bus))
		s.logger.Info(ctx, "redis invalidation enabled", logger.String("addr", s.redisAddr))
	}
	if s.amqpURL != "" {
		pub, err := broker.Dial(s.amqpURL)
		if err != nil {
			return err
		}
		s.publisher = pub
		s.closers = append(s.closers, pub.Close)
		recOpts = append(recOpts, reconcile.WithTransitionPublisher(pub))
		s.logger.Info(ctx, "transition publishing enabled")
	}

	s.rec = reconcile.New(s.store, recOpts...)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.rec, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	if s.bus != nil {
		busCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if err := s.bus.Subscribe(busCtx, s.rec.Invalidate); err != nil {
			cancel()
			_ = s.pool.Shutdown(ctx)
			return err
		}
		s.stopBus = cancel
	}

	s.started = true
	metrics.UpdateQueueCapacity(s.queueSize)
	s.logger.Info(ctx, "booking service started",
		logger.String("store", s.storeDriver),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("refetchDelay", s.refetchDelay),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	switch s.storeDriver {
	case DriverMemory:
		mem := repository.NewMemStore(ctx)
		s.store = mem
		s.closers = append(s.closers, mem.Close)
	case DriverPostgres:
		db, err := postgres.Open(ctx, s.postgresDSN)
		if err != nil {
			return err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
		pg := postgres.New(db)
		s.store = pg
		s.closers = append(s.closers, pg.Close)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, s.storeDriver)
	}
	s.logger.Info(ctx, "store ready", logger.String("driver", s.storeDriver))
	return nil
}

// closeAll releases external resources in reverse order of acquisition.
func (s *Service) closeAll(ctx context.Context) {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn(ctx, "error closing redis subscription", logger.Error(err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn(ctx, "error closing resource", logger.Error(err))
		}
	}
	s.closers = nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping booking service...")

	if s.stopBus != nil {
		s.stopBus()
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.rec.Close()
	s.closeAll(ctx)

	s.started = false
	s.logger.Info(ctx, "booking service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// CreateVenue creates a venue owned by userID.
func (s *Service) CreateVenue(ctx context.Context, userID, name string) (model.Venue, error) {
	if err := s.ready(); err != nil {
		return model.Venue{}, err
	}
	v, err := s.store.CreateVenue(ctx, model.VenueFields{Name: name, OwnerID: userID})
	if err != nil {
		return model.Venue{}, fmt.Errorf("create venue: %w", err)
	}
	s.logger.Info(ctx, "venue created", logger.String("venue_id", v.ID), logger.String("owner", userID))
	return v, nil
}

// VenueByOwner returns the venue owned by userID, or ErrNoVenue.
func (s *Service) VenueByOwner(ctx context.Context, userID string) (model.Venue, error) {
	if err := s.ready(); err != nil {
		return model.Venue{}, err
	}
	v, err := s.store.VenueByOwner(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Venue{}, ErrNoVenue
	}
	if err != nil {
		return model.Venue{}, fmt.Errorf("resolve venue for %s: %w", userID, err)
	}
	return v, nil
}

// authorize checks that userID owns venueID.
func (s *Service) authorize(ctx context.Context, userID, venueID string) error {
	v, err := s.VenueByOwner(ctx, userID)
	if errors.Is(err, ErrNoVenue) {
		return reconcile.ErrForbidden
	}
	if err != nil {
		return err
	}
	if v.ID != venueID {
		return reconcile.ErrForbidden
	}
	return nil
}

// View returns the venue's events and bookings with derived statuses.
func (s *Service) View(ctx context.Context, userID, venueID string) (reconcile.View, error) {
	if err := s.authorize(ctx, userID, venueID); err != nil {
		return reconcile.View{}, err
	}
	return s.rec.View(ctx, venueID)
}

// Subscribe streams the venue's view updates. The returned func ends the
// subscription.
func (s *Service) Subscribe(ctx context.Context, userID, venueID string) (<-chan reconcile.Update, func(), error) {
	if err := s.authorize(ctx, userID, venueID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.rec.Subscribe(venueID)
	return ch, cancel, nil
}

// CreateEvent adds an event to a venue owned by userID.
func (s *Service) CreateEvent(ctx context.Context, userID, venueID string, f model.EventFields) (model.Event, error) {
	if err := s.authorize(ctx, userID, venueID); err != nil {
		return model.Event{}, err
	}
	f.VenueID = venueID
	e, err := s.store.CreateEvent(ctx, f)
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.rec.AddEvent(ctx, e)
	return e, nil
}

// UpdateEvent patches an event of the caller's venue.
func (s *Service) UpdateEvent(ctx context.Context, userID, eventID string, p model.EventPatch) (model.Event, error) {
	v, err := s.VenueByOwner(ctx, userID)
	if errors.Is(err, ErrNoVenue) {
		return model.Event{}, reconcile.ErrForbidden
	}
	if err != nil {
		return model.Event{}, err
	}
	return s.rec.UpdateEvent(ctx, v.ID, eventID, p)
}

// Application is a musician's request to play an event.
type Application struct {
	MusicianID    string  `json:"musician_id,omitempty"`
	ProposedRate  float64 `json:"proposed_rate"`
	MusicianPitch string  `json:"musician_pitch,omitempty"`
}

// Apply creates an applied booking for eventID on behalf of userID. The
// musician defaults to the caller.
func (s *Service) Apply(ctx context.Context, userID, eventID string, a Application) (model.Booking, error) {
	if err := s.ready(); err != nil {
		return model.Booking{}, err
	}
	e, err := s.event(ctx, eventID)
	if err != nil {
		return model.Booking{}, err
	}
	musician := a.MusicianID
	if musician == "" {
		musician = userID
	}

	b, err := s.store.CreateBooking(ctx, model.BookingFields{
		EventID:       e.ID,
		MusicianID:    musician,
		BookedBy:      userID,
		Status:        model.BookingApplied,
		ProposedRate:  a.ProposedRate,
		MusicianPitch: a.MusicianPitch,
	})
	if errors.Is(err, repository.ErrConflict) {
		return model.Booking{}, ErrDuplicateApplication
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("create application: %w", err)
	}
	s.rec.AddBooking(ctx, e.VenueID, b)
	return b, nil
}

// DirectBooking is a venue booking a musician without an application.
type DirectBooking struct {
	MusicianID   string  `json:"musician_id"`
	ProposedRate float64 `json:"proposed_rate"`
	Confirmed    bool    `json:"confirmed"`
}

// DirectBooking books a musician onto an event of the caller's venue. The
// booking starts selected, or confirmed when requested.
func (s *Service) DirectBooking(ctx context.Context, userID, eventID string, d DirectBooking) (model.Booking, error) {
	v, err := s.VenueByOwner(ctx, userID)
	if errors.Is(err, ErrNoVenue) {
		return model.Booking{}, reconcile.ErrForbidden
	}
	if err != nil {
		return model.Booking{}, err
	}
	e, err := s.event(ctx, eventID)
	if err != nil {
		return model.Booking{}, err
	}
	if e.VenueID != v.ID {
		return model.Booking{}, reconcile.ErrForbidden
	}

	st := model.BookingSelected
	if d.Confirmed {
		st = model.BookingConfirmed
	}
	b, err := s.store.CreateBooking(ctx, model.BookingFields{
		EventID:      e.ID,
		MusicianID:   d.MusicianID,
		VenueID:      v.ID,
		BookedBy:     userID,
		Status:       st,
		ProposedRate: d.ProposedRate,
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	s.rec.AddBooking(ctx, v.ID, b)
	return b, nil
}

// Transition runs action on a booking. Venue owners act on bookings of
// their venue; musicians may confirm or cancel bookings they made. An
// owner acting on a booking of another venue is treated as a musician.
func (s *Service) Transition(ctx context.Context, userID, bookingID string, action lifecycle.Action) (model.Booking, error) {
	v, err := s.VenueByOwner(ctx, userID)
	switch {
	case err == nil:
		b, err := s.rec.Transition(ctx, v.ID, bookingID, action)
		if !errors.Is(err, reconcile.ErrForbidden) {
			return b, err
		}
	case !errors.Is(err, ErrNoVenue):
		return model.Booking{}, err
	}

	if !musicianActions[action] {
		return model.Booking{}, reconcile.ErrForbidden
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Booking{}, &reconcile.NotFoundError{Kind: "booking", ID: bookingID, Err: err}
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if b.BookedBy != userID && b.MusicianID != userID {
		return model.Booking{}, reconcile.ErrForbidden
	}
	e, err := s.event(ctx, b.EventID)
	if err != nil {
		return model.Booking{}, err
	}
	return s.rec.Transition(ctx, e.VenueID, bookingID, action)
}

func (s *Service) event(ctx context.Context, id string) (model.Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Event{}, &reconcile.NotFoundError{Kind: "event", ID: id, Err: err}
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("load event %s: %w", id, err)
	}
	return e, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"storeDriver": s.storeDriver,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"redis":       s.bus != nil,
		"amqp":        s.publisher != nil,
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		venues, subscribers := s.rec.Stats()
		stats["queueLength"] = queueLen
		stats["cachedVenues"] = venues
		stats["subscribers"] = subscribers

		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

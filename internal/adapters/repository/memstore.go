package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/metrics"
)

const memDriver = "memory"

// MemStore is an in-memory Store. It backs the default configuration and
// the tests. All reads return copies.
type MemStore struct {
	mu       sync.RWMutex
	venues   map[string]model.Venue
	byOwner  map[string]string // owner id -> venue id
	events   map[string]model.Event
	bookings map[string]model.Booking

	metricsUpdateInterval time.Duration
	now                   func() time.Time
	newID                 func() string

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an in-memory store with configuration options.
// The background metrics updater stops when ctx is done or Close is called.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		venues:                make(map[string]model.Venue),
		byOwner:               make(map[string]string),
		events:                make(map[string]model.Event),
		bookings:              make(map[string]model.Booking),
		metricsUpdateInterval: 5 * time.Second,
		now:                   func() time.Time { return time.Now().UTC() },
		newID:                 uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// startMetricsUpdater publishes record counts at the configured interval.
func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemStore) updateMetrics() {
	s.mu.RLock()
	venues, events, bookings := len(s.venues), len(s.events), len(s.bookings)
	s.mu.RUnlock()

	metrics.UpdateStoreRecords("venue", venues)
	metrics.UpdateStoreRecords("event", events)
	metrics.UpdateStoreRecords("booking", bookings)
}

// Close stops the background metrics updater.
func (s *MemStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(memDriver, op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemStore) CreateVenue(ctx context.Context, f model.VenueFields) (model.Venue, error) {
	defer observe("create_venue", time.Now())
	if err := f.Validate(); err != nil {
		return model.Venue{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byOwner[f.OwnerID]; taken {
		return model.Venue{}, fmt.Errorf("venue for owner %s: %w", f.OwnerID, ErrConflict)
	}
	v := model.Venue{ID: s.newID(), Name: f.Name, OwnerID: f.OwnerID, CreatedAt: s.now()}
	s.venues[v.ID] = v
	s.byOwner[v.OwnerID] = v.ID
	return v, nil
}

func (s *MemStore) GetVenue(ctx context.Context, id string) (model.Venue, error) {
	defer observe("get_venue", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return model.Venue{}, fmt.Errorf("venue %s: %w", id, ErrNotFound)
	}
	return v, nil
}

func (s *MemStore) VenueByOwner(ctx context.Context, userID string) (model.Venue, error) {
	defer observe("venue_by_owner", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[userID]
	if !ok {
		return model.Venue{}, fmt.Errorf("venue for owner %s: %w", userID, ErrNotFound)
	}
	return s.venues[id], nil
}

func (s *MemStore) CreateEvent(ctx context.Context, f model.EventFields) (model.Event, error) {
	defer observe("create_event", time.Now())
	if err := f.Validate(); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[f.VenueID]; !ok {
		return model.Event{}, fmt.Errorf("venue %s: %w", f.VenueID, ErrNotFound)
	}
	now := s.now()
	e := model.Event{
		ID:          s.newID(),
		VenueID:     f.VenueID,
		MusicianID:  f.MusicianID,
		Title:       f.Title,
		Date:        f.Date,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Capacity:    f.Capacity,
		TicketPrice: f.TicketPrice,
		Status:      f.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.events[e.ID] = e
	return e, nil
}

func (s *MemStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	defer observe("get_event", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemStore) UpdateEvent(ctx context.Context, id string, p model.EventPatch) (model.Event, error) {
	defer observe("update_event", time.Now())
	if err := p.Validate(); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	e = p.ApplyTo(e)
	e.UpdatedAt = s.now()
	s.events[id] = e
	return e, nil
}

func (s *MemStore) ListEventsForVenue(ctx context.Context, venueID string) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0)
	for _, e := range s.events {
		if e.VenueID == venueID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) CreateBooking(ctx context.Context, f model.BookingFields) (model.Booking, error) {
	defer observe("create_booking", time.Now())
	if err := f.Validate(); err != nil {
		return model.Booking{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[f.EventID]; !ok {
		return model.Booking{}, fmt.Errorf("event %s: %w", f.EventID, ErrNotFound)
	}
	// At most one open booking per musician and event.
	for _, other := range s.bookings {
		if other.EventID == f.EventID && other.MusicianID == f.MusicianID && !other.Status.Terminal() {
			return model.Booking{}, fmt.Errorf("open booking for musician %s on event %s: %w", f.MusicianID, f.EventID, ErrConflict)
		}
	}
	now := s.now()
	b := model.Booking{
		ID:            s.newID(),
		EventID:       f.EventID,
		MusicianID:    f.MusicianID,
		VenueID:       f.VenueID,
		BookedBy:      f.BookedBy,
		Status:        f.Status,
		ProposedRate:  f.ProposedRate,
		MusicianPitch: f.MusicianPitch,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	switch f.Status {
	case model.BookingApplied:
		b.AppliedAt = &now
	case model.BookingSelected:
		b.SelectedAt = &now
	case model.BookingConfirmed:
		b.SelectedAt = &now
		b.ConfirmedAt = &now
	}
	s.bookings[b.ID] = b
	return b.Clone(), nil
}

func (s *MemStore) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	defer observe("get_booking", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *MemStore) UpdateBooking(ctx context.Context, id string, p model.BookingPatch) (model.Booking, error) {
	defer observe("update_booking", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	b = p.ApplyTo(b)
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return b.Clone(), nil
}

func (s *MemStore) ListBookingsForVenue(ctx context.Context, venueID string) ([]model.Booking, error) {
	defer observe("list_bookings", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Booking, 0)
	if venueID == "" {
		return out, nil
	}
	for _, b := range s.bookings {
		if b.VenueID == venueID || s.events[b.EventID].VenueID == venueID {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

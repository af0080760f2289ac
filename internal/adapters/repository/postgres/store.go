// Package postgres implements the booking store on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/okian/gigbook/internal/adapters/repository"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/metrics"
)

const driver = "postgres"

// Store is a repository.Store backed by PostgreSQL.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// New wraps an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Microseconds())/1000)
}

const venueColumns = `id, name, owner_id, created_at`

func scanVenue(row interface{ Scan(...any) error }) (model.Venue, error) {
	var v model.Venue
	err := row.Scan(&v.ID, &v.Name, &v.OwnerID, &v.CreatedAt)
	return v, err
}

func (s *Store) CreateVenue(ctx context.Context, f model.VenueFields) (model.Venue, error) {
	defer observe("create_venue", time.Now())
	if err := f.Validate(); err != nil {
		return model.Venue{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO venues (id, name, owner_id, created_at) VALUES ($1, $2, $3, $4)
		 RETURNING `+venueColumns,
		s.newID(), f.Name, f.OwnerID, s.now())
	v, err := scanVenue(row)
	if err != nil {
		return model.Venue{}, mapError("create venue", err)
	}
	return v, nil
}

func (s *Store) GetVenue(ctx context.Context, id string) (model.Venue, error) {
	defer observe("get_venue", time.Now())
	v, err := scanVenue(s.db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if err != nil {
		return model.Venue{}, mapError("venue "+id, err)
	}
	return v, nil
}

func (s *Store) VenueByOwner(ctx context.Context, userID string) (model.Venue, error) {
	defer observe("venue_by_owner", time.Now())
	v, err := scanVenue(s.db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE owner_id = $1`, userID))
	if err != nil {
		return model.Venue{}, mapError("venue for owner "+userID, err)
	}
	return v, nil
}

const eventColumns = `id, venue_id, musician_id, title, event_date, start_time, end_time,
	capacity, ticket_price, status, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var (
		e                            model.Event
		musician, startTime, endTime sql.NullString
		status                       string
	)
	if err := row.Scan(&e.ID, &e.VenueID, &musician, &e.Title, &e.Date, &startTime, &endTime,
		&e.Capacity, &e.TicketPrice, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.Event{}, err
	}
	st, err := model.ParseEventStatus(status)
	if err != nil {
		return model.Event{}, err
	}
	e.MusicianID, e.StartTime, e.EndTime, e.Status = musician.String, startTime.String, endTime.String, st
	return e, nil
}

func (s *Store) CreateEvent(ctx context.Context, f model.EventFields) (model.Event, error) {
	defer observe("create_event", time.Now())
	if err := f.Validate(); err != nil {
		return model.Event{}, err
	}
	now := s.now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO events (id, venue_id, musician_id, title, event_date, start_time, end_time,
			capacity, ticket_price, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 RETURNING `+eventColumns,
		s.newID(), f.VenueID, nullString(f.MusicianID), f.Title, f.Date, nullString(f.StartTime),
		nullString(f.EndTime), f.Capacity, f.TicketPrice, string(f.Status), now)
	e, err := scanEvent(row)
	if err != nil {
		return model.Event{}, mapError("create event", err)
	}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	defer observe("get_event", time.Now())
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return model.Event{}, mapError("event "+id, err)
	}
	return e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id string, p model.EventPatch) (model.Event, error) {
	defer observe("update_event", time.Now())
	if err := p.Validate(); err != nil {
		return model.Event{}, err
	}
	var status any
	if p.Status != nil {
		status = string(*p.Status)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE events SET
			title        = COALESCE($2, title),
			event_date   = COALESCE($3, event_date),
			start_time   = COALESCE($4, start_time),
			end_time     = COALESCE($5, end_time),
			capacity     = COALESCE($6, capacity),
			ticket_price = COALESCE($7, ticket_price),
			status       = COALESCE($8, status),
			musician_id  = COALESCE($9, musician_id),
			updated_at   = $10
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, p.Title, p.Date, p.StartTime, p.EndTime, p.Capacity, p.TicketPrice, status, p.MusicianID, s.now())
	e, err := scanEvent(row)
	if err != nil {
		return model.Event{}, mapError("event "+id, err)
	}
	return e, nil
}

func (s *Store) ListEventsForVenue(ctx context.Context, venueID string) ([]model.Event, error) {
	defer observe("list_events", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue_id = $1 ORDER BY event_date, id`, venueID)
	if err != nil {
		return nil, mapError("list events", err)
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapError("scan event", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list events", err)
	}
	return out, nil
}

const bookingColumns = `b.id, b.event_id, b.musician_id, b.venue_id, b.booked_by, b.status,
	b.proposed_rate, b.musician_pitch, b.applied_at, b.selected_at, b.confirmed_at,
	b.cancelled_at, b.completed_at, b.created_at, b.updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b                            model.Booking
		venue, pitch                 sql.NullString
		status                       string
		applied, selected, confirmed sql.NullTime
		cancelled, completed         sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.EventID, &b.MusicianID, &venue, &b.BookedBy, &status,
		&b.ProposedRate, &pitch, &applied, &selected, &confirmed,
		&cancelled, &completed, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	st, err := model.ParseBookingStatus(status)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = st
	b.VenueID, b.MusicianPitch = venue.String, pitch.String
	b.AppliedAt = timePtr(applied)
	b.SelectedAt = timePtr(selected)
	b.ConfirmedAt = timePtr(confirmed)
	b.CancelledAt = timePtr(cancelled)
	b.CompletedAt = timePtr(completed)
	return b, nil
}

func (s *Store) CreateBooking(ctx context.Context, f model.BookingFields) (model.Booking, error) {
	defer observe("create_booking", time.Now())
	if err := f.Validate(); err != nil {
		return model.Booking{}, err
	}
	now := s.now()
	var applied, selected, confirmed *time.Time
	switch f.Status {
	case model.BookingApplied:
		applied = &now
	case model.BookingSelected:
		selected = &now
	case model.BookingConfirmed:
		selected, confirmed = &now, &now
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO bookings AS b (id, event_id, musician_id, venue_id, booked_by, status,
			proposed_rate, musician_pitch, applied_at, selected_at, confirmed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 RETURNING `+bookingColumns,
		s.newID(), f.EventID, f.MusicianID, nullString(f.VenueID), f.BookedBy, string(f.Status),
		f.ProposedRate, nullString(f.MusicianPitch), applied, selected, confirmed, now)
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapError("create booking", err)
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	defer observe("get_booking", time.Now())
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if err != nil {
		return model.Booking{}, mapError("booking "+id, err)
	}
	return b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, id string, p model.BookingPatch) (model.Booking, error) {
	defer observe("update_booking", time.Now())
	var status any
	if p.Status != nil {
		status = string(*p.Status)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE bookings AS b SET
			status       = COALESCE($2, b.status),
			venue_id     = COALESCE($3, b.venue_id),
			selected_at  = COALESCE($4, b.selected_at),
			confirmed_at = COALESCE($5, b.confirmed_at),
			cancelled_at = COALESCE($6, b.cancelled_at),
			completed_at = COALESCE($7, b.completed_at),
			updated_at   = $8
		 WHERE b.id = $1
		 RETURNING `+bookingColumns,
		id, status, p.VenueID, p.SelectedAt, p.ConfirmedAt, p.CancelledAt, p.CompletedAt, s.now())
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, mapError("booking "+id, err)
	}
	return b, nil
}

func (s *Store) ListBookingsForVenue(ctx context.Context, venueID string) ([]model.Booking, error) {
	defer observe("list_bookings", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings b
		 LEFT JOIN events e ON e.id = b.event_id
		 WHERE b.venue_id = $1 OR e.venue_id = $1
		 ORDER BY b.created_at, b.id`, venueID)
	if err != nil {
		return nil, mapError("list bookings", err)
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapError("scan booking", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list bookings", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

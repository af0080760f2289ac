package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/okian/gigbook/internal/adapters/repository"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("x", nil))
	assert.ErrorIs(t, mapError("booking b1", sql.ErrNoRows), repository.ErrNotFound)
	assert.ErrorIs(t, mapError("create venue", &pq.Error{Code: pqUniqueViolation}), repository.ErrConflict)
	assert.ErrorIs(t, mapError("create event", &pq.Error{Code: pqForeignKeyViolation}), repository.ErrNotFound)

	boom := errors.New("boom")
	err := mapError("list bookings", boom)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "list bookings")
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.Equal(t, sql.NullString{String: "v1", Valid: true}, nullString("v1"))

	assert.Nil(t, timePtr(sql.NullTime{}))
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	got := timePtr(sql.NullTime{Time: at, Valid: true})
	require.NotNil(t, got)
	assert.True(t, got.Equal(at))
	assert.Equal(t, time.UTC, got.Location())
}

// TestStoreIntegration runs against a real database when
// GIGBOOK_TEST_POSTGRES_DSN is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("GIGBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GIGBOOK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db))
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })

	owner := "owner-" + s.newID()
	v, err := s.CreateVenue(ctx, model.VenueFields{Name: "Blue Room", OwnerID: owner})
	require.NoError(t, err)
	_, err = s.CreateVenue(ctx, model.VenueFields{Name: "Again", OwnerID: owner})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.VenueByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	e, err := s.CreateEvent(ctx, model.EventFields{
		VenueID: v.ID, Title: "Friday Jazz", Date: time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		Capacity: 80, TicketPrice: 12.5, Status: model.EventOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.5, e.TicketPrice)

	invited := model.EventInvited
	e, err = s.UpdateEvent(ctx, e.ID, model.EventPatch{Status: &invited})
	require.NoError(t, err)
	assert.Equal(t, model.EventInvited, e.Status)
	assert.Equal(t, "Friday Jazz", e.Title)

	b, err := s.CreateBooking(ctx, model.BookingFields{
		EventID: e.ID, MusicianID: "m1", BookedBy: "u-m1", Status: model.BookingApplied, ProposedRate: 150,
	})
	require.NoError(t, err)
	assert.NotNil(t, b.AppliedAt)
	assert.Empty(t, b.VenueID)

	_, err = s.CreateBooking(ctx, model.BookingFields{
		EventID: e.ID, MusicianID: "m1", BookedBy: "u-m1", Status: model.BookingApplied,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	list, err := s.ListBookingsForVenue(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	selected := model.BookingSelected
	now := time.Now().UTC().Truncate(time.Microsecond)
	b, err = s.UpdateBooking(ctx, b.ID, model.BookingPatch{Status: &selected, VenueID: &v.ID, SelectedAt: &now})
	require.NoError(t, err)
	assert.Equal(t, model.BookingSelected, b.Status)
	assert.Equal(t, v.ID, b.VenueID)
	require.NotNil(t, b.SelectedAt)
	assert.True(t, b.SelectedAt.Equal(now))

	_, err = s.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.UpdateBooking(ctx, "missing", model.BookingPatch{Status: &selected})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

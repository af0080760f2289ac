package api

import (
	"net/http"

	service "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/domain/model"
)

// handleCreateEvent handles POST /venues/{venueID}/events.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var f model.EventFields
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.deps.CreateEvent(r.Context(), userID, r.PathValue("venueID"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleUpdateEvent handles PATCH /events/{eventID}.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var p model.EventPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.deps.UpdateEvent(r.Context(), userID, r.PathValue("eventID"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleApply handles POST /events/{eventID}/applications.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var a service.Application
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.deps.Apply(r.Context(), userID, r.PathValue("eventID"), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleDirectBooking handles POST /events/{eventID}/bookings.
func (s *Server) handleDirectBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var d service.DirectBooking
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.deps.DirectBooking(r.Context(), userID, r.PathValue("eventID"), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

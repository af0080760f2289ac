package api

import (
	"fmt"
	"net/http"
	"strings"
)

type createVenueRequest struct {
	Name string `json:"name"`
}

// handleCreateVenue handles POST /venues. The caller becomes the owner.
func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req createVenueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	v, err := s.deps.CreateVenue(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// handleMyVenue handles GET /me/venue.
func (s *Server) handleMyVenue(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	v, err := s.deps.VenueByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleView handles GET /venues/{venueID}/view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	v, err := s.deps.View(r.Context(), userID, r.PathValue("venueID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

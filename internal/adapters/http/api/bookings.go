package api

import (
	"fmt"
	"net/http"

	"github.com/okian/gigbook/internal/domain/lifecycle"
)

// handleTransition handles POST /bookings/{bookingID}/{action}. "accept"
// is an alias for select.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	action, known := lifecycle.ParseAction(r.PathValue("action"))
	if !known {
		writeError(w, fmt.Errorf("%w: unknown action %q", ErrBadRequest, r.PathValue("action")))
		return
	}
	b, err := s.deps.Transition(r.Context(), userID, r.PathValue("bookingID"), action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

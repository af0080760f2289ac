package api

import (
	"errors"
	"net/http"

	"github.com/okian/gigbook/internal/adapters/repository"
	service "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/inflight"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("missing or invalid bearer token")
)

// statusFor maps an error to its HTTP status and response code.
func statusFor(err error) (int, string) {
	var te *lifecycle.TransitionError
	var rwe *reconcile.RemoteWriteError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrUnknownStatus):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, reconcile.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNoVenue):
		return http.StatusNotFound, "no_venue"
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &te):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, reconcile.ErrActionInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, service.ErrDuplicateApplication), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &rwe):
		return http.StatusBadGateway, "remote_write_failed"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, inflight.ErrFull):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		if errors.Is(err, reconcile.ErrNotFound) {
			msg = reconcile.ErrNotFound.Error()
		}
	case http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

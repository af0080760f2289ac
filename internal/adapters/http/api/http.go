// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	service "github.com/okian/gigbook/internal/app"
	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/internal/domain/lifecycle"
	"github.com/okian/gigbook/internal/domain/model"
	"github.com/okian/gigbook/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
// userID is always the authenticated caller.
type Dependencies interface {
	CreateVenue(ctx context.Context, userID, name string) (model.Venue, error)
	VenueByOwner(ctx context.Context, userID string) (model.Venue, error)

	View(ctx context.Context, userID, venueID string) (reconcile.View, error)
	Subscribe(ctx context.Context, userID, venueID string) (<-chan reconcile.Update, func(), error)

	CreateEvent(ctx context.Context, userID, venueID string, f model.EventFields) (model.Event, error)
	UpdateEvent(ctx context.Context, userID, eventID string, p model.EventPatch) (model.Event, error)

	Apply(ctx context.Context, userID, eventID string, a service.Application) (model.Booking, error)
	DirectBooking(ctx context.Context, userID, eventID string, d service.DirectBooking) (model.Booking, error)
	Transition(ctx context.Context, userID, bookingID string, action lifecycle.Action) (model.Booking, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	auth          *Authenticator
	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, auth *Authenticator, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		auth:          auth,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Callers authenticate with a bearer token, not cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		logger:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /venues", MetricsMiddleware(s.auth.Require(s.handleCreateVenue), "create_venue"))
	mux.HandleFunc("GET /me/venue", MetricsMiddleware(s.auth.Require(s.handleMyVenue), "my_venue"))
	mux.HandleFunc("GET /venues/{venueID}/view", MetricsMiddleware(s.auth.Require(s.handleView), "view"))
	mux.HandleFunc("GET /venues/{venueID}/subscribe", MetricsMiddleware(s.auth.Require(s.handleSubscribe), "subscribe"))
	mux.HandleFunc("POST /venues/{venueID}/events", MetricsMiddleware(s.auth.Require(s.handleCreateEvent), "create_event"))

	mux.HandleFunc("PATCH /events/{eventID}", MetricsMiddleware(s.auth.Require(s.handleUpdateEvent), "update_event"))
	mux.HandleFunc("POST /events/{eventID}/applications", MetricsMiddleware(s.auth.Require(s.handleApply), "apply"))
	mux.HandleFunc("POST /events/{eventID}/bookings", MetricsMiddleware(s.auth.Require(s.handleDirectBooking), "direct_booking"))

	mux.HandleFunc("POST /bookings/{bookingID}/{action}", MetricsMiddleware(s.auth.Require(s.handleTransition), "transition"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

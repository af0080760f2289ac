package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/gigbook/internal/app/reconcile"
	"github.com/okian/gigbook/pkg/logger"
)

// handleSubscribe handles GET /venues/{venueID}/subscribe. It upgrades to a
// websocket, sends the current view as a snapshot and then every update
// until either side closes.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	venueID := r.PathValue("venueID")

	// Subscribe before reading the view so no update falls in between.
	updates, stop, err := s.deps.Subscribe(ctx, userID, venueID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stop()
	view, err := s.deps.View(ctx, userID, venueID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(u reconcile.Update) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
		if err := conn.WriteJSON(u); err != nil {
			s.logger.Debug(ctx, "websocket write failed", logger.String("venue_id", venueID), logger.Error(err))
			return false
		}
		return true
	}
	if !send(reconcile.Update{Reason: reconcile.ReasonSnapshot, View: view, At: time.Now().UTC()}) {
		return
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(s.writeWait))
				return
			}
			// Queued before the snapshot was taken; already reflected in it.
			if u.View.Version < view.Version {
				continue
			}
			if !send(u) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				return
			}
		}
	}
}

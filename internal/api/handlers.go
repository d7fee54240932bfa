// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/models"
	syncpkg "github.com/tomtom215/presencesync/internal/sync"
	ws "github.com/tomtom215/presencesync/internal/websocket"
)

// PresenceSource is the coordinator surface the API reads and signals.
type PresenceSource interface {
	State() models.CanonicalState
	GatewayState() syncpkg.GatewayState
	Signal(sig syncpkg.HostSignal) bool
}

// Handler serves the presence HTTP API.
type Handler struct {
	source      PresenceSource
	wsHub       *ws.Hub
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates a handler. A nil hub disables the websocket endpoint.
// A nil corsOrigins slice accepts any websocket origin.
func NewHandler(source PresenceSource, hub *ws.Hub, corsOrigins []string) *Handler {
	return &Handler{
		source:      source,
		wsHub:       hub,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin; an empty one would bypass CORS
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.corsOrigins == nil {
		return true
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// Presence returns the current canonical presence state.
//
// Method: GET
// Path: /api/v1/presence
func (h *Handler) Presence(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	if h.source == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Presence coordinator not running", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.source.State().View(), start)
}

// Signal feeds a host lifecycle signal to the coordinator.
//
// Method: POST
// Path: /api/v1/signals/{signal}
//
// Accepted signals: visible, hidden, online, offline.
func (h *Handler) Signal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "signal")

	sig, err := syncpkg.ParseHostSignal(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown signal; expected visible, hidden, online or offline", nil)
		return
	}

	if h.source == nil || !h.source.Signal(sig) {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Presence coordinator not running", nil)
		return
	}

	logging.Ctx(r.Context()).Debug().Str("signal", sig.String()).Msg("Host signal accepted")
	respondSuccess(w, http.StatusAccepted, models.SignalAccepted{Signal: sig.String()}, start)
}

// WebSocket upgrades the connection and streams presence changes.
//
// Method: GET
// Path: /api/v1/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket hub not running", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logging.Ctx(r.Context()).Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !h.wsHub.RegisterClient(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	client.Start()
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/presencesync/internal/models"
	syncpkg "github.com/tomtom215/presencesync/internal/sync"
)

// HealthLive is a Kubernetes-style liveness probe. It always returns 200
// while the process can serve requests.
//
// Method: GET
// Path: /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// Health reports gateway and presence status. A terminal presence state is
// reported as "unavailable" but still returns 200: the process is healthy,
// the identity is simply not monitored.
//
// Method: GET
// Path: /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	if h.source == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Presence coordinator not running", nil)
		return
	}

	state := h.source.State()
	gw := h.source.GatewayState()

	status := "healthy"
	switch {
	case state.IsTerminal():
		status = "unavailable"
	case gw != syncpkg.StateSubscribed:
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:       status,
		GatewayState: gw.String(),
		Presence:     state.Kind.String(),
	}, start)
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package models

import (
	"time"
)

// APIResponse is the standard wrapper for every HTTP response.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
//	{
//	  "status": "success",
//	  "data": {"kind": "live", "snapshot": {...}, "open_track_url": "..."},
//	  "metadata": {"timestamp": "2026-10-18T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error code with a human message.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input
//   - NOT_FOUND: no such resource
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - SERVICE_UNAVAILABLE: coordinator not running
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SignalAccepted is returned when a host signal is queued.
type SignalAccepted struct {
	Signal string `json:"signal"`
}

// HealthStatus is returned by the liveness endpoint.
type HealthStatus struct {
	Status       string `json:"status"`
	GatewayState string `json:"gateway_state"`
	Presence     string `json:"presence"`
}

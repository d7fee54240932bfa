// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package models defines the data structures shared across Presencesync.

Key Components:

  - PresenceSnapshot: one decoded observation of what is playing
  - CanonicalState: the single presence value every consumer renders
    (Absent, Live, LastKnown, Unavailable)
  - PresenceView: the JSON form of CanonicalState served over HTTP,
    WebSocket, and NATS
  - GatewayFrame: the envelope for every gateway websocket message
  - PresenceData: the raw presence payload from the gateway and the
    presence HTTP resource
  - APIResponse: the standard HTTP response wrapper

Serialization:

JSON encoding uses goccy/go-json. ObservedAt on PresenceSnapshot is tagged
json:"-" and never leaves the process; only the display fields are cached.
*/
package models

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package models

import (
	"github.com/goccy/go-json"
)

// Gateway op codes.
const (
	OpEvent     = 0
	OpHello     = 1
	OpSubscribe = 2
	OpHeartbeat = 3
)

// Gateway event types carried by OpEvent frames.
const (
	EventInitState      = "INIT_STATE"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

// ActivityTypeListening marks a music activity in the generic activity list.
const ActivityTypeListening = 2

// GatewayFrame is a single message exchanged with the presence gateway.
type GatewayFrame struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

// HelloData is the payload of an OpHello frame.
type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

// SubscribeData is the payload of an OpSubscribe frame.
type SubscribeData struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

// PresenceData is the provider payload shared by gateway events and the HTTP resource.
// Every field is optional; ListeningToSpotify is a pointer so an absent flag
// can be told apart from an explicit false.
type PresenceData struct {
	ListeningToSpotify *bool            `json:"listening_to_spotify,omitempty"`
	Spotify            *SpotifyData     `json:"spotify,omitempty"`
	Activities         []ActivityData   `json:"activities,omitempty"`
	DiscordStatus      string           `json:"discord_status,omitempty"`
	DiscordUser        *DiscordUserData `json:"discord_user,omitempty"`
}

// SpotifyData is the dedicated now-playing object.
type SpotifyData struct {
	TrackID     string          `json:"track_id"`
	Song        string          `json:"song"`
	Artist      string          `json:"artist"`
	Album       string          `json:"album"`
	AlbumArtURL string          `json:"album_art_url"`
	Timestamps  *TimestampsData `json:"timestamps,omitempty"`
}

// ActivityData is one generic activity entry.
type ActivityData struct {
	Type       int             `json:"type"`
	Name       string          `json:"name"`
	Details    string          `json:"details"`
	State      string          `json:"state"`
	SyncID     string          `json:"sync_id,omitempty"`
	Assets     *AssetsData     `json:"assets,omitempty"`
	Timestamps *TimestampsData `json:"timestamps,omitempty"`
}

// AssetsData holds activity artwork identifiers and labels.
type AssetsData struct {
	LargeImage string `json:"large_image"`
	LargeText  string `json:"large_text"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// TimestampsData holds playback bounds in unix milliseconds.
type TimestampsData struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// DiscordUserData identifies the watched user.
type DiscordUserData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PresenceEnvelope is the HTTP presence resource response.
type PresenceEnvelope struct {
	Success bool           `json:"success"`
	Data    *PresenceData  `json:"data,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeError is the provider error body.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package presence

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/presencesync/internal/models"
)

// Artwork URL templates for activity asset identifiers.
const (
	spotifyImagePrefix  = "spotify:"
	spotifyImageBaseURL = "https://i.scdn.co/image/"
	externalImagePrefix = "mp:external/"
	externalImageBase   = "https://media.discordapp.net/external/"
)

// Decode converts a provider payload into a snapshot.
//
// The dedicated now-playing object wins over a listening activity. A missing
// payload, an explicit "not listening" flag, or an entry without a song all
// yield an inactive snapshot. Decode never fails.
func Decode(data *models.PresenceData, observedAt time.Time) models.PresenceSnapshot {
	if data == nil {
		return models.Inactive(observedAt)
	}
	if data.ListeningToSpotify != nil && !*data.ListeningToSpotify {
		return models.Inactive(observedAt)
	}

	var snap models.PresenceSnapshot
	switch {
	case data.Spotify != nil:
		snap = fromSpotify(data.Spotify)
	default:
		activity := findListening(data.Activities)
		if activity == nil {
			return models.Inactive(observedAt)
		}
		snap = fromActivity(activity)
	}

	if strings.TrimSpace(snap.Song) == "" {
		return models.Inactive(observedAt)
	}
	snap.Active = true
	snap.ObservedAt = observedAt
	return snap
}

// DecodeRaw decodes a JSON payload. Malformed input yields an inactive snapshot.
func DecodeRaw(raw []byte, observedAt time.Time) models.PresenceSnapshot {
	if len(raw) == 0 {
		return models.Inactive(observedAt)
	}
	var data models.PresenceData
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.Inactive(observedAt)
	}
	return Decode(&data, observedAt)
}

func fromSpotify(s *models.SpotifyData) models.PresenceSnapshot {
	return models.PresenceSnapshot{
		Song:       strings.TrimSpace(s.Song),
		Artist:     strings.TrimSpace(s.Artist),
		Album:      strings.TrimSpace(s.Album),
		ArtworkURL: strings.TrimSpace(s.AlbumArtURL),
		TrackID:    strings.TrimSpace(s.TrackID),
	}
}

func fromActivity(a *models.ActivityData) models.PresenceSnapshot {
	snap := models.PresenceSnapshot{
		Song:    strings.TrimSpace(a.Details),
		Artist:  strings.TrimSpace(a.State),
		TrackID: strings.TrimSpace(a.SyncID),
	}
	if a.Assets != nil {
		snap.Album = strings.TrimSpace(a.Assets.LargeText)
		snap.ArtworkURL = ArtworkURL(a.Assets.LargeImage)
	}
	return snap
}

// findListening returns the first listening-type activity.
func findListening(activities []models.ActivityData) *models.ActivityData {
	for i := range activities {
		if activities[i].Type == models.ActivityTypeListening {
			return &activities[i]
		}
	}
	return nil
}

// ArtworkURL resolves an activity asset identifier to an image URL.
// Unknown identifier schemes resolve to "".
func ArtworkURL(assetID string) string {
	id := strings.TrimSpace(assetID)
	switch {
	case id == "":
		return ""
	case strings.HasPrefix(id, spotifyImagePrefix):
		if rest := strings.TrimPrefix(id, spotifyImagePrefix); rest != "" {
			return spotifyImageBaseURL + rest
		}
		return ""
	case strings.HasPrefix(id, externalImagePrefix):
		if rest := strings.TrimPrefix(id, externalImagePrefix); rest != "" {
			return externalImageBase + rest
		}
		return ""
	case strings.HasPrefix(id, "https://"), strings.HasPrefix(id, "http://"):
		return id
	default:
		return ""
	}
}

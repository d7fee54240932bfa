// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// OpenTrackBaseURL is the deep-link prefix for a track identifier.
const OpenTrackBaseURL = "https://open.spotify.com/track/"

// PresenceSnapshot is one decoded observation of what is playing.
//
// An inactive snapshot carries no display fields; use Inactive to build one
// so stale values are never copied forward.
type PresenceSnapshot struct {
	Active     bool   `json:"active"`
	Song       string `json:"song"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	TrackID    string `json:"trackId,omitempty"`

	// ObservedAt is when the snapshot was produced. It is never persisted.
	ObservedAt time.Time `json:"-"`
}

// Inactive returns a cleared snapshot observed at the given time.
func Inactive(observedAt time.Time) PresenceSnapshot {
	return PresenceSnapshot{ObservedAt: observedAt}
}

// Valid reports whether the snapshot satisfies the display rules.
// An active snapshot needs a song; an inactive one must carry nothing.
func (s PresenceSnapshot) Valid() bool {
	if !s.Active {
		return s.Song == "" && s.Artist == "" && s.Album == "" && s.ArtworkURL == "" && s.TrackID == ""
	}
	return strings.TrimSpace(s.Song) != ""
}

// Equal compares display fields only; ObservedAt is ignored.
func (s PresenceSnapshot) Equal(o PresenceSnapshot) bool {
	return s.Active == o.Active &&
		s.Song == o.Song &&
		s.Artist == o.Artist &&
		s.Album == o.Album &&
		s.ArtworkURL == o.ArtworkURL &&
		s.TrackID == o.TrackID
}

// OpenTrackURL builds the deep link for the snapshot, or "" without a track ID.
func (s PresenceSnapshot) OpenTrackURL() string {
	if s.TrackID == "" {
		return ""
	}
	return OpenTrackBaseURL + s.TrackID
}

// StateKind discriminates CanonicalState values.
type StateKind int

const (
	// StateAbsent means nothing has ever been observed.
	StateAbsent StateKind = iota
	// StateLive holds an active snapshot confirmed by a channel.
	StateLive
	// StateLastKnown holds a previously active snapshot kept for display.
	StateLastKnown
	// StateUnavailable is terminal: the gateway rejected the watched identity.
	StateUnavailable
)

var stateKindNames = map[StateKind]string{
	StateAbsent:      "absent",
	StateLive:        "live",
	StateLastKnown:   "last_known",
	StateUnavailable: "unavailable",
}

// String returns the wire name of the kind.
func (k StateKind) String() string {
	if name, ok := stateKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k StateKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *StateKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("state kind: %w", err)
	}
	for kind, n := range stateKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("state kind: unknown value %q", name)
}

// CanonicalState is the single presence value exposed to consumers.
type CanonicalState struct {
	Kind     StateKind         `json:"kind"`
	Snapshot *PresenceSnapshot `json:"snapshot,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// AbsentState returns the empty state.
func AbsentState() CanonicalState {
	return CanonicalState{Kind: StateAbsent}
}

// LiveState wraps an active snapshot.
func LiveState(s PresenceSnapshot) CanonicalState {
	return CanonicalState{Kind: StateLive, Snapshot: &s}
}

// LastKnownState wraps a previously active snapshot.
func LastKnownState(s PresenceSnapshot) CanonicalState {
	return CanonicalState{Kind: StateLastKnown, Snapshot: &s}
}

// UnavailableState records a terminal rejection.
func UnavailableState(reason string) CanonicalState {
	return CanonicalState{Kind: StateUnavailable, Reason: reason}
}

// IsTerminal reports whether no further updates will be accepted.
func (c CanonicalState) IsTerminal() bool {
	return c.Kind == StateUnavailable
}

// LastActive returns the snapshot shown by Live or LastKnown states.
func (c CanonicalState) LastActive() (PresenceSnapshot, bool) {
	if c.Snapshot == nil || (c.Kind != StateLive && c.Kind != StateLastKnown) {
		return PresenceSnapshot{}, false
	}
	return *c.Snapshot, true
}

// OpenTrackURL returns the deep link for the displayed snapshot, if any.
func (c CanonicalState) OpenTrackURL() string {
	s, ok := c.LastActive()
	if !ok {
		return ""
	}
	return s.OpenTrackURL()
}

// Equal compares two states by kind, reason, and snapshot display fields.
func (c CanonicalState) Equal(o CanonicalState) bool {
	if c.Kind != o.Kind || c.Reason != o.Reason {
		return false
	}
	if (c.Snapshot == nil) != (o.Snapshot == nil) {
		return false
	}
	return c.Snapshot == nil || c.Snapshot.Equal(*o.Snapshot)
}

// PresenceView is the API representation of the canonical state.
type PresenceView struct {
	Kind         StateKind         `json:"kind"`
	Snapshot     *PresenceSnapshot `json:"snapshot,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	OpenTrackURL string            `json:"open_track_url,omitempty"`
}

// View derives the API representation.
func (c CanonicalState) View() PresenceView {
	return PresenceView{
		Kind:         c.Kind,
		Snapshot:     c.Snapshot,
		Reason:       c.Reason,
		OpenTrackURL: c.OpenTrackURL(),
	}
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

var testSnapshot = PresenceSnapshot{
	Active:     true,
	Song:       "Windowlicker",
	Artist:     "Aphex Twin",
	Album:      "Windowlicker",
	ArtworkURL: "https://i.scdn.co/image/ab67616d0000b273",
	TrackID:    "3M0lSi5WW79CXQamgSBIjx",
}

func TestPresenceSnapshot_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap PresenceSnapshot
		want bool
	}{
		{"active with song", testSnapshot, true},
		{"active without optional fields", PresenceSnapshot{Active: true, Song: "A", Artist: "X"}, true},
		{"active blank song", PresenceSnapshot{Active: true, Song: "  ", Artist: "X"}, false},
		{"inactive cleared", Inactive(time.Now()), true},
		{"inactive with stale song", PresenceSnapshot{Song: "A"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.snap.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPresenceSnapshot_EqualIgnoresObservedAt(t *testing.T) {
	t.Parallel()

	a := testSnapshot
	a.ObservedAt = time.Unix(100, 0)
	b := testSnapshot
	b.ObservedAt = time.Unix(200, 0)

	if !a.Equal(b) {
		t.Error("snapshots differing only in ObservedAt should be equal")
	}

	b.Album = "Other"
	if a.Equal(b) {
		t.Error("snapshots with different albums should not be equal")
	}
}

func TestPresenceSnapshot_ObservedAtNotPersisted(t *testing.T) {
	t.Parallel()

	s := testSnapshot
	s.ObservedAt = time.Now()

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "ObservedAt") || strings.Contains(string(data), "observed") {
		t.Errorf("observed time leaked into JSON: %s", data)
	}

	var decoded PresenceSnapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Equal(testSnapshot) {
		t.Errorf("decoded = %+v, want %+v", decoded, testSnapshot)
	}
	if !decoded.ObservedAt.IsZero() {
		t.Errorf("ObservedAt should be zero after decode, got %v", decoded.ObservedAt)
	}
}

func TestCanonicalState_OpenTrackURL(t *testing.T) {
	t.Parallel()

	noTrack := testSnapshot
	noTrack.TrackID = ""

	tests := []struct {
		name  string
		state CanonicalState
		want  string
	}{
		{"absent", AbsentState(), ""},
		{"live", LiveState(testSnapshot), "https://open.spotify.com/track/3M0lSi5WW79CXQamgSBIjx"},
		{"last known", LastKnownState(testSnapshot), "https://open.spotify.com/track/3M0lSi5WW79CXQamgSBIjx"},
		{"live without track id", LiveState(noTrack), ""},
		{"unavailable", UnavailableState("not monitored"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.state.OpenTrackURL(); got != tt.want {
				t.Errorf("OpenTrackURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalState_Equal(t *testing.T) {
	t.Parallel()

	if !LiveState(testSnapshot).Equal(LiveState(testSnapshot)) {
		t.Error("identical live states should be equal")
	}
	if LiveState(testSnapshot).Equal(LastKnownState(testSnapshot)) {
		t.Error("live and last known should differ")
	}
	if AbsentState().Equal(UnavailableState("x")) {
		t.Error("absent and unavailable should differ")
	}
	if !UnavailableState("x").Equal(UnavailableState("x")) {
		t.Error("same reason should be equal")
	}
}

func TestStateKind_JSON(t *testing.T) {
	t.Parallel()

	state := LastKnownState(testSnapshot)
	data, err := json.Marshal(state.View())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"last_known"`) {
		t.Errorf("expected kind name in %s", data)
	}
	if !strings.Contains(string(data), `"open_track_url":"https://open.spotify.com/track/3M0lSi5WW79CXQamgSBIjx"`) {
		t.Errorf("expected open track url in %s", data)
	}

	var decoded CanonicalState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Equal(state) {
		t.Errorf("decoded = %+v, want %+v", decoded, state)
	}

	var k StateKind
	if err := json.Unmarshal([]byte(`"bogus"`), &k); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCanonicalState_LastActive(t *testing.T) {
	t.Parallel()

	if _, ok := AbsentState().LastActive(); ok {
		t.Error("absent has no last active snapshot")
	}
	if _, ok := UnavailableState("x").LastActive(); ok {
		t.Error("unavailable has no last active snapshot")
	}
	got, ok := LastKnownState(testSnapshot).LastActive()
	if !ok || !got.Equal(testSnapshot) {
		t.Errorf("LastActive() = %+v, %v", got, ok)
	}
	if !UnavailableState("x").IsTerminal() || LiveState(testSnapshot).IsTerminal() {
		t.Error("only unavailable is terminal")
	}
}

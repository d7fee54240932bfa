// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package presence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/presencesync/internal/models"
)

func TestStores_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "memory",
			open: func(t *testing.T) Store { return NewMemoryStore() },
		},
		{
			name: "badger in-memory",
			open: func(t *testing.T) Store {
				s, err := OpenBadgerStore("", false)
				if err != nil {
					t.Fatalf("OpenBadgerStore: %v", err)
				}
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := tt.open(t)
			defer store.Close()
			ctx := context.Background()

			if _, ok, err := store.Load(ctx); err != nil || ok {
				t.Fatalf("empty Load() ok=%v err=%v", ok, err)
			}

			snap := models.PresenceSnapshot{
				Active:     true,
				Song:       "Song",
				Artist:     "Artist",
				Album:      "Album",
				ArtworkURL: "https://i.scdn.co/image/x",
				TrackID:    "track",
				ObservedAt: time.Now(),
			}
			if err := store.Save(ctx, snap); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, ok, err := store.Load(ctx)
			if err != nil || !ok {
				t.Fatalf("Load() ok=%v err=%v", ok, err)
			}
			if !got.Equal(snap) {
				t.Errorf("Load() = %+v, want %+v", got, snap)
			}
			if !got.ObservedAt.IsZero() {
				t.Errorf("ObservedAt should not be persisted, got %v", got.ObservedAt)
			}

			next := snap
			next.Song = "Next"
			if err := store.Save(ctx, next); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, _, _ = store.Load(ctx)
			if got.Song != "Next" {
				t.Errorf("overwrite: song = %q, want Next", got.Song)
			}
		})
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "snapshots")
	ctx := context.Background()

	store, err := OpenBadgerStore(dir, false)
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	if err := store.Save(ctx, active("Persisted")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadgerStore(dir, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	r := NewReconciler(reopened)
	state := r.Hydrate(ctx)
	if state.Kind != models.StateLastKnown || state.Snapshot.Song != "Persisted" {
		t.Errorf("hydrated state = %s %+v, want last_known Persisted", state.Kind, state.Snapshot)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_ = store.Close()

	if err := store.Save(context.Background(), active("A")); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save error = %v, want ErrStoreClosed", err)
	}
	if _, _, err := store.Load(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load error = %v, want ErrStoreClosed", err)
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		typ      StoreType
		wantType string
		wantErr  bool
	}{
		{"default", "", "*presence.MemoryStore", false},
		{"memory", StoreMemory, "*presence.MemoryStore", false},
		{"badger", StoreBadger, "*presence.BadgerStore", false},
		{"unknown", StoreType("redis"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := OpenStore(tt.typ, "", false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer store.Close()
			if got := fmt.Sprintf("%T", store); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/presencesync/internal/models"
)

// CacheKey is the fixed key holding the last active snapshot.
const CacheKey = "nowplaying:last-active-snapshot"

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("snapshot store closed")

// Store persists the most recent active snapshot across restarts.
//
// Load returns ok=false when nothing has been stored.
type Store interface {
	Load(ctx context.Context) (snap models.PresenceSnapshot, ok bool, err error)
	Save(ctx context.Context, snap models.PresenceSnapshot) error
	Close() error
}

// StoreType selects the storage backend.
type StoreType string

const (
	// StoreMemory keeps the snapshot in process memory only.
	StoreMemory StoreType = "memory"

	// StoreBadger persists the snapshot in a BadgerDB directory.
	StoreBadger StoreType = "badger"
)

// OpenStore creates a store for the given backend.
// An empty type or "memory" returns a MemoryStore.
func OpenStore(storeType StoreType, path string, readOnly bool) (Store, error) {
	switch storeType {
	case StoreBadger:
		return OpenBadgerStore(path, readOnly)
	case StoreMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	snap   models.PresenceSnapshot
	ok     bool
	closed bool
	saves  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored snapshot.
func (m *MemoryStore) Load(_ context.Context) (models.PresenceSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return models.PresenceSnapshot{}, false, ErrStoreClosed
	}
	return m.snap, m.ok, nil
}

// Save overwrites the stored snapshot.
func (m *MemoryStore) Save(_ context.Context, snap models.PresenceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	snap.ObservedAt = time.Time{} // not persisted, matches BadgerStore
	m.snap = snap
	m.ok = true
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

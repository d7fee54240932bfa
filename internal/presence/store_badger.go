// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/presencesync/internal/models"
)

// BadgerStore implements Store using BadgerDB for durable storage.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB at path.
// An empty path opens an in-memory database.
func OpenBadgerStore(path string, readOnly bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithReadOnly(readOnly && path != "")
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for snapshots: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load reads the cached snapshot.
func (s *BadgerStore) Load(_ context.Context) (models.PresenceSnapshot, bool, error) {
	var snap models.PresenceSnapshot
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(CacheKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &snap); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return models.PresenceSnapshot{}, false, ErrStoreClosed
		}
		return models.PresenceSnapshot{}, false, err
	}

	return snap, found, nil
}

// Save overwrites the cached snapshot.
func (s *BadgerStore) Save(_ context.Context, snap models.PresenceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(CacheKey), data); err != nil {
			return fmt.Errorf("set snapshot: %w", err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrStoreClosed
	}
	return err
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

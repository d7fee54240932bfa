// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/presencesync/internal/config"
	"github.com/tomtom215/presencesync/internal/models"
	"github.com/tomtom215/presencesync/internal/presence"
)

// errNoSnapshot is returned when the cache holds nothing.
var errNoSnapshot = errors.New("no cached snapshot")

func newSnapshotCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the cached last active snapshot as JSON",
		Long: `Opens the snapshot store read-only and prints the last active snapshot.
Exits with status 1 when nothing is cached.

Without --path the store location comes from the usual configuration sources.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, err := config.LoadWithKoanf()
				if err != nil {
					return err
				}
				if cfg.Store.Type != string(presence.StoreBadger) {
					return fmt.Errorf("store type %q has no persistent snapshot", cfg.Store.Type)
				}
				path = cfg.Store.Path
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			data, err := readSnapshot(ctx, path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "BadgerDB snapshot directory (overrides STORE_PATH)")
	return cmd
}

// readSnapshot loads the cached snapshot as indented JSON.
func readSnapshot(ctx context.Context, path string) ([]byte, error) {
	store, err := presence.OpenStore(presence.StoreBadger, path, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	snap, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		return nil, errNoSnapshot
	}

	data, err := json.MarshalIndent(struct {
		Snapshot     models.PresenceSnapshot `json:"snapshot"`
		OpenTrackURL string                  `json:"open_track_url,omitempty"`
	}{snap, snap.OpenTrackURL()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

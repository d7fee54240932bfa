// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

// Package logging provides the process-wide zerolog logger.
//
// Initialize once at startup, then log through the package helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("identity", id).Msg("[coordinator] Starting")
//	logging.Warn().Err(err).Msg("[poller] Poll failed")
//
// When Config.File.Path is set, output is also written to a rotating file
// managed by lumberjack. NewSlogLogger bridges log/slog consumers (the
// supervision tree) onto the same logger.
//
// Always terminate event chains with Msg or Send; an unterminated chain is
// never emitted.
package logging

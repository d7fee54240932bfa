// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

// Package main is the entry point for Presencesync.
//
// Presencesync keeps one "now playing" value for a watched identity current by
// combining a push channel (presence gateway websocket) with a pull channel
// (periodic HTTP fetch), reconciling both into a single canonical state that
// survives restarts through a BadgerDB cache.
//
// # Application Architecture
//
// The serve command initializes components in order:
//
//  1. Configuration: Koanf v2 (defaults, YAML file, .env, environment)
//  2. Logging: zerolog with optional rotating file output
//  3. Store: BadgerDB snapshot cache (or in-memory)
//  4. Coordinator: gateway dialer, poller with circuit breaker, reconciler
//  5. WebSocket hub and optional NATS publisher for state changes
//  6. Optional D-Bus host signal watcher
//  7. HTTP API
//
// Long-running components run under a suture supervisor tree.
//
// # Commands
//
//	presencesync [serve]   run the sync client (default)
//	presencesync snapshot  print the cached snapshot as JSON
//	presencesync version   print build information
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree: the gateway socket is closed
// with a normal close frame, the poller stops, and the HTTP server drains.
//
// # Example Usage
//
//	export PRESENCE_IDENTITY=94490510688792576
//	export STORE_PATH=$HOME/.local/share/presencesync
//	./presencesync
package main

func main() {
	execute()
}

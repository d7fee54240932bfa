// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package websocket fans canonical presence changes out to downstream clients.

The Hub keeps the set of connected clients and runs under suture supervision
via RunWithContext. Each Client owns a read pump (answers application-level
pings and detects disconnects) and a write pump (JSON messages plus
protocol-level pings every 54 seconds).

Message Format:

	{"type": "presence", "data": {"kind": "live", "snapshot": {...}, "open_track_url": "..."}}
	{"type": "pong", "data": null}

A client receives the current state as soon as it registers, then the
latest state after each change. Changes that arrive faster than the hub
broadcasts are coalesced, so the last message is always the newest state.
Clients that fall behind are disconnected rather than slowing down the
broadcast.
*/
package websocket

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package events publishes canonical presence state changes to NATS.

The publisher subscribes to the reconciler and forwards each change as a JSON
StateMessage on a single subject (default "presence.state"). Only the newest
state matters, so changes that arrive while a publish is in flight are
coalesced into one message carrying the latest value.

For single-host deployments an in-process NATS server can be started with
NewEmbeddedServer; consumers then connect to its ClientURL.

Message Format:

	{
	  "kind": "live",
	  "snapshot": {"active": true, "song": "...", "artist": "...", ...},
	  "open_track_url": "https://open.spotify.com/track/...",
	  "published_at": "2026-10-18T12:00:00Z"
	}

Each message carries a unique Nats-Msg-Id header for JetStream deduplication.
*/
package events

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package presence decodes provider payloads into snapshots and reconciles them
into the canonical listening state.

Key Components:

  - Decode / DecodeRaw: payload to PresenceSnapshot, never failing
  - Apply: pure merge of one snapshot into a CanonicalState
  - Reconciler: owns the canonical state, writes through to a Store
  - Store: MemoryStore or BadgerStore holding the last active snapshot

State Transitions:

	Absent    + active   -> Live        (persisted)
	Live      + active   -> Live        (persisted only when different)
	Live      + inactive -> LastKnown
	LastKnown + active   -> Live        (persisted)
	any       + Fail     -> Unavailable (terminal)

Ordering is last write wins in arrival order. Source is recorded but never
compared, so a delayed poll response can replace a newer push update until
the next update arrives.

Store failures are logged and swallowed; the network channels keep working
without a cache.
*/
package presence

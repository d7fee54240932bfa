// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package hostsignal turns Linux desktop bus signals into coordinator host signals.

Sources on the system bus:

  - org.freedesktop.NetworkManager StateChanged(u): a state of 70 or more
    (connected, global) reports Online; dropping below 50 after being online
    reports Offline. Intermediate states are ignored.
  - org.freedesktop.login1.Manager PrepareForSleep(b): true reports Hidden,
    false (resume) reports Visible.

A resume or reconnect therefore makes the coordinator replace its gateway
socket and poll once, the same as a browser tab becoming visible again.
*/
package hostsignal

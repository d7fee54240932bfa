// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package services provides suture.Service wrappers for Presencesync components.

Each wrapper translates a component lifecycle (Run/Unmount, ListenAndServe,
Serve/Close) into suture's context-aware Serve pattern and names the service
for supervisor logs:

  - CoordinatorService: *sync.Coordinator; never restarted after it stops
  - HostSignalService: *hostsignal.Watcher; disabled without a system bus
  - WebSocketHubService: *websocket.Hub
  - NATSPublisherService: *events.Publisher plus optional embedded server
  - HTTPServerService: *http.Server with graceful shutdown

Wrappers depend on small interfaces rather than concrete types so they can be
tested with fakes.
*/
package services

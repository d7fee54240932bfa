// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package supervisor provides process supervision for Presencesync using suture v4.

# Overview

	RootSupervisor ("presencesync")
	├── SyncSupervisor ("sync-layer")
	│   ├── CoordinatorService
	│   └── HostSignalService (if DBUS_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── NATSPublisherService (if NATS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer restarts independently with suture's exponential backoff.
Supervisor events (start, failure, backoff, timeout) are logged through the
sutureslog hook, which writes to the zerolog-backed slog logger from
internal/logging.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSyncService(services.NewCoordinatorService(coordinator))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	return tree.Serve(ctx)

# See Also

  - internal/supervisor/services: service wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor

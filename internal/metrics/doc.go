// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package metrics provides Prometheus instrumentation for presence synchronization.

All collectors are registered with the default registry through promauto and are
exposed at /metrics by the API router:

	curl http://localhost:3860/metrics

# Available Metrics

Gateway (push channel):
  - presencesync_gateway_state: current connection state (gauge)
  - presencesync_gateway_connect_attempts_total: dial attempts (counter)
  - presencesync_gateway_closes_total: terminations by reason (counter)
  - presencesync_gateway_frames_received_total: frames by op code (counter)
  - presencesync_gateway_heartbeats_sent_total: heartbeats written (counter)
  - presencesync_stale_events_dropped_total: superseded-generation events (counter)

Polling (pull channel):
  - presencesync_poll_requests_total: polls by result (counter)
  - presencesync_poll_duration_seconds: poll latency (histogram)

Reconciler:
  - presencesync_reconciler_observations_total: snapshots applied by source
  - presencesync_reconciler_transitions_total: state changes by source and kind
  - presencesync_cache_operations_total: cache loads and saves by result

Circuit breaker, downstream WebSocket, API, and NATS collectors follow the
same naming as their label comments describe.
*/
package metrics

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package sync keeps the canonical listening state in step with the presence
provider over two redundant channels.

Key Components:

  - Coordinator: single-writer event loop owning the reconciler, the gateway
    state machine and the connection generation
  - gatewaySession: one websocket connection with its reader and heartbeat
  - Poller: fixed-interval and on-demand HTTP polling
  - PresenceClient: HTTP client for the presence resource
  - CircuitBreakerFetcher: gobreaker wrapper around the presence client

Architecture:

Push and pull observations both flow into presence.Reconciler from the
coordinator goroutine, so the last observation to arrive wins and duplicate
observations are absorbed without a second write to the store.

	dial / read / heartbeat / retry / poll / signal
	            |  generation-tagged events
	            v
	      Coordinator.Run  ->  presence.Reconciler  ->  store, subscribers

Gateway state machine:

	Idle -> Connecting -> AwaitingHello -> Subscribed
	  ^          |              |              |
	  |          v              v              v
	  +------ Errored / Closed (retry after RetryDelay)

A close with code 1000 is not retried. A close with code 4004 or a
"not monitored" reason, like the equivalent HTTP envelope, is terminal: both
channels stop and the state becomes Unavailable.

Usage Example:

	client := sync.NewPresenceClient(cfg.Presence.URL, cfg.Identity, cfg.Presence.Timeout)
	fetcher := sync.NewCircuitBreakerFetcher(client, "presence", sync.DefaultBreakerSettings())
	poller := sync.NewPoller(fetcher, cfg.Presence.PollInterval)
	coord := sync.NewCoordinator(sync.CoordinatorConfig{
	    GatewayURL: cfg.Gateway.URL,
	    Identity:   cfg.Identity,
	}, sync.NewWebSocketDialer(cfg.Gateway.HandshakeTimeout), poller, presence.NewReconciler(store))

	go coord.Run(ctx)
	defer coord.Unmount()

Thread Safety:

Run must be called once. Signal, Unmount, State and GatewayState are safe
for concurrent use.
*/
package sync

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
Package api provides the HTTP surface for Presencesync.

It exposes the canonical presence state to local consumers (status bars,
overlays, dashboards) and accepts host lifecycle signals from wrappers that
cannot reach the desktop bus.

Routes:

	GET  /api/v1/health/live        liveness probe
	GET  /api/v1/health             gateway and presence status
	GET  /api/v1/presence           current presence view
	POST /api/v1/signals/{signal}   visible | hidden | online | offline
	GET  /api/v1/ws                 presence change stream
	GET  /metrics                   Prometheus metrics

Middleware Stack (applied in order):

 1. CorrelationID: reuses or generates X-Correlation-ID
 2. RealIP: client IP from proxy headers
 3. Recoverer: panic recovery
 4. CORS: go-chi/cors
 5. RateLimit: go-chi/httprate per-IP limit (API routes only)
 6. PrometheusMetrics: request count and latency per route pattern

Usage Example:

	handler := api.NewHandler(coordinator, hub, cfg.API.CORSOrigins)
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig))
	srv := &http.Server{Addr: addr, Handler: router.SetupChi()}

Response Format:

All responses use models.APIResponse with a status of "success" or "error".
*/
package api

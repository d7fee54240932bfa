// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for presence synchronization:
// - Gateway connection lifecycle (push channel)
// - Presence polling (pull channel)
// - Reconciler transitions and cache write-through
// - Circuit breaker state
// - Downstream WebSocket fan-out and HTTP API

var (
	// Gateway Metrics
	GatewayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presencesync_gateway_state",
			Help: "Gateway connection state (0=idle, 1=connecting, 2=awaiting_hello, 3=subscribed, 4=closed, 5=errored)",
		},
	)

	GatewayConnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presencesync_gateway_connect_attempts_total",
			Help: "Total number of gateway dial attempts",
		},
	)

	GatewayCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_gateway_closes_total",
			Help: "Total number of gateway connection terminations",
		},
		[]string{"reason"}, // "normal", "abnormal", "error", "not_monitored", "replaced", "shutdown"
	)

	GatewayFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_gateway_frames_received_total",
			Help: "Total number of gateway frames received by op code",
		},
		[]string{"op"},
	)

	GatewayHeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presencesync_gateway_heartbeats_sent_total",
			Help: "Total number of heartbeat frames written to the gateway",
		},
	)

	StaleEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_stale_events_dropped_total",
			Help: "Events discarded because they belonged to a superseded connection generation",
		},
		[]string{"event"}, // "dial", "frame", "close", "heartbeat", "retry"
	)

	// Poll Metrics
	PollRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_poll_requests_total",
			Help: "Total number of presence poll requests by result",
		},
		[]string{"result"}, // "success", "error", "not_monitored"
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presencesync_poll_duration_seconds",
			Help:    "Duration of presence poll requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reconciler Metrics
	ReconcilerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_reconciler_transitions_total",
			Help: "Total number of canonical state changes by source and resulting kind",
		},
		[]string{"source", "kind"},
	)

	ReconcilerObservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_reconciler_observations_total",
			Help: "Total number of snapshots applied by source",
		},
		[]string{"source"},
	)

	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_cache_operations_total",
			Help: "Total number of snapshot cache operations",
		},
		[]string{"operation", "result"}, // operation: "load", "save"; result: "hit", "miss", "ok", "error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// WebSocket Metrics (downstream subscribers)
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// NATS Metrics
	NATSPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presencesync_nats_published_total",
			Help: "Total number of presence state messages published to NATS",
		},
		[]string{"result"},
	)
)

// SetGatewayState records the numeric gateway state.
func SetGatewayState(state int) {
	GatewayState.Set(float64(state))
}

// RecordPoll records the outcome and latency of one presence poll.
func RecordPoll(result string, duration time.Duration) {
	PollRequests.WithLabelValues(result).Inc()
	PollDuration.Observe(duration.Seconds())
}

// RecordObservation counts a snapshot applied to the reconciler.
func RecordObservation(source string) {
	ReconcilerObservations.WithLabelValues(source).Inc()
}

// RecordTransition counts a canonical state change.
func RecordTransition(source, kind string) {
	ReconcilerTransitions.WithLabelValues(source, kind).Inc()
}

// RecordCacheOperation records a snapshot cache load or save.
func RecordCacheOperation(operation, result string) {
	CacheOperations.WithLabelValues(operation, result).Inc()
}

// RecordStaleEvent counts an event dropped for a superseded generation.
func RecordStaleEvent(event string) {
	StaleEventsDropped.WithLabelValues(event).Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNATSPublish records a NATS publish outcome.
func RecordNATSPublish(err error) {
	if err != nil {
		NATSPublished.WithLabelValues("error").Inc()
		return
	}
	NATSPublished.WithLabelValues("ok").Inc()
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/metrics"
	"github.com/tomtom215/presencesync/internal/models"
)

// Ensure CircuitBreakerFetcher implements PresenceFetcher
var _ PresenceFetcher = (*CircuitBreakerFetcher)(nil)

// CircuitBreakerFetcher wraps a PresenceFetcher with a circuit breaker so a
// failing provider is not hammered by on-demand polls.
//
// ErrNotMonitored is a definitive answer, not a transport failure, and is
// counted as success so it never trips the breaker.
type CircuitBreakerFetcher struct {
	fetcher PresenceFetcher
	cb      *gobreaker.CircuitBreaker[*models.PresenceData]
	name    string
}

// BreakerSettings tunes the breaker.
type BreakerSettings struct {
	MaxRequests  uint32        // concurrent probes in half-open state
	Interval     time.Duration // closed-state count reset
	Timeout      time.Duration // open-state wait before half-open
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns settings sized for a 30s poll cadence:
// trip after 5 requests at >= 60% failure, probe again after one minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      time.Minute,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// NewCircuitBreakerFetcher wraps fetcher.
func NewCircuitBreakerFetcher(fetcher PresenceFetcher, name string, s BreakerSettings) *CircuitBreakerFetcher {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.PresenceData](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRatio
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotMonitored) || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerFetcher{fetcher: fetcher, cb: cb, name: name}
}

// FetchPresence runs the wrapped fetch through the breaker.
func (f *CircuitBreakerFetcher) FetchPresence(ctx context.Context) (*models.PresenceData, error) {
	data, err := f.cb.Execute(func() (*models.PresenceData, error) {
		return f.fetcher.FetchPresence(ctx)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(f.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(f.name).Set(0)
		return data, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(f.name, "rejected").Inc()
		return nil, fmt.Errorf("presence poll rejected: %w", err)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(f.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(f.name).Set(float64(f.cb.Counts().ConsecutiveFailures))
		return nil, err
	}
}

// State returns the breaker state.
func (f *CircuitBreakerFetcher) State() gobreaker.State {
	return f.cb.State()
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

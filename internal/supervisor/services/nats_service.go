// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/presencesync/internal/logging"
)

// StatePublisher matches *events.Publisher.
type StatePublisher interface {
	Serve(ctx context.Context) error
	Close() error
}

// EmbeddedNATS matches *events.EmbeddedServer.
type EmbeddedNATS interface {
	Shutdown(ctx context.Context) error
}

// NATSPublisherService runs the state publisher under supervision and
// releases the connection, and the embedded server if any, on shutdown.
type NATSPublisherService struct {
	publisher       StatePublisher
	server          EmbeddedNATS
	shutdownTimeout time.Duration
	name            string
}

// NewNATSPublisherService creates the wrapper. server may be nil.
func NewNATSPublisherService(publisher StatePublisher, server EmbeddedNATS) *NATSPublisherService {
	return &NATSPublisherService{
		publisher:       publisher,
		server:          server,
		shutdownTimeout: 5 * time.Second,
		name:            "nats-publisher",
	}
}

// Serve implements suture.Service.
func (s *NATSPublisherService) Serve(ctx context.Context) error {
	err := s.publisher.Serve(ctx)
	if ctx.Err() == nil {
		return err
	}

	if cerr := s.publisher.Close(); cerr != nil {
		logging.Warn().Err(cerr).Msg("Failed to close NATS publisher")
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if serr := s.server.Shutdown(shutdownCtx); serr != nil {
			logging.Warn().Err(serr).Msg("Embedded NATS server shutdown incomplete")
		}
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture log messages.
func (s *NATSPublisherService) String() string {
	return s.name
}

// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencesync/internal/logging"
)

// CoordinatorRunner matches *sync.Coordinator.
type CoordinatorRunner interface {
	Run(ctx context.Context) error
}

// CoordinatorService runs the presence coordinator under supervision.
//
// A coordinator runs once. When it stops for any reason other than context
// cancellation (Unmount, or a second Run) the service asks suture not to
// restart it.
type CoordinatorService struct {
	coordinator CoordinatorRunner
	name        string
}

// NewCoordinatorService creates the wrapper.
func NewCoordinatorService(coordinator CoordinatorRunner) *CoordinatorService {
	return &CoordinatorService{
		coordinator: coordinator,
		name:        "presence-coordinator",
	}
}

// Serve implements suture.Service.
func (s *CoordinatorService) Serve(ctx context.Context) error {
	err := s.coordinator.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logging.Error().Err(err).Msg("Presence coordinator exited")
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	}
	logging.Info().Msg("Presence coordinator unmounted")
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for suture log messages.
func (s *CoordinatorService) String() string {
	return s.name
}

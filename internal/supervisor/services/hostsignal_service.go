// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package services

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencesync/internal/hostsignal"
	"github.com/tomtom215/presencesync/internal/logging"
)

// BusWatcher matches *hostsignal.Watcher.
type BusWatcher interface {
	Serve(ctx context.Context) error
}

// HostSignalService runs the D-Bus host signal watcher under supervision.
// A host without a system bus disables the watcher instead of restarting it.
type HostSignalService struct {
	watcher BusWatcher
	name    string
}

// NewHostSignalService creates the wrapper.
func NewHostSignalService(watcher BusWatcher) *HostSignalService {
	return &HostSignalService{
		watcher: watcher,
		name:    "host-signal-watcher",
	}
}

// Serve implements suture.Service.
func (s *HostSignalService) Serve(ctx context.Context) error {
	err := s.watcher.Serve(ctx)
	if errors.Is(err, hostsignal.ErrBusUnavailable) {
		logging.Warn().Err(err).Msg("System bus unavailable, host signals disabled")
		return suture.ErrDoNotRestart
	}
	return err
}

// String implements fmt.Stringer for suture log messages.
func (s *HostSignalService) String() string {
	return s.name
}

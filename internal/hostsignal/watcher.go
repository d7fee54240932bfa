// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package hostsignal

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/tomtom215/presencesync/internal/logging"
	syncpkg "github.com/tomtom215/presencesync/internal/sync"
)

// D-Bus names watched on the system bus.
const (
	networkManagerInterface = "org.freedesktop.NetworkManager"
	networkManagerPath      = "/org/freedesktop/NetworkManager"
	stateChangedMember      = "StateChanged"

	login1ManagerInterface = "org.freedesktop.login1.Manager"
	login1Path             = "/org/freedesktop/login1"
	prepareForSleepMember  = "PrepareForSleep"
)

// NetworkManager connectivity states (NMState).
const (
	nmStateConnectedLocal  = 50
	nmStateConnectedGlobal = 70
)

var (
	// ErrBusUnavailable is returned when the system bus cannot be reached.
	ErrBusUnavailable = errors.New("system bus unavailable")

	// ErrBusClosed is returned when the bus stops delivering signals.
	ErrBusClosed = errors.New("system bus signal channel closed")
)

// DBusConn is the subset of *dbus.Conn used by the watcher.
//
//go:generate mockgen -destination=mocks/dbus_conn_mock.go -package=mocks github.com/tomtom215/presencesync/internal/hostsignal DBusConn
type DBusConn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

// Sink receives host signals. *sync.Coordinator satisfies it.
type Sink interface {
	Signal(sig syncpkg.HostSignal) bool
}

// ConnectFunc opens a bus connection.
type ConnectFunc func() (DBusConn, error)

// SystemBus opens a private system bus connection.
func SystemBus() (DBusConn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return conn, nil
}

// Watcher forwards bus signals to a Sink.
type Watcher struct {
	connect ConnectFunc
	sink    Sink

	// online is nil until NetworkManager reports a state.
	online *bool
}

// NewWatcher creates a watcher. A nil connect uses SystemBus.
func NewWatcher(connect ConnectFunc, sink Sink) *Watcher {
	if connect == nil {
		connect = SystemBus
	}
	return &Watcher{connect: connect, sink: sink}
}

func matchRules() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(networkManagerPath),
			dbus.WithMatchInterface(networkManagerInterface),
			dbus.WithMatchMember(stateChangedMember),
		},
		{
			dbus.WithMatchObjectPath(login1Path),
			dbus.WithMatchInterface(login1ManagerInterface),
			dbus.WithMatchMember(prepareForSleepMember),
		},
	}
}

// Serve watches the bus until ctx is canceled.
// This method is designed for use with suture supervision.
func (w *Watcher) Serve(ctx context.Context) error {
	conn, err := w.connect()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("[hostsignal] Failed to close bus connection")
		}
	}()

	rules := matchRules()
	for _, rule := range rules {
		if err := conn.AddMatchSignal(rule...); err != nil {
			return fmt.Errorf("add match rule: %w", err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	logging.Info().Msg("[hostsignal] Watching NetworkManager and logind signals")

	for {
		select {
		case <-ctx.Done():
			for _, rule := range rules {
				_ = conn.RemoveMatchSignal(rule...)
			}
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return ErrBusClosed
			}
			if hs, ok := w.translate(sig); ok {
				logging.Debug().Str("signal", hs.String()).Str("source", sig.Name).Msg("[hostsignal] Forwarding host signal")
				w.sink.Signal(hs)
			}
		}
	}
}

// translate maps one bus signal to a host signal.
func (w *Watcher) translate(sig *dbus.Signal) (syncpkg.HostSignal, bool) {
	if sig == nil || len(sig.Body) == 0 {
		return 0, false
	}

	switch sig.Name {
	case networkManagerInterface + "." + stateChangedMember:
		state, ok := sig.Body[0].(uint32)
		if !ok {
			return 0, false
		}
		return w.connectivity(state)

	case login1ManagerInterface + "." + prepareForSleepMember:
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			return 0, false
		}
		if sleeping {
			return syncpkg.SignalHidden, true
		}
		return syncpkg.SignalVisible, true
	}
	return 0, false
}

// connectivity tracks NetworkManager state and reports edges only.
func (w *Watcher) connectivity(state uint32) (syncpkg.HostSignal, bool) {
	switch {
	case state >= nmStateConnectedGlobal:
		if w.online != nil && *w.online {
			return 0, false
		}
		on := true
		w.online = &on
		return syncpkg.SignalOnline, true

	case state < nmStateConnectedLocal:
		if w.online == nil || !*w.online {
			return 0, false
		}
		off := false
		w.online = &off
		return syncpkg.SignalOffline, true
	}
	return 0, false
}

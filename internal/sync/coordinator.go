// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
coordinator.go - Sync Coordinator

The coordinator owns every piece of mutable sync state: the reconciler, the
gateway state machine, the connection generation and the retry timer. All of
it is touched only from the Run goroutine. Dials, socket reads, heartbeat
ticks, retry timers, poll results and host signals arrive as events on one
channel; events carrying an old generation are dropped.

Lifecycle:

	Run:      hydrate from the store, then connect and start polling
	Signal:   visibility/connectivity regain forces a reconnect and a resync poll
	Unmount:  stop reconnecting, close an open socket, stop polling
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/metrics"
	"github.com/tomtom215/presencesync/internal/models"
	"github.com/tomtom215/presencesync/internal/presence"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("coordinator already started")

// HostSignal is a host environment notification.
type HostSignal int

const (
	SignalVisible HostSignal = iota
	SignalHidden
	SignalOnline
	SignalOffline
)

// String returns the signal name.
func (s HostSignal) String() string {
	switch s {
	case SignalVisible:
		return "visible"
	case SignalHidden:
		return "hidden"
	case SignalOnline:
		return "online"
	case SignalOffline:
		return "offline"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseHostSignal parses a signal name.
func ParseHostSignal(name string) (HostSignal, error) {
	switch strings.ToLower(name) {
	case "visible":
		return SignalVisible, nil
	case "hidden":
		return SignalHidden, nil
	case "online":
		return SignalOnline, nil
	case "offline":
		return SignalOffline, nil
	default:
		return 0, fmt.Errorf("unknown host signal %q", name)
	}
}

// CoordinatorConfig configures the push channel.
type CoordinatorConfig struct {
	GatewayURL       string
	Identity         string
	RetryDelay       time.Duration
	WriteTimeout     time.Duration
	DefaultHeartbeat time.Duration
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.DefaultHeartbeat <= 0 {
		c.DefaultHeartbeat = 30 * time.Second
	}
}

// Events posted to the coordinator loop.
type event any

type dialEvent struct {
	gen  uint64
	conn Conn
	err  error
}

type frameEvent struct {
	gen   uint64
	frame models.GatewayFrame
}

type heartbeatEvent struct {
	gen uint64
}

type closedEvent struct {
	gen  uint64
	code int
	text string
	err  error
}

type retryEvent struct {
	gen uint64
}

type pollEvent struct {
	result PollResult
}

type signalEvent struct {
	signal HostSignal
}

type inspectEvent struct {
	fn   func()
	done chan struct{}
}

// Coordinator runs the push and pull channels into one reconciler.
type Coordinator struct {
	cfg        CoordinatorConfig
	dialer     Dialer
	poller     *Poller
	reconciler *presence.Reconciler
	now        func() time.Time

	events      chan event
	done        chan struct{}
	unmount     chan struct{}
	unmountOnce sync.Once
	started     atomic.Bool
	wg          sync.WaitGroup

	// observable copy of state for other goroutines
	gatewayState atomic.Int32

	// owned by the Run goroutine
	runCtx          context.Context
	gen             uint64
	state           GatewayState
	session         *gatewaySession
	shouldReconnect bool
	halted          bool
	retryTimer      *time.Timer
	hidden          bool
	offline         bool

	dialWarn rate.Sometimes
}

// NewCoordinator wires the channels together. The poller's result callback
// is taken over by the coordinator.
func NewCoordinator(cfg CoordinatorConfig, dialer Dialer, poller *Poller, reconciler *presence.Reconciler) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:        cfg,
		dialer:     dialer,
		poller:     poller,
		reconciler: reconciler,
		now:        time.Now,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		unmount:    make(chan struct{}),
		state:      StateIdle,
		dialWarn:   rate.Sometimes{First: 3, Interval: time.Minute},
	}
	poller.SetOnResult(func(r PollResult) { c.post(pollEvent{result: r}) })
	return c
}

// Reconciler returns the reconciler holding canonical state.
func (c *Coordinator) Reconciler() *presence.Reconciler {
	return c.reconciler
}

// State returns the canonical presence state.
func (c *Coordinator) State() models.CanonicalState {
	return c.reconciler.State()
}

// GatewayState returns the current push channel state.
func (c *Coordinator) GatewayState() GatewayState {
	return GatewayState(c.gatewayState.Load())
}

// Signal delivers a host signal. It returns false once the coordinator has stopped.
func (c *Coordinator) Signal(sig HostSignal) bool {
	return c.post(signalEvent{signal: sig})
}

// Unmount stops the coordinator. Run returns once all goroutines have exited.
func (c *Coordinator) Unmount() {
	c.unmountOnce.Do(func() { close(c.unmount) })
}

// Run hydrates from the store, opens both channels, and processes events
// until Unmount is called or ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runCtx = ctx

	// Cached state must be visible before any network activity.
	c.reconciler.Hydrate(ctx)

	c.shouldReconnect = true
	c.connect()
	if err := c.poller.Start(ctx); err != nil {
		logging.Error().Err(err).Msg("[coordinator] Failed to start poller")
	}

	logging.Info().Str("identity", c.cfg.Identity).Str("gateway", c.cfg.GatewayURL).Msg("[coordinator] Presence sync started")

	err := c.loop(ctx)
	c.shutdown(cancel)
	return err
}

func (c *Coordinator) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.unmount:
			return nil
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// shutdown runs on the Run goroutine after the loop exits.
func (c *Coordinator) shutdown(cancel context.CancelFunc) {
	c.shouldReconnect = false
	c.stopRetry()

	// A dial still in flight closes its own connection when it sees done.
	if c.session != nil && c.state.open() {
		c.session.close(websocket.CloseNormalClosure, "unmount")
		metrics.GatewayCloses.WithLabelValues("unmount").Inc()
	}
	c.session = nil

	close(c.done)
	cancel()
	c.poller.Stop()
	c.wg.Wait()
	c.drain()
	c.setState(StateIdle)

	logging.Info().Msg("[coordinator] Presence sync stopped")
}

// drain closes connections from dials that completed during shutdown.
func (c *Coordinator) drain() {
	for {
		select {
		case ev := <-c.events:
			if d, ok := ev.(dialEvent); ok && d.conn != nil {
				closeConn(d.conn)
			}
		default:
			return
		}
	}
}

// post delivers an event to the loop, or returns false once it has stopped.
func (c *Coordinator) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case dialEvent:
		c.onDial(e)
	case frameEvent:
		c.onFrame(ctx, e)
	case heartbeatEvent:
		c.onHeartbeat(e)
	case closedEvent:
		c.onClosed(e)
	case retryEvent:
		c.onRetry(e)
	case pollEvent:
		c.onPoll(ctx, e.result)
	case signalEvent:
		c.onSignal(e.signal)
	case inspectEvent:
		e.fn()
		close(e.done)
	}
}

func (c *Coordinator) setState(s GatewayState) {
	if c.state != s {
		logging.Debug().Str("from", c.state.String()).Str("to", s.String()).Uint64("generation", c.gen).Msg("[gateway] State transition")
	}
	c.state = s
	c.gatewayState.Store(int32(s))
	metrics.SetGatewayState(int(s))
}

// connect starts a dial unless one is already in progress or the socket is open.
func (c *Coordinator) connect() {
	if c.halted || !c.shouldReconnect {
		return
	}
	switch c.state {
	case StateConnecting, StateAwaitingHello, StateSubscribed:
		return
	}
	c.stopRetry()
	c.gen++
	c.setState(StateConnecting)
	metrics.GatewayConnectAttempts.Inc()

	gen := c.gen
	ctx := c.runCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		conn, err := c.dialer.Dial(ctx, c.cfg.GatewayURL)
		if !c.post(dialEvent{gen: gen, conn: conn, err: err}) && conn != nil {
			closeConn(conn)
		}
	}()
}

func (c *Coordinator) onDial(e dialEvent) {
	if e.gen != c.gen || c.state != StateConnecting {
		if e.conn != nil {
			closeConn(e.conn)
		}
		metrics.RecordStaleEvent("dial")
		return
	}

	if e.err != nil {
		metrics.GatewayCloses.WithLabelValues("dial_error").Inc()
		logging.Debug().Err(e.err).Uint64("generation", e.gen).Msg("[gateway] Dial failed")
		c.dialWarn.Do(func() {
			logging.Warn().Err(e.err).Dur("retry_in", c.cfg.RetryDelay).Msg("[gateway] Gateway unreachable, polling continues")
		})
		c.setState(StateErrored)
		c.pollNow(TriggerSocketError)
		c.scheduleRetry()
		return
	}

	if c.halted || !c.shouldReconnect {
		closeConn(e.conn)
		c.setState(StateIdle)
		return
	}

	session := newGatewaySession(e.gen, e.conn, c.cfg.WriteTimeout)
	c.session = session
	c.setState(StateAwaitingHello)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		session.readLoop(c.post)
	}()
}

func (c *Coordinator) onFrame(ctx context.Context, e frameEvent) {
	if e.gen != c.gen || c.session == nil {
		metrics.RecordStaleEvent("frame")
		return
	}
	metrics.GatewayFramesReceived.WithLabelValues(opLabel(e.frame.Op)).Inc()

	switch e.frame.Op {
	case models.OpHello:
		if c.state != StateAwaitingHello {
			logging.Debug().Str("state", c.state.String()).Msg("[gateway] Ignoring unexpected hello")
			return
		}
		interval := heartbeatInterval(e.frame, c.cfg.DefaultHeartbeat)
		if err := c.session.send(subscribeFrame(c.cfg.Identity)); err != nil {
			c.connectionFailed(err)
			return
		}
		c.session.startHeartbeat(interval, c.post, &c.wg)
		c.setState(StateSubscribed)
		logging.Info().Dur("heartbeat", interval).Uint64("generation", c.gen).Msg("[gateway] Subscribed to presence updates")

	case models.OpEvent:
		switch e.frame.Type {
		case models.EventInitState, models.EventPresenceUpdate:
			snap := presence.DecodeRaw(e.frame.Data, c.now())
			c.reconciler.Observe(ctx, snap, presence.SourcePush)
		default:
			logging.Debug().Str("type", e.frame.Type).Msg("[gateway] Ignoring event")
		}

	default:
		logging.Debug().Int("op", e.frame.Op).Msg("[gateway] Ignoring frame")
	}
}

func (c *Coordinator) onHeartbeat(e heartbeatEvent) {
	if e.gen != c.gen || c.session == nil || c.state != StateSubscribed {
		metrics.RecordStaleEvent("heartbeat")
		return
	}
	if err := c.session.send(heartbeatFrame()); err != nil {
		c.connectionFailed(err)
		return
	}
	metrics.GatewayHeartbeatsSent.Inc()
}

func (c *Coordinator) onClosed(e closedEvent) {
	if e.gen != c.gen || c.session == nil {
		metrics.RecordStaleEvent("close")
		return
	}
	c.session.teardown()
	c.session = nil

	switch {
	case isNotMonitoredClose(e.code, e.text):
		metrics.GatewayCloses.WithLabelValues("not_monitored").Inc()
		c.terminate("identity is not monitored by the presence gateway")

	case e.code == websocket.CloseNormalClosure:
		metrics.GatewayCloses.WithLabelValues("normal").Inc()
		logging.Info().Str("reason", e.text).Msg("[gateway] Gateway closed normally")
		c.setState(StateClosed)
		c.setState(StateIdle)

	case e.code != 0 && e.code != websocket.CloseAbnormalClosure:
		metrics.GatewayCloses.WithLabelValues("abnormal").Inc()
		logging.Info().Int("code", e.code).Str("reason", e.text).Dur("retry_in", c.cfg.RetryDelay).Msg("[gateway] Gateway closed")
		c.setState(StateClosed)
		c.scheduleRetry()

	default:
		c.socketError(e.err)
	}
}

// connectionFailed handles a write failure on the current session.
func (c *Coordinator) connectionFailed(err error) {
	if c.session != nil {
		c.session.teardown()
		c.session = nil
	}
	c.socketError(err)
}

// socketError polls immediately so the pull channel covers the gap, then retries.
func (c *Coordinator) socketError(err error) {
	metrics.GatewayCloses.WithLabelValues("error").Inc()
	logging.Warn().Err(err).Dur("retry_in", c.cfg.RetryDelay).Msg("[gateway] Gateway connection failed")
	c.setState(StateErrored)
	c.pollNow(TriggerSocketError)
	c.scheduleRetry()
}

func (c *Coordinator) scheduleRetry() {
	if c.halted || !c.shouldReconnect {
		c.setState(StateIdle)
		return
	}
	c.stopRetry()
	gen := c.gen
	c.retryTimer = time.AfterFunc(c.cfg.RetryDelay, func() {
		c.post(retryEvent{gen: gen})
	})
}

func (c *Coordinator) stopRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Coordinator) onRetry(e retryEvent) {
	if e.gen != c.gen || (c.state != StateClosed && c.state != StateErrored) {
		metrics.RecordStaleEvent("retry")
		return
	}
	c.retryTimer = nil
	c.connect()
}

func (c *Coordinator) onPoll(ctx context.Context, r PollResult) {
	if c.halted {
		return
	}
	if r.NotMonitored() {
		c.terminate("identity is not monitored by the presence provider")
		return
	}
	if r.Err != nil {
		return
	}
	c.reconciler.Observe(ctx, r.Snapshot, presence.SourcePull)
}

func (c *Coordinator) onSignal(sig HostSignal) {
	logging.Debug().Str("signal", sig.String()).Msg("[coordinator] Host signal")
	switch sig {
	case SignalHidden:
		c.hidden = true
	case SignalOffline:
		c.offline = true
	case SignalVisible:
		if c.hidden {
			c.hidden = false
			c.resync(sig)
		}
	case SignalOnline:
		if c.offline {
			c.offline = false
			c.resync(sig)
		}
	}
}

// resync replaces the connection and polls once.
func (c *Coordinator) resync(sig HostSignal) {
	if c.halted || !c.shouldReconnect {
		return
	}
	logging.Info().Str("signal", sig.String()).Msg("[coordinator] Resynchronizing presence")

	c.stopRetry()
	if c.session != nil {
		c.session.close(websocket.CloseNormalClosure, "replaced")
		c.session = nil
		metrics.GatewayCloses.WithLabelValues("replaced").Inc()
	}
	// connect bumps the generation, so an in-flight dial or reader becomes stale.
	c.setState(StateIdle)
	c.connect()
	c.pollNow(TriggerResync)
}

// terminate halts both channels for good and publishes Unavailable.
func (c *Coordinator) terminate(reason string) {
	if c.halted {
		return
	}
	c.halted = true
	c.shouldReconnect = false
	c.stopRetry()
	if c.session != nil {
		c.session.close(websocket.CloseNormalClosure, "not monitored")
		c.session = nil
	}
	c.gen++
	c.setState(StateIdle)
	c.poller.Halt()
	c.reconciler.Fail(reason)
}

func (c *Coordinator) pollNow(reason string) {
	if c.halted {
		return
	}
	c.poller.Trigger(reason)
}

// inspect runs fn on the loop goroutine and waits for it.
func (c *Coordinator) inspect(fn func()) bool {
	done := make(chan struct{})
	if !c.post(inspectEvent{fn: fn, done: done}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-c.done:
		return false
	}
}

func closeConn(conn Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), deadline)
	_ = conn.Close()
}

func opLabel(op int) string {
	switch op {
	case models.OpEvent:
		return "event"
	case models.OpHello:
		return "hello"
	case models.OpSubscribe:
		return "subscribe"
	case models.OpHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

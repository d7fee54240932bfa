// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

/*
gateway.go - Presence Gateway Connection

Push channel. A gatewaySession is one websocket connection instance tagged
with the coordinator generation that created it. Its reader and heartbeat
goroutines never act on their own: they post generation-tagged events to the
coordinator loop, which drops anything from a superseded generation.

Protocol:
  - gateway -> client  op 1 hello      {"heartbeat_interval": ms}
  - client  -> gateway op 2 subscribe  {"subscribe_to_id": id}
  - client  -> gateway op 3 heartbeat  every heartbeat_interval
  - gateway -> client  op 0 event      t = INIT_STATE | PRESENCE_UPDATE
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/models"
)

// CloseNotMonitored is the gateway close code for an identity it does not track.
const CloseNotMonitored = 4004

// maxHeartbeatInterval caps the interval a hello frame may request.
const maxHeartbeatInterval = 10 * time.Minute

// GatewayState is the push channel state.
type GatewayState int32

const (
	StateIdle GatewayState = iota
	StateConnecting
	StateAwaitingHello
	StateSubscribed
	StateClosed
	StateErrored
)

// String returns the state name.
func (s GatewayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// open reports whether the socket is established (hello pending or subscribed).
func (s GatewayState) open() bool {
	return s == StateAwaitingHello || s == StateSubscribed
}

// Conn is the subset of *websocket.Conn used by a session.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Ensure WebSocketDialer implements Dialer
var _ Dialer = (*WebSocketDialer)(nil)

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	dialer websocket.Dialer
	header http.Header
}

// NewWebSocketDialer creates a dialer with the given handshake timeout.
func NewWebSocketDialer(handshakeTimeout time.Duration) *WebSocketDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &WebSocketDialer{
		dialer: websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  handshakeTimeout,
			EnableCompression: true,
		},
		header: http.Header{"User-Agent": []string{"presencesync"}},
	}
}

// Dial establishes a websocket connection.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, nil
}

// gatewaySession is one connection instance.
type gatewaySession struct {
	gen          uint64
	conn         Conn
	writeTimeout time.Duration

	heartbeatStop chan struct{}
	stopOnce      sync.Once
	closeOnce     sync.Once
}

func newGatewaySession(gen uint64, conn Conn, writeTimeout time.Duration) *gatewaySession {
	return &gatewaySession{
		gen:           gen,
		conn:          conn,
		writeTimeout:  writeTimeout,
		heartbeatStop: make(chan struct{}),
	}
}

// readLoop reads frames until the connection fails, posting each to the
// coordinator. It exits after posting the terminating error.
func (s *gatewaySession) readLoop(post func(event) bool) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			ev := closedEvent{gen: s.gen, err: err}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				ev.code = closeErr.Code
				ev.text = closeErr.Text
			}
			post(ev)
			return
		}

		var frame models.GatewayFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logging.Debug().Err(err).Uint64("generation", s.gen).Msg("[gateway] Ignoring malformed frame")
			continue
		}
		if !post(frameEvent{gen: s.gen, frame: frame}) {
			return
		}
	}
}

// startHeartbeat posts a heartbeat event every interval until the session stops.
func (s *gatewaySession) startHeartbeat(interval time.Duration, post func(event) bool, wg *sync.WaitGroup) {
	if interval <= 0 {
		interval = maxHeartbeatInterval
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.heartbeatStop:
				return
			case <-ticker.C:
				if !post(heartbeatEvent{gen: s.gen}) {
					return
				}
			}
		}
	}()
}

// stopHeartbeat cancels the heartbeat ticker. Idempotent.
func (s *gatewaySession) stopHeartbeat() {
	s.stopOnce.Do(func() { close(s.heartbeatStop) })
}

// send writes one frame.
func (s *gatewaySession) send(frame models.GatewayFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write op %d: %w", frame.Op, err)
	}
	return nil
}

// close stops the heartbeat, sends a close frame, and closes the socket.
func (s *gatewaySession) close(code int, text string) {
	s.stopHeartbeat()
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		if err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
			logging.Debug().Err(err).Uint64("generation", s.gen).Msg("[gateway] Close frame not sent")
		}
		_ = s.conn.Close()
	})
}

// teardown closes the socket without a close frame, after the peer closed it or it failed.
func (s *gatewaySession) teardown() {
	s.stopHeartbeat()
	s.closeOnce.Do(func() { _ = s.conn.Close() })
}

// subscribeFrame builds the op 2 subscribe request.
func subscribeFrame(identity string) models.GatewayFrame {
	data, _ := json.Marshal(models.SubscribeData{SubscribeToID: identity})
	return models.GatewayFrame{Op: models.OpSubscribe, Data: data}
}

// heartbeatFrame builds the op 3 heartbeat.
func heartbeatFrame() models.GatewayFrame {
	return models.GatewayFrame{Op: models.OpHeartbeat}
}

// heartbeatInterval extracts the interval from a hello frame. Missing or
// non-positive values yield fallback; values above maxHeartbeatInterval are
// capped before conversion so they cannot overflow.
func heartbeatInterval(frame models.GatewayFrame, fallback time.Duration) time.Duration {
	var hello models.HelloData
	if err := json.Unmarshal(frame.Data, &hello); err != nil || hello.HeartbeatInterval <= 0 {
		return fallback
	}
	if hello.HeartbeatInterval > maxHeartbeatInterval.Milliseconds() {
		return maxHeartbeatInterval
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond
}

// isNotMonitoredClose reports whether a close frame is the terminal rejection.
func isNotMonitoredClose(code int, text string) bool {
	if code == CloseNotMonitored {
		return true
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "not_monitored") || strings.Contains(lower, "not monitored")
}

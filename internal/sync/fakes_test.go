// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package sync

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/presencesync/internal/models"
	"github.com/tomtom215/presencesync/internal/presence"
)

const testIdentity = "94490510688792576"

// fakeRead is one scripted ReadMessage result.
type fakeRead struct {
	data []byte
	err  error
}

// fakeConn is a scripted gateway connection.
type fakeConn struct {
	reads     chan fakeRead
	closedCh  chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	writes     [][]byte
	closeCodes []int
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:    make(chan fakeRead, 16),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.reads:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-f.closedCh:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return net.ErrClosed
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return websocket.ErrCloseSent
	}
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.closeCodes = append(f.closeCodes, int(binary.BigEndian.Uint16(data[:2])))
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.closedCh)
	})
	return nil
}

// sendFrame scripts an inbound frame.
func (f *fakeConn) sendFrame(t *testing.T, frame models.GatewayFrame) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	f.reads <- fakeRead{data: data}
}

// sendHello scripts an op 1 hello.
func (f *fakeConn) sendHello(t *testing.T, intervalMS int64) {
	t.Helper()
	data, _ := json.Marshal(models.HelloData{HeartbeatInterval: intervalMS})
	f.sendFrame(t, models.GatewayFrame{Op: models.OpHello, Data: data})
}

// sendPresence scripts an op 0 event.
func (f *fakeConn) sendPresence(t *testing.T, eventType string, data *models.PresenceData) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal presence: %v", err)
	}
	f.sendFrame(t, models.GatewayFrame{Op: models.OpEvent, Type: eventType, Data: raw})
}

// sendClose scripts a close frame from the gateway.
func (f *fakeConn) sendClose(code int, text string) {
	f.reads <- fakeRead{err: &websocket.CloseError{Code: code, Text: text}}
}

// sendError scripts a transport failure with no close frame.
func (f *fakeConn) sendError(err error) {
	f.reads <- fakeRead{err: err}
}

// countOp returns how many frames with op were written.
func (f *fakeConn) countOp(op int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.writes {
		var frame models.GatewayFrame
		if err := json.Unmarshal(w, &frame); err == nil && frame.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeConn) frames() []models.GatewayFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.GatewayFrame, 0, len(f.writes))
	for _, w := range f.writes {
		var frame models.GatewayFrame
		if err := json.Unmarshal(w, &frame); err == nil {
			out = append(out, frame)
		}
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) sentCloseCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.closeCodes...)
}

// fakeDialer hands out fakeConns in order.
type fakeDialer struct {
	dialed chan *fakeConn

	mu     sync.Mutex
	dials  int
	block  chan struct{}
	err    error
	onDial func()
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	block, err, hook := d.block, d.err, d.onDial
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	conn := newFakeConn()
	d.dialed <- conn
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// next waits for the next dialed connection.
func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-d.dialed:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// fakeFetcher returns a scripted presence payload.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	data    *models.PresenceData
	err     error
	onFetch func()
}

func (f *fakeFetcher) FetchPresence(_ context.Context) (*models.PresenceData, error) {
	f.mu.Lock()
	f.calls++
	data, err, hook := f.data, f.err, f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return data, err
}

func (f *fakeFetcher) set(data *models.PresenceData, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	f.err = err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// listening builds a payload with the dedicated now-playing object.
func listening(song, artist, trackID string) *models.PresenceData {
	on := true
	return &models.PresenceData{
		ListeningToSpotify: &on,
		Spotify: &models.SpotifyData{
			TrackID:     trackID,
			Song:        song,
			Artist:      artist,
			Album:       "Album of " + song,
			AlbumArtURL: "https://i.scdn.co/image/" + trackID,
		},
	}
}

// notListening builds an explicit inactive payload.
func notListening() *models.PresenceData {
	off := false
	return &models.PresenceData{ListeningToSpotify: &off}
}

// coordinatorHarness runs a coordinator against fakes.
type coordinatorHarness struct {
	c       *Coordinator
	dialer  *fakeDialer
	fetcher *fakeFetcher
	store   *presence.MemoryStore
	results chan PollResult
	runErr  chan error
}

// newHarness builds a coordinator with fast retries and a slow poll interval.
// Call start to run it.
func newHarness(t *testing.T) *coordinatorHarness {
	t.Helper()
	h := &coordinatorHarness{
		dialer:  newFakeDialer(),
		fetcher: &fakeFetcher{data: notListening()},
		store:   presence.NewMemoryStore(),
		results: make(chan PollResult, 16),
		runErr:  make(chan error, 1),
	}
	poller := NewPoller(h.fetcher, time.Hour)
	h.c = NewCoordinator(CoordinatorConfig{
		GatewayURL:       "ws://gateway.test/socket",
		Identity:         testIdentity,
		RetryDelay:       20 * time.Millisecond,
		WriteTimeout:     time.Second,
		DefaultHeartbeat: time.Hour,
	}, h.dialer, poller, presence.NewReconciler(h.store))

	// Tap poll results after the coordinator has queued them.
	post := poller.onResult
	poller.SetOnResult(func(r PollResult) {
		post(r)
		select {
		case h.results <- r:
		default:
		}
	})
	return h
}

func (h *coordinatorHarness) start(t *testing.T) {
	t.Helper()
	go func() { h.runErr <- h.c.Run(context.Background()) }()
	t.Cleanup(func() {
		h.c.Unmount()
		select {
		case <-h.runErr:
		case <-time.After(5 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
}

// nextResult waits for a poll result and for the coordinator to process it.
func (h *coordinatorHarness) nextResult(t *testing.T) PollResult {
	t.Helper()
	select {
	case r := <-h.results:
		h.barrier(t)
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll result")
		return PollResult{}
	}
}

// barrier waits until every event queued so far has been handled.
func (h *coordinatorHarness) barrier(t *testing.T) {
	t.Helper()
	if !h.c.inspect(func() {}) {
		t.Fatal("coordinator stopped")
	}
}

// generation reads the current generation on the loop goroutine.
func (h *coordinatorHarness) generation(t *testing.T) uint64 {
	t.Helper()
	var gen uint64
	if !h.c.inspect(func() { gen = h.c.gen }) {
		t.Fatal("coordinator stopped")
	}
	return gen
}

// subscribe dials, answers hello, and waits for the subscribe frame.
func (h *coordinatorHarness) subscribe(t *testing.T) *fakeConn {
	t.Helper()
	conn := h.dialer.next(t)
	conn.sendHello(t, 0)
	waitFor(t, func() bool { return conn.countOp(models.OpSubscribe) == 1 }, "subscribe frame")
	h.barrier(t)
	return conn
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

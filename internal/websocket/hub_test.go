// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates a hub and runs it until the test ends
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client without a connection
func createTestClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 16)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
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

func liveState(song string) models.CanonicalState {
	return models.LiveState(models.PresenceSnapshot{Active: true, Song: song, Artist: "Artist", TrackID: "t-" + song})
}

func TestNewHub(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", hub.clients != nil},
		{"notify channel", hub.notify != nil},
		{"done channel", hub.done != nil},
		{"Register channel", hub.Register != nil},
		{"Unregister channel", hub.Unregister != nil},
		{"empty clients", len(hub.clients) == 0},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s not initialized", c.name)
		}
	}
}

func TestHub_BroadcastPresence(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	clients := []*Client{createTestClient(hub), createTestClient(hub), createTestClient(hub)}
	for _, c := range clients {
		hub.Register <- c
	}
	waitForClients(t, hub, len(clients))

	hub.BroadcastPresence(liveState("Song A"))

	for i, c := range clients {
		msg := receive(t, c)
		if msg.Type != MessageTypePresence {
			t.Errorf("client %d: type = %q, want presence", i, msg.Type)
		}
		view, ok := msg.Data.(models.PresenceView)
		if !ok {
			t.Fatalf("client %d: data type %T", i, msg.Data)
		}
		if view.Kind != models.StateLive || view.Snapshot.Song != "Song A" {
			t.Errorf("client %d: view = %+v", i, view)
		}
		if view.OpenTrackURL != "https://open.spotify.com/track/t-Song A" {
			t.Errorf("client %d: open track url = %q", i, view.OpenTrackURL)
		}
	}
}

func TestHub_GreetsNewClientWithCurrentState(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	hub.SetSnapshotSource(func() models.PresenceView {
		return models.UnavailableState("not monitored").View()
	})

	client := createTestClient(hub)
	hub.Register <- client

	msg := receive(t, client)
	view, ok := msg.Data.(models.PresenceView)
	if !ok || view.Kind != models.StateUnavailable {
		t.Errorf("greeting = %+v, want unavailable view", msg)
	}
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	hub.Unregister <- client
	waitForClients(t, hub, 0)

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}

	// Unregistering twice is harmless.
	hub.Unregister <- client
	waitForClients(t, hub, 0)
}

func TestHub_DropsSlowClients(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	hub.Register <- slow
	waitForClients(t, hub, 1)

	hub.BroadcastPresence(liveState("1"))
	waitFor(t, func() bool { return len(slow.send) == 1 }, "first message buffered")
	hub.BroadcastPresence(liveState("2"))
	waitForClients(t, hub, 0)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	client := createTestClient(hub)
	hub.Register <- client
	waitForClients(t, hub, 1)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	if hub.GetClientCount() != 0 {
		t.Errorf("client count after shutdown = %d", hub.GetClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after shutdown")
	}
}

func TestHub_BroadcastKeepsLatestPending(t *testing.T) {
	t.Parallel()

	// Not running: every broadcast stays pending.
	hub := NewHub()
	for i := 0; i < 100; i++ {
		hub.BroadcastPresence(liveState(fmt.Sprintf("Song %d", i)))
	}

	if n := len(hub.notify); n != 1 {
		t.Errorf("pending notifications = %d, want 1", n)
	}
	msg, ok := hub.takePending()
	if !ok {
		t.Fatal("expected a pending broadcast")
	}
	view, _ := msg.Data.(models.PresenceView)
	if view.Snapshot == nil || view.Snapshot.Song != "Song 99" {
		t.Errorf("pending view = %+v, want Song 99", view)
	}
	if _, ok := hub.takePending(); ok {
		t.Error("pending broadcast should be cleared after take")
	}
}

func TestHub_BurstEndsOnNewestState(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	client := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 256)}
	hub.Register <- client
	waitForClients(t, hub, 1)

	for i := 0; i < 200; i++ {
		hub.BroadcastPresence(liveState(fmt.Sprintf("Song %d", i)))
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				t.Fatal("client dropped during burst")
			}
			view, _ := msg.Data.(models.PresenceView)
			if view.Snapshot != nil && view.Snapshot.Song == "Song 199" {
				return
			}
		case <-deadline:
			t.Fatal("newest state never delivered")
		}
	}
}

func TestHub_RegistrationAfterStop(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	client := createTestClient(hub)
	if !hub.RegisterClient(client) {
		t.Fatal("RegisterClient on a running hub = false")
	}
	waitForClients(t, hub, 1)

	cancel()
	<-errCh

	// A read pump exiting after shutdown must not block on Unregister.
	results := make(chan bool, 2)
	go func() {
		results <- hub.UnregisterClient(client)
		results <- hub.RegisterClient(createTestClient(hub))
	}()
	for i, name := range []string{"UnregisterClient", "RegisterClient"} {
		select {
		case ok := <-results:
			if ok {
				t.Errorf("%s after stop = true, want false", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s blocked after hub stopped (call %d)", name, i)
		}
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %s", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %s", got)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	hub.SetSnapshotSource(func() models.PresenceView { return models.AbsentState().View() })

	upgrader := gorillaws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		if hub.RegisterClient(client) {
			client.Start()
		}
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var greeting struct {
		Type string              `json:"type"`
		Data models.PresenceView `json:"data"`
	}
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if greeting.Type != MessageTypePresence || greeting.Data.Kind != models.StateAbsent {
		t.Errorf("greeting = %+v", greeting)
	}

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", pong.Type)
	}

	hub.BroadcastPresence(liveState("Live Song"))
	var update struct {
		Type string              `json:"type"`
		Data models.PresenceView `json:"data"`
	}
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Data.Kind != models.StateLive || update.Data.Snapshot.Song != "Live Song" {
		t.Errorf("update = %+v", update)
	}
}

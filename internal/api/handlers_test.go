// Presencesync - Real-time listening presence synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencesync

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/presencesync/internal/logging"
	"github.com/tomtom215/presencesync/internal/models"
	syncpkg "github.com/tomtom215/presencesync/internal/sync"
	ws "github.com/tomtom215/presencesync/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "console",
		Output: io.Discard,
	})
}

// fakeSource is a scripted PresenceSource.
type fakeSource struct {
	mu      sync.Mutex
	state   models.CanonicalState
	gateway syncpkg.GatewayState
	accept  bool
	signals []syncpkg.HostSignal
}

func (f *fakeSource) State() models.CanonicalState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) GatewayState() syncpkg.GatewayState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gateway
}

func (f *fakeSource) Signal(sig syncpkg.HostSignal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept {
		return false
	}
	f.signals = append(f.signals, sig)
	return true
}

func liveSource() *fakeSource {
	return &fakeSource{
		state: models.LiveState(models.PresenceSnapshot{
			Active:  true,
			Song:    "Windowlicker",
			Artist:  "Aphex Twin",
			Album:   "Windowlicker",
			TrackID: "5bZ7MbwtG9B3hWJ0PmU9fP",
		}),
		gateway: syncpkg.StateSubscribed,
		accept:  true,
	}
}

// newTestRouter builds the full middleware stack with rate limiting disabled.
func newTestRouter(source PresenceSource, hub *ws.Hub) http.Handler {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(NewHandler(source, hub, nil), NewChiMiddleware(cfg)).SetupChi()
}

// decodeResponse decodes an APIResponse with Data left as raw JSON.
func decodeResponse(t *testing.T, body io.Reader) (models.APIResponse, json.RawMessage) {
	t.Helper()
	var envelope struct {
		models.APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.APIResponse, envelope.Data
}

func TestPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		source     PresenceSource
		wantStatus int
		wantKind   models.StateKind
		wantURL    string
	}{
		{
			name:       "live",
			source:     liveSource(),
			wantStatus: http.StatusOK,
			wantKind:   models.StateLive,
			wantURL:    models.OpenTrackBaseURL + "5bZ7MbwtG9B3hWJ0PmU9fP",
		},
		{
			name:       "absent",
			source:     &fakeSource{state: models.AbsentState()},
			wantStatus: http.StatusOK,
			wantKind:   models.StateAbsent,
		},
		{
			name:       "unavailable",
			source:     &fakeSource{state: models.UnavailableState("not monitored")},
			wantStatus: http.StatusOK,
			wantKind:   models.StateUnavailable,
		},
		{
			name:       "no coordinator",
			source:     nil,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newTestRouter(tt.source, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
			resp, data := decodeResponse(t, rec.Body)
			if tt.wantStatus != http.StatusOK {
				if resp.Status != "error" || resp.Error == nil || resp.Error.Code != "SERVICE_UNAVAILABLE" {
					t.Errorf("error response = %+v", resp)
				}
				return
			}

			var view models.PresenceView
			if err := json.Unmarshal(data, &view); err != nil {
				t.Fatalf("decode view: %v", err)
			}
			if view.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", view.Kind, tt.wantKind)
			}
			if view.OpenTrackURL != tt.wantURL {
				t.Errorf("open_track_url = %q, want %q", view.OpenTrackURL, tt.wantURL)
			}
		})
	}
}

func TestSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		accept     bool
		wantStatus int
		wantSignal syncpkg.HostSignal
	}{
		{"visible", "/api/v1/signals/visible", true, http.StatusAccepted, syncpkg.SignalVisible},
		{"case insensitive", "/api/v1/signals/OFFLINE", true, http.StatusAccepted, syncpkg.SignalOffline},
		{"unknown", "/api/v1/signals/minimized", true, http.StatusBadRequest, 0},
		{"coordinator stopped", "/api/v1/signals/online", false, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := liveSource()
			source.accept = tt.accept
			router := newTestRouter(source, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(source.signals) != 0 {
					t.Errorf("signals delivered = %v, want none", source.signals)
				}
				return
			}
			if len(source.signals) != 1 || source.signals[0] != tt.wantSignal {
				t.Errorf("signals = %v, want [%v]", source.signals, tt.wantSignal)
			}
			_, data := decodeResponse(t, rec.Body)
			var accepted models.SignalAccepted
			if err := json.Unmarshal(data, &accepted); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if accepted.Signal != tt.wantSignal.String() {
				t.Errorf("signal = %q, want %q", accepted.Signal, tt.wantSignal.String())
			}
		})
	}
}

func TestSignal_RejectsGet(t *testing.T) {
	t.Parallel()

	router := newTestRouter(liveSource(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/signals/visible", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		source     *fakeSource
		wantStatus string
		wantGW     string
	}{
		{"subscribed", liveSource(), "healthy", "subscribed"},
		{"reconnecting", &fakeSource{state: models.AbsentState(), gateway: syncpkg.StateClosed}, "degraded", "closed"},
		{"not monitored", &fakeSource{state: models.UnavailableState("not monitored")}, "unavailable", "idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			newTestRouter(tt.source, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			_, data := decodeResponse(t, rec.Body)
			var health models.HealthStatus
			if err := json.Unmarshal(data, &health); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if health.Status != tt.wantStatus || health.GatewayState != tt.wantGW {
				t.Errorf("health = %+v, want status %q gateway %q", health, tt.wantStatus, tt.wantGW)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(liveSource(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp, _ := decodeResponse(t, rec.Body)
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(liveSource(), nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/presence", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("metrics output missing api_requests_total")
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(liveSource(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebSocket_StreamsPresence(t *testing.T) {
	t.Parallel()

	source := liveSource()
	hub := ws.NewHub()
	hub.SetSnapshotSource(func() models.PresenceView { return source.State().View() })
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

	server := httptest.NewServer(newTestRouter(source, hub))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"

	// Missing Origin is rejected
	if _, resp, err := gorillaws.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without Origin succeeded")
	} else if resp != nil {
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status without Origin = %d, want 403", resp.StatusCode)
		}
	}

	conn, resp, err := gorillaws.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
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
	if greeting.Type != ws.MessageTypePresence || greeting.Data.Snapshot == nil || greeting.Data.Snapshot.Song != "Windowlicker" {
		t.Errorf("greeting = %+v", greeting)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"missing origin", nil, "", false},
		{"unconfigured allows any", nil, "http://evil.test", true},
		{"wildcard", []string{"*"}, "http://any.test", true},
		{"listed", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"unlisted", []string{"http://localhost:3000"}, "http://evil.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHandler(nil, nil, tt.origins)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := h.checkWebSocketOrigin(req); got != tt.want {
				t.Errorf("checkWebSocketOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

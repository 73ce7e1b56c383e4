package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/config"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/logging"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

var tick0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

// testServer creates a Server over a test-mode twin.
func testServer(t *testing.T, deps Deps) (*Server, *twin.Twin) {
	t.Helper()

	tw, err := twin.New(twin.Config{Mode: twin.ModeTest, RemoteQueue: 4}, twin.Deps{
		Input:  transport.NewMockInput(),
		Output: transport.NewMockOutput(),
	})
	if err != nil {
		t.Fatalf("twin.New() error = %v", err)
	}
	if err := tw.Start(context.Background()); err != nil {
		t.Fatalf("twin.Start() error = %v", err)
	}
	t.Cleanup(func() { _ = tw.Stop() })

	deps.Logger = logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	deps.Twin = tw
	deps.Store = tw.Store()
	deps.WS = config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	deps.Version = "test"

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, tw
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger succeeded")
	}
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
	if _, err := New(Deps{Logger: logger}); err == nil {
		t.Error("New() without twin succeeded")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantField  string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"failing check", map[string]HealthChecker{"mqtt": failingCheck{}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tw := testServer(t, Deps{Checks: tt.checks})

			rec := doRequest(t, srv.Handler(), http.MethodGet, "/health", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["status"] != tt.wantField {
				t.Errorf("status field = %v", body["status"])
			}
			if body["session"] != tw.Session() || body["link"] != "disconnected" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestGetState(t *testing.T) {
	srv, _ := testServer(t, Deps{})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snapshot state.AppState
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Audio.Volume != 25 || snapshot.Lights.DRLMode != state.DRLAuto {
		t.Errorf("snapshot = %+v", snapshot.Audio)
	}
}

func TestGetSlice(t *testing.T) {
	srv, _ := testServer(t, Deps{})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/state/climate", http.StatusOK},
		{"/api/v1/state/ENERGY", http.StatusOK},
		{"/api/v1/state/all", http.StatusNotFound},
		{"/api/v1/state/warp_core", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, srv.Handler(), http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	body := decodeBody(t, doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/state/climate", ""))
	value, _ := body["value"].(map[string]any)
	if body["slice"] != "climate" || value["target_temp"] != 22.0 {
		t.Errorf("body = %v", body)
	}
}

func TestPostAction(t *testing.T) {
	srv, tw := testServer(t, Deps{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"command":"set_volume","parameters":{"value":33}}`, http.StatusAccepted},
		{"bad json", `{`, http.StatusBadRequest},
		{"missing command", `{"parameters":{}}`, http.StatusBadRequest},
		{"unknown command", `{"command":"open_sunroof"}`, http.StatusUnprocessableEntity},
		{"bad parameter", `{"command":"set_fan_speed","parameters":{"value":"max"}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/actions", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	if tw.State().Audio.Volume != 25 {
		t.Fatal("action applied before the tick")
	}
	tw.Update(tick0)
	if tw.State().Audio.Volume != 33 {
		t.Errorf("Volume = %d, want 33", tw.State().Audio.Volume)
	}
}

func TestPostActionQueueFull(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	body := `{"command":"set_volume","parameters":{"value":10}}`

	for i := 0; i < 4; i++ {
		if rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/actions", body); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/actions", body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if decodeBody(t, rec)["code"] != ErrCodeBusy {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListings(t *testing.T) {
	srv, _ := testServer(t, Deps{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("virtualtwin_ticks_total 0\n"))
	})})

	tests := []struct {
		path    string
		wantKey string
	}{
		{"/api/v1/actions", "commands"},
		{"/api/v1/rules", "rules"},
		{"/api/v1/stats", "session"},
		{"/api/v1/system", "runtime"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, srv.Handler(), http.MethodGet, tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if _, ok := decodeBody(t, rec)[tt.wantKey]; !ok {
				t.Errorf("response missing %q: %s", tt.wantKey, rec.Body.String())
			}
		})
	}

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "virtualtwin_ticks_total") {
		t.Errorf("/metrics body = %q", rec.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := testServer(t, Deps{})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", rec.Header().Get("X-Request-ID"))
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocketStream(t *testing.T) {
	srv, tw := testServer(t, Deps{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	unsubscribe := srv.streamer.subscribe()
	defer unsubscribe()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"state.audio"}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	if msg := readEvent(t, conn); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("first message = %+v, want subscribe response", msg)
	}
	snapshot := readEvent(t, conn)
	if snapshot.Type != WSTypeEvent || snapshot.EventType != "state.audio" {
		t.Fatalf("second message = %+v, want audio snapshot", snapshot)
	}

	_ = tw.Enqueue(state.SetVolume{Volume: 50, Origin: state.OriginUser})
	_ = tw.Enqueue(state.SetTargetTemp{Celsius: 20, Origin: state.OriginUser})
	tw.Update(tick0)

	if n := srv.streamer.flush(); n < 2 {
		t.Fatalf("flush() = %d, want audio and climate at least", n)
	}

	event := readEvent(t, conn)
	if event.EventType != "state.audio" {
		t.Fatalf("event = %+v, want state.audio only", event)
	}
	payload, _ := event.Payload.(map[string]any)
	value, _ := payload["value"].(map[string]any)
	if value["volume"] != 50.0 {
		t.Errorf("streamed volume = %v, want 50", value["volume"])
	}
}

func TestWebSocketUnknownType(t *testing.T) {
	srv, _ := testServer(t, Deps{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"launch","id":"x"}`))
	if msg := readEvent(t, conn); msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("message = %+v, want error", msg)
	}

	_ = conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"})
	if msg := readEvent(t, conn); msg.Type != WSTypePong {
		t.Errorf("message = %+v, want pong", msg)
	}
}

func TestIsSubscribedAll(t *testing.T) {
	c := &WSClient{subscriptions: map[string]struct{}{ChannelStateAll: {}}}

	if !c.isSubscribed("state.energy") {
		t.Error("state.all does not match state.energy")
	}
	if c.isSubscribed("system.alert") {
		t.Error("state.all matched a non-state channel")
	}
}

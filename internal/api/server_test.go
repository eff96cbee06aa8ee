package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
	"autoclicker/internal/protocol"
	"autoclicker/internal/ui"
)

type countingSim struct {
	calls atomic.Int64
}

func (s *countingSim) Simulate(input.Action) error {
	s.calls.Add(1)
	return nil
}

type testEnv struct {
	server *Server
	panel  *ui.Panel
	plane  *control.Plane
	sim    *countingSim
	http   *httptest.Server
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	panel, err := ui.NewPanel(control.RepeatSettings{Delay: 5 * time.Millisecond, Button: input.ButtonLeft})
	if err != nil {
		t.Fatal(err)
	}
	sim := &countingSim{}

	hub := NewHub(panel, nil)
	plane := control.New(control.Deps{
		Simulator: sim,
		Settings:  panel,
		Renderer:  ui.Fanout{panel, hub},
	})
	panel.Connect(plane)
	server := NewServer(plane, panel, hub, token, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		plane.Run(ctx)
		close(done)
	}()
	go hub.Run(ctx)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	env := &testEnv{server: server, panel: panel, plane: plane, sim: sim, http: ts}
	env.waitStatus(t, token, func(p protocol.StatusPayload) bool { return p.Hotkey == "F9" })
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) status(t *testing.T, token string) protocol.StatusPayload {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/status", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var p protocol.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *testEnv) waitStatus(t *testing.T, token string, ok func(protocol.StatusPayload) bool) protocol.StatusPayload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		p := e.status(t, token)
		if ok(p) {
			return p
		}
		if time.Now().After(deadline) {
			t.Fatalf("Status never matched, last: %+v", p)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	env := newTestEnv(t, "secret")
	resp := env.do(t, http.MethodGet, "/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, "secret")

	if resp := env.do(t, http.MethodGet, "/api/status", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/status", "wrong", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/status?token=secret", "", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/status", "secret", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", resp.StatusCode)
	}
}

func TestStatusStartsDisarmed(t *testing.T) {
	env := newTestEnv(t, "")
	p := env.status(t, "")
	if p.Armed {
		t.Error("Expected disarmed")
	}
	if p.Hotkey != "F9" {
		t.Errorf("Expected hotkey F9, got %s", p.Hotkey)
	}
	if p.DelayMillis != 5 || p.Button != "left" {
		t.Errorf("Unexpected settings in status: %+v", p)
	}
}

func TestToggleArmsAndDisarms(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/toggle", "", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	env.waitStatus(t, "", func(p protocol.StatusPayload) bool { return p.Armed })

	deadline := time.Now().Add(2 * time.Second)
	for env.sim.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("Worker never clicked")
		}
		time.Sleep(time.Millisecond)
	}

	env.do(t, http.MethodPost, "/api/toggle", "", "")
	env.waitStatus(t, "", func(p protocol.StatusPayload) bool { return !p.Armed })

	if env.panel.View().Armed {
		t.Error("Expected panel to show disarmed")
	}
}

func TestToggleRequiresPost(t *testing.T) {
	env := newTestEnv(t, "")
	if resp := env.do(t, http.MethodGet, "/api/toggle", "", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}

func TestRebind(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/rebind", "", "")

	p := env.status(t, "")
	if !p.AwaitingRebind {
		t.Error("Expected awaiting rebind")
	}

	env.plane.Send(control.KeyObserved{Key: "F6"})
	p = env.waitStatus(t, "", func(p protocol.StatusPayload) bool { return !p.AwaitingRebind })
	if p.Hotkey != "F6" {
		t.Errorf("Expected hotkey F6, got %s", p.Hotkey)
	}
	if p.Armed {
		t.Error("Rebind must not arm the clicker")
	}
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/settings", "", `{"delay":"250","button":"right"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	s, _ := env.panel.Settings()
	if s.Delay != 250*time.Millisecond || s.Button != input.ButtonRight {
		t.Errorf("Unexpected settings: %+v", s)
	}

	for _, body := range []string{`{"delay":"-1"}`, `{"delay":"18446744073710"}`, `{"button":"thumb"}`, `{"delay":`} {
		if resp := env.do(t, http.MethodPost, "/api/settings", "", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}

	// A rejected button must not apply the delay sent with it
	env.do(t, http.MethodPost, "/api/settings", "", `{"delay":"1","button":"thumb"}`)
	s, _ = env.panel.Settings()
	if s.Delay != 250*time.Millisecond {
		t.Errorf("Expected delay unchanged, got %v", s.Delay)
	}

	resp = env.do(t, http.MethodGet, "/api/settings", "", "")
	var got map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["delay_ms"] != float64(250) || got["button"] != "right" {
		t.Errorf("Unexpected settings response: %v", got)
	}
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML, got %s", ct)
	}

	if resp := env.do(t, http.MethodGet, "/nope", "", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	s := &Server{log: zap.NewNop()}
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, ok func(protocol.Message) bool) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if ok(msg) {
			return msg
		}
	}
}

func TestWebSocketCommands(t *testing.T) {
	env := newTestEnv(t, "secret")
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?token=secret"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	first := readUntil(t, conn, func(protocol.Message) bool { return true })
	if first.Type != protocol.TypeStatus {
		t.Fatalf("Expected status greeting, got %s", first.Type)
	}

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeToggle}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m protocol.Message) bool {
		p, ok := m.Payload.(*protocol.StatusPayload)
		return ok && p.Armed
	})

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeSettings, Payload: protocol.SettingsPayload{Delay: "x"}}); err != nil {
		t.Fatal(err)
	}
	notice := readUntil(t, conn, func(m protocol.Message) bool { return m.Type == protocol.TypeNotice })
	if !strings.Contains(notice.Payload.(*protocol.NoticePayload).Message, "delay") {
		t.Errorf("Unexpected notice: %+v", notice.Payload)
	}

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeSettings, Payload: protocol.SettingsPayload{Button: "middle"}}); err != nil {
		t.Fatal(err)
	}
	settings := readUntil(t, conn, func(m protocol.Message) bool { return m.Type == protocol.TypeSettings })
	if settings.Payload.(*protocol.SettingsPayload).Button != "middle" {
		t.Errorf("Unexpected settings: %+v", settings.Payload)
	}

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeToggle}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(m protocol.Message) bool {
		p, ok := m.Payload.(*protocol.StatusPayload)
		return ok && !p.Armed
	})
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", want, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubTracksClients(t *testing.T) {
	env := newTestEnv(t, "")
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	hub := env.server.hub

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer second.Close()
	waitClients(t, hub, 2)

	first.Close()
	waitClients(t, hub, 1)
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t, "secret")
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}
}

func TestStartServesUntilCancelled(t *testing.T) {
	panel, err := ui.NewPanel(control.RepeatSettings{Delay: time.Millisecond, Button: input.ButtonLeft})
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(nil, panel, NewHub(panel, nil), "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0", ready) }()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

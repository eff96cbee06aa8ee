package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"autoclicker/internal/protocol"
)

// fakeServer greets with a status and answers toggle and settings commands
type fakeServer struct {
	token    string
	hangUp   bool
	mu       sync.Mutex
	armed    bool
	received []protocol.MessageType
	conns    int
}

func (s *fakeServer) status() protocol.Message {
	return protocol.Message{Type: protocol.TypeStatus, Payload: protocol.StatusPayload{Armed: s.armed, Hotkey: "F9"}}
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && r.URL.Query().Get("token") != s.token {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns++
	greeting := s.status()
	s.mu.Unlock()
	if err := conn.WriteJSON(greeting); err != nil || s.hangUp {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, msg.Type)
		var reply []protocol.Message
		switch msg.Type {
		case protocol.TypeToggle:
			s.armed = !s.armed
			reply = append(reply, s.status())
		case protocol.TypeSettings:
			reply = append(reply,
				protocol.Message{Type: protocol.TypeSettings, Payload: msg.Payload},
				protocol.Message{Type: protocol.TypeNotice, Payload: protocol.NoticePayload{Message: "bad delay"}})
		}
		s.mu.Unlock()

		for _, m := range reply {
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
	}
}

func newFake(t *testing.T, token string) (*fakeServer, string) {
	t.Helper()
	fake := &fakeServer{token: token}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return fake, strings.TrimPrefix(ts.URL, "http://")
}

func TestURL(t *testing.T) {
	c := NewClient("127.0.0.1:18081", "a b", nil)
	if got := c.URL(); got != "ws://127.0.0.1:18081/ws?token=a+b" {
		t.Errorf("Unexpected URL: %s", got)
	}
	c = NewClient("127.0.0.1:18081", "", nil)
	if got := c.URL(); got != "ws://127.0.0.1:18081/ws" {
		t.Errorf("Unexpected URL: %s", got)
	}
}

func TestCommandToggle(t *testing.T) {
	_, addr := newFake(t, "secret")
	c := NewClient(addr, "secret", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, err := c.Command(ctx, protocol.Message{Type: protocol.TypeToggle})
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if !status.Armed {
		t.Error("Expected armed status after toggle")
	}
}

func TestCommandRejected(t *testing.T) {
	_, addr := newFake(t, "")
	c := NewClient(addr, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Command(ctx, protocol.Message{Type: protocol.TypeSettings, Payload: protocol.SettingsPayload{Delay: "x"}})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad delay") {
		t.Errorf("Expected notice text in error, got %v", err)
	}
}

func TestCommandUnauthorized(t *testing.T) {
	_, addr := newFake(t, "secret")
	c := NewClient(addr, "wrong", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.Command(ctx, protocol.Message{Type: protocol.TypeToggle}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := c.Run(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected Run to stop with ErrUnauthorized, got %v", err)
	}
}

func TestRunStreamsAndSends(t *testing.T) {
	fake, addr := newFake(t, "")
	c := NewClient(addr, "", nil)

	got := make(chan protocol.Message, 10)
	c.OnMessage = func(m protocol.Message) { got <- m }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if err := c.Send(protocol.Message{Type: protocol.TypeToggle}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var statuses []bool
	timeout := time.After(2 * time.Second)
	for len(statuses) < 2 {
		select {
		case m := <-got:
			if p, ok := m.Payload.(*protocol.StatusPayload); ok {
				statuses = append(statuses, p.Armed)
			}
		case <-timeout:
			t.Fatalf("Expected 2 statuses, got %v", statuses)
		}
	}
	if statuses[0] || !statuses[1] {
		t.Errorf("Expected greeting disarmed then armed, got %v", statuses)
	}
	if !c.IsConnected() {
		t.Error("Expected client to be connected")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil from Run, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.received) != 1 || fake.received[0] != protocol.TypeToggle {
		t.Errorf("Expected one toggle at the server, got %v", fake.received)
	}
}

func TestSendDoesNotBlockWithoutRun(t *testing.T) {
	c := NewClient("127.0.0.1:1", "", nil)
	if c.IsConnected() {
		t.Error("Expected a new client to be disconnected")
	}

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i <= sendQueueSize && err == nil; i++ {
			err = c.Send(protocol.Message{Type: protocol.TypeToggle})
		}
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("Expected ErrQueueFull, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with a full queue")
	}
}

func TestRunReconnects(t *testing.T) {
	fake, addr := newFake(t, "")
	fake.hangUp = true
	c := NewClient(addr, "", nil)
	c.RetryInterval = 10 * time.Millisecond

	greetings := make(chan struct{}, 10)
	c.OnMessage = func(protocol.Message) { greetings <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-greetings:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected greeting %d", i+1)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.conns < 2 {
		t.Errorf("Expected at least 2 connections, got %d", fake.conns)
	}
}

// Package network provides a WebSocket client for a running clicker's
// control server.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autoclicker/internal/protocol"
)

var (
	// ErrUnauthorized is returned when the server rejects the token
	ErrUnauthorized = errors.New("unauthorized: check the API token")

	// ErrRejected is returned by Command when the server answers with a notice
	ErrRejected = errors.New("command rejected")

	// ErrQueueFull is returned by Send when commands are not being delivered
	ErrQueueFull = errors.New("send queue full")
)

const (
	// DefaultRetryInterval is the wait between reconnection attempts
	DefaultRetryInterval = 2 * time.Second

	sendQueueSize = 100
)

// Client connects to a clicker's /ws endpoint
type Client struct {
	addr  string
	token string
	log   *zap.Logger

	// RetryInterval is the wait between reconnection attempts in Run
	RetryInterval time.Duration

	// OnMessage receives every message the server sends while Run is active
	OnMessage func(msg protocol.Message)

	send chan protocol.Message

	mu          sync.Mutex
	isConnected bool
}

// NewClient creates a client for the server at addr (host:port)
func NewClient(addr, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		addr:          addr,
		token:         token,
		log:           log,
		RetryInterval: DefaultRetryInterval,
		send:          make(chan protocol.Message, sendQueueSize),
	}
}

// URL returns the WebSocket URL the client dials
func (c *Client) URL() string {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	if c.token != "" {
		u.RawQuery = url.Values{"token": {c.token}}.Encode()
	}
	return u.String()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	return conn, nil
}

// Command sends one command and returns the status the server reports in
// response. A notice in response is returned as an ErrRejected error.
func (c *Client) Command(ctx context.Context, msg protocol.Message) (protocol.StatusPayload, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return protocol.StatusPayload{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	// The server greets every connection with its status
	if _, err := readMessage(conn, protocol.TypeStatus); err != nil {
		return protocol.StatusPayload{}, err
	}

	if err := conn.WriteJSON(msg); err != nil {
		return protocol.StatusPayload{}, fmt.Errorf("send %s: %w", msg.Type, err)
	}

	for {
		reply, err := readMessage(conn, "")
		if err != nil {
			return protocol.StatusPayload{}, err
		}
		switch p := reply.Payload.(type) {
		case *protocol.StatusPayload:
			return *p, nil
		case *protocol.NoticePayload:
			return protocol.StatusPayload{}, fmt.Errorf("%w: %s", ErrRejected, p.Message)
		}
	}
}

// readMessage reads the next message, skipping others until one of type want
// arrives when want is set
func readMessage(conn *websocket.Conn, want protocol.MessageType) (protocol.Message, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return protocol.Message{}, fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			return protocol.Message{}, err
		}
		if want == "" || msg.Type == want {
			return msg, nil
		}
	}
}

// Run keeps a connection open, reconnecting after failures, and passes every
// server message to OnMessage until ctx is cancelled. It returns early only
// when the server rejects the token.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connect(ctx)
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			c.log.Warn("Connection lost", zap.Error(err))
		}

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.RetryInterval):
			c.log.Info("Attempting reconnection", zap.String("addr", c.addr))
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.log.Info("Connected", zap.String("addr", c.addr))

	connDone := make(chan struct{})
	defer close(connDone)
	go c.writePump(ctx, conn, connDone)

	return c.readPump(conn)
}

func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			c.log.Warn("Invalid message", zap.Error(err))
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

// writePump sends queued commands. Cancelling ctx closes the connection,
// which ends readPump.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}) {
	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error("Marshal error", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("Write error", zap.Error(err))
				conn.Close()
				return
			}

		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return

		case <-connDone:
			return
		}
	}
}

// Send queues a command for the current or next connection made by Run. It
// never blocks; once the queue is full it returns ErrQueueFull.
func (c *Client) Send(msg protocol.Message) error {
	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s dropped", ErrQueueFull, msg.Type)
	}
}

func (c *Client) setConnected(on bool) {
	c.mu.Lock()
	c.isConnected = on
	c.mu.Unlock()
}

// IsConnected returns true while Run holds a connection
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

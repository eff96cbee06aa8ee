package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
	"autoclicker/internal/protocol"
	"autoclicker/internal/ui"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only listens on loopback by default and checks the token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans events out to every connected WebSocket client and turns their
// commands into panel actions. It implements control.Renderer; none of its
// methods block.
type Hub struct {
	panel      *ui.Panel
	log        *zap.Logger
	clients    map[*wsClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

// NewHub creates a hub. Run must be called for it to deliver anything.
func NewHub(panel *ui.Panel, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		panel:      panel,
		log:        log,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	panel.OnSettingsChange(h.settingsChanged)
	return h
}

// Run delivers broadcasts until ctx is cancelled, then disconnects everyone.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.log.Info("Client registered", zap.String("remote", client.ip), zap.Int("clients", n))

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("Client unregistered", zap.String("remote", client.ip), zap.Int("clients", len(h.clients)))
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastMessage(message []byte) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.log.Warn("Dropping slow client", zap.String("remote", client.ip))
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// publish queues msg for every client without blocking the caller
func (h *Hub) publish(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) status() protocol.Message {
	return statusMessage(h.panel.View())
}

func statusMessage(v ui.View) protocol.Message {
	return protocol.Message{
		Type: protocol.TypeStatus,
		Payload: protocol.StatusPayload{
			Armed:          v.Armed,
			Hotkey:         string(v.Hotkey),
			AwaitingRebind: v.Capturing,
			DelayMillis:    v.DelayMillis,
			Button:         string(v.Button),
		},
	}
}

// SetHotkeyLabel implements control.Renderer
func (h *Hub) SetHotkeyLabel(key input.Key) {
	h.publish(protocol.Message{Type: protocol.TypeHotkey, Payload: protocol.HotkeyPayload{Hotkey: string(key)}})
	h.publish(h.status())
}

// SetRunning implements control.Renderer
func (h *Hub) SetRunning(bool) {
	h.publish(h.status())
}

// ShowNotice implements control.Renderer
func (h *Hub) ShowNotice(msg string) {
	h.publish(protocol.Message{Type: protocol.TypeNotice, Payload: protocol.NoticePayload{Message: msg}})
}

func (h *Hub) settingsChanged(s control.RepeatSettings) {
	h.publish(protocol.Message{
		Type: protocol.TypeSettings,
		Payload: protocol.SettingsPayload{
			Delay:  strconv.FormatInt(s.Delay.Milliseconds(), 10),
			Button: string(s.Button),
		},
	})
	h.publish(h.status())
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	// Queued before register so the greeting is the first frame written
	client.queue(h.status())

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) queue(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump pumps commands from the websocket connection to the panel.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("Read error", zap.String("remote", c.ip), zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		c.hub.log.Warn("Ignoring message", zap.String("remote", c.ip), zap.Error(err))
		c.notice(err.Error())
		return
	}

	c.hub.log.Debug("Command received", zap.String("type", string(msg.Type)), zap.String("remote", c.ip))

	switch msg.Type {
	case protocol.TypeToggle:
		c.hub.panel.Toggle()

	case protocol.TypeRebind:
		c.hub.panel.Rebind()
		c.hub.publish(c.hub.status())

	case protocol.TypeSettings:
		if err := applySettings(c.hub.panel, msg.Payload.(*protocol.SettingsPayload)); err != nil {
			c.notice(err.Error())
		}

	default:
		c.notice("unsupported command: " + string(msg.Type))
	}
}

// notice reports a problem to this client only
func (c *wsClient) notice(text string) {
	c.hub.clientsMu.RLock()
	defer c.hub.clientsMu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	c.queue(protocol.Message{Type: protocol.TypeNotice, Payload: protocol.NoticePayload{Message: text}})
}

// applySettings validates both fields before changing either
func applySettings(panel *ui.Panel, p *protocol.SettingsPayload) error {
	var button input.Button
	if p.Button != "" {
		b, err := input.ParseButton(p.Button)
		if err != nil {
			return err
		}
		button = b
	}
	if p.Delay != "" {
		if err := panel.SetDelayText(p.Delay); err != nil {
			return err
		}
	}
	if button != "" {
		return panel.SetButton(button)
	}
	return nil
}

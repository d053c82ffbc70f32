// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WriteWait bounds every write, so a stalled peer cannot block the sender.
const WriteWait = 10 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one registered connection. Writes go through its mutex because a
// websocket connection allows only one concurrent writer.
type Client struct {
	conn Conn
	mu   sync.Mutex
}

func (c *Client) writeFrame(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) write(message []byte) error {
	return c.writeFrame(websocket.TextMessage, message)
}

// Ping sends a ping frame. The peer's pong keeps the read side alive.
func (c *Client) Ping() error {
	return c.writeFrame(websocket.PingMessage, nil)
}

// Hub tracks the open WebSocket connections of every user. A user signed in
// on several devices has one client per device.
type Hub struct {
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds conn for userID.
func (h *Hub) Register(userID string, conn Conn) *Client {
	c := &Client{conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.log.Debug().Str("user", userID).Int("connections", len(h.clients[userID])).Msg("websocket client registered")
	return c
}

// Unregister removes one client of userID.
func (h *Hub) Unregister(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
	h.log.Debug().Str("user", userID).Msg("websocket client unregistered")
}

// Connections returns how many clients userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send delivers message to every connection of userID. An offline user is not
// an error. Clients whose write fails are dropped.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.log.Debug().Str("user", userID).Msg("websocket client not found, message dropped")
		return nil
	}

	var firstErr error
	for _, c := range targets {
		if err := c.write(message); err != nil {
			h.log.Warn().Err(err).Str("user", userID).Msg("websocket write failed, dropping client")
			h.Unregister(userID, c)
			_ = c.conn.Close()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendJSON marshals v and sends it to userID.
func (h *Hub) SendJSON(userID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Send(userID, b)
}

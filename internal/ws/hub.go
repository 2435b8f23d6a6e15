package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const sendBuffer = 32

// Client is one open browser tab.
type Client struct {
	conn       *websocket.Conn
	sessionID  string
	experience string
	send       chan Message
	logger     *zap.Logger
}

// Hub tracks open connections grouped by theme session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	logger   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client to its session.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("session", c.sessionID))
}

// Unregister removes a client and closes its send channel. Unknown clients
// are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.sessions[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.sessions, c.sessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.String("session", c.sessionID))
}

// BroadcastSession sends msg to every tab of one session. Clients with a
// full buffer miss the message.
func (h *Hub) BroadcastSession(sessionID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[sessionID] {
		c.deliver(msg)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// SessionCount returns the number of sessions with at least one client.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// deliver must be called with the hub lock held so send is not closed
// concurrently.
func (c *Client) deliver(msg Message) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("client send buffer full, dropping message",
			zap.String("session", c.sessionID),
			zap.String("type", string(msg.Type)))
	}
}

// writePump sends messages from the client's send channel to the WebSocket.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}
		}
	}
}

// readPump decodes client messages until the connection fails.
func (c *Client) readPump(ctx context.Context, handle func(ClientMessage)) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			return
		}
		handle(msg)
	}
}

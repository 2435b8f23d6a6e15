// Package ws pushes theme changes to every open tab of a session and takes
// live system color scheme changes from the browser.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/neuralliquid/portal/internal/event"
	"github.com/neuralliquid/portal/internal/settings"
	"github.com/neuralliquid/portal/internal/theme"
	"go.uber.org/zap"
)

// SessionResolver builds theme resolvers for a session outside a page
// request. *settings.Provider implements it.
type SessionResolver interface {
	SessionFromRequest(r *http.Request) (string, bool)
	ForSession(ctx context.Context, sid string, exp theme.Experience, system theme.SystemSource) *theme.Resolver
}

// Handler serves the theme WebSocket.
type Handler struct {
	hub      *Hub
	sessions SessionResolver
	bus      *event.Bus
	logger   *zap.Logger
}

var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to theme changes.
func NewHandler(sessions SessionResolver, bus *event.Bus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:      NewHub(logger),
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
	h.subscribeToEvents()
	return h
}

// Hub returns the connection hub.
func (h *Handler) Hub() *Hub { return h.hub }

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/theme", h.handleThemeStream)
}

// handleThemeStream binds the connection to the caller's session cookie,
// sends the current selection, and then relays changes both ways.
func (h *Handler) handleThemeStream(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessions.SessionFromRequest(r)
	if !ok {
		http.Error(w, "missing theme session", http.StatusUnauthorized)
		return
	}

	// Pages pass their experience so the snapshot matches the route.
	exp, _ := settings.RequestedExperience(r)

	// The connection outlives the server's per-request deadlines.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	// Same-origin only; the session cookie is the credential.
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:       conn,
		sessionID:  sid,
		experience: string(exp),
		send:       make(chan Message, sendBuffer),
		logger:     h.logger,
	}
	h.hub.Register(client)

	ctx := r.Context()
	snapshot := h.sessions.ForSession(ctx, sid, exp, nil).Selection()
	client.send <- Message{Type: MessageThemeSnapshot, Timestamp: time.Now(), Data: themeData(snapshot)}

	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx, func(msg ClientMessage) { h.handleClientMessage(ctx, client, msg) })

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (h *Handler) handleClientMessage(ctx context.Context, c *Client, msg ClientMessage) {
	switch msg.Type {
	case MessageSystemPreference:
		if msg.Dark == nil {
			return
		}
		// Changes reach the session through the event bus.
		rv := h.sessions.ForSession(ctx, c.sessionID, theme.Experience(c.experience), nil)
		if !rv.ApplySystemPreference(*msg.Dark) {
			h.logger.Debug("system preference ignored, color mode chosen explicitly",
				zap.String("session", c.sessionID))
		}
	default:
		h.logger.Debug("unknown websocket message", zap.String("type", string(msg.Type)))
	}
}

// subscribeToEvents forwards theme changes to the tabs of the changed session.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}
	h.bus.Subscribe(settings.TopicThemeChanged, func(_ context.Context, e event.Event) {
		change, ok := e.Payload.(*settings.ChangeEvent)
		if !ok {
			return
		}
		h.hub.BroadcastSession(change.SessionID, Message{
			Type:      MessageThemeChanged,
			Timestamp: e.Timestamp,
			Data:      themeData(change.Selection),
		})
	})
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dialogcore/engine/pkg/events"
)

// writeTimeout bounds how long a single WebSocket send may block: a slow
// client must not stall event delivery to others.
const writeTimeout = 5 * time.Second

// clientMessage is what a WebSocket client may send: subscribe/unsubscribe
// to a session's realtime event stream, or a keepalive ping. There is no
// catchup action; the session file itself is the durable record a client
// re-fetches via GET /sessions/:id.
type clientMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
}

// Hub bridges the in-process events.Bus to WebSocket clients: each
// connection may subscribe to any number of session ids and receives that
// session's v2-* events as JSON frames.
type Hub struct {
	bus *events.Bus
}

// NewHub constructs a Hub over bus.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{bus: bus}
}

// serveWS handles GET /realtime/ws: upgrades the connection and blocks
// until it closes.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	s.hub.handleConnection(c.Request.Context(), conn)
}

// handleConnection owns one client's subscription set and read loop.
func (h *Hub) handleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "")

	var mu sync.Mutex
	unsubscribers := make(map[string]func())
	defer func() {
		mu.Lock()
		for _, unsub := range unsubscribers {
			unsub()
		}
		mu.Unlock()
	}()

	h.sendJSON(ctx, conn, map[string]string{"type": "connection.established", "connectionId": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("realtime ws: invalid client message", "connectionId", connID, "error", err)
			continue
		}

		switch msg.Action {
		case "subscribe":
			if msg.SessionID == "" {
				h.sendJSON(ctx, conn, map[string]string{"type": "error", "message": "sessionId is required for subscribe"})
				continue
			}
			mu.Lock()
			if _, already := unsubscribers[msg.SessionID]; !already {
				ch, unsub := h.bus.Subscribe(msg.SessionID)
				unsubscribers[msg.SessionID] = unsub
				go h.forward(ctx, conn, ch)
			}
			mu.Unlock()
			h.sendJSON(ctx, conn, map[string]string{"type": "subscription.confirmed", "sessionId": msg.SessionID})

		case "unsubscribe":
			mu.Lock()
			if unsub, ok := unsubscribers[msg.SessionID]; ok {
				unsub()
				delete(unsubscribers, msg.SessionID)
			}
			mu.Unlock()

		case "ping":
			h.sendJSON(ctx, conn, map[string]string{"type": "pong"})
		}
	}
}

// forward relays bus events for one subscription onto the wire until the
// channel is closed (unsubscribe) or the connection context is done.
func (h *Hub) forward(ctx context.Context, conn *websocket.Conn, ch <-chan events.Event) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.sendJSON(ctx, conn, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) sendJSON(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("realtime ws: write failed", "error", err)
	}
}

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"boltboard/internal/logging"
	"boltboard/internal/server/events"
	"boltboard/internal/server/posts"

	"github.com/asaskevich/EventBus"
	"github.com/gorilla/websocket"
)

// Event message types pushed over the websocket.
const (
	eventPostUpdated = "post-updated"
	eventInvoicePaid = "invoice-paid"
)

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans bus events out to every connected websocket client. Delivery is
// best-effort: a slow or gone client is dropped, and a delivery failure
// never reaches the stores that produced the event.
type Hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	logger   logging.Logger
}

func NewHub(bus EventBus.Bus, origin string, logger logging.Logger) (*Hub, error) {
	h := &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger.With("component", "hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || o == origin
			},
		},
	}

	if err := bus.Subscribe(events.TopicPostUpdated, func(p *posts.Post) {
		h.broadcast(eventPostUpdated, p)
	}); err != nil {
		return nil, fmt.Errorf("subscribing to post events: %w", err)
	}
	if err := bus.Subscribe(events.TopicInvoicePaid, func(ev events.InvoicePaid) {
		h.broadcast(eventInvoicePaid, ev)
	}); err != nil {
		return nil, fmt.Errorf("subscribing to settlement events: %w", err)
	}

	return h, nil
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 32)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info(r.Context(), "subscriber connected", "subscribers", n)

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames and returns when the client goes away,
// which is how disconnects are detected.
func (h *Hub) readPump(c *wsClient) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

func (h *Hub) broadcast(eventType string, data any) {
	msg, err := json.Marshal(wsEvent{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error(context.Background(), "encoding event failed", "type", eventType, "error", err.Error())
		return
	}

	h.mu.Lock()
	stale := make([]*wsClient, 0)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Buffer full: the client stopped draining. Drop it.
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.drop(c)
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gennaro-ai/gennaro/internal/logger"
)

// Hub fans engine events out to websocket subscribers. Subscribers whose
// writes fail are dropped, mirroring how slow or dead connections are
// handled upstream.
type Hub struct {
	mu           sync.Mutex
	subscribers  map[*websocket.Conn]struct{}
	writeTimeout time.Duration
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers:  make(map[*websocket.Conn]struct{}),
		writeTimeout: 5 * time.Second,
	}
}

var _ Broadcaster = (*Hub)(nil)

// ServeHTTP upgrades the request to a websocket subscription and reads
// (and discards) client messages until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "Websocket accept failed", "error", err)
		return
	}

	h.add(conn)
	defer h.remove(conn)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends the event to every subscriber.
func (h *Hub) Broadcast(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.subscribers))
	for c := range h.subscribers {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := c.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.remove(c)
		}
	}
	return nil
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[c] = struct{}{}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	_, present := h.subscribers[c]
	delete(h.subscribers, c)
	h.mu.Unlock()
	if present {
		_ = c.Close(websocket.StatusNormalClosure, "")
	}
}

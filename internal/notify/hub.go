package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imutis/imutis-api/internal/metrics"
)

const (
	writeTimeout      = 10 * time.Second
	keepaliveInterval = 15 * time.Second
	sendBuffer        = 64
)

// Event is the payload pushed to connected clients.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Category string    `json:"category,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

type client struct {
	conn   *websocket.Conn
	send   chan Event
	closed chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// Hub tracks live websocket connections per user and fans events out to
// every connection the recipient holds.
type Hub struct {
	mu    sync.RWMutex
	users map[uint64]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{users: make(map[uint64]map[*client]struct{})}
}

func (h *Hub) register(userID uint64, c *client) {
	h.mu.Lock()
	set := h.users[userID]
	if set == nil {
		set = make(map[*client]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.WebsocketConnections.Inc()
}

func (h *Hub) unregister(userID uint64, c *client) {
	h.mu.Lock()
	if set := h.users[userID]; set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.WebsocketConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.users, userID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers ev to every live connection for userID. Slow
// consumers are dropped rather than blocking the caller.
func (h *Hub) Publish(userID uint64, ev Event) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		select {
		case c.send <- ev:
		default:
			c.close()
		}
	}
}

// ConnectedUsers reports how many distinct users hold a live connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

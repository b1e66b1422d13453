package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"LabPulse/internal/domain/models"
	drepo "LabPulse/internal/domain/repository"
	"LabPulse/pkg/logger"
)

const (
	pongWait    = 60 * time.Second
	sendBufSize = 32
)

// Hub fans reading and anomaly events out to websocket subscribers. Each
// subscriber only receives events for its own user.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingPeriod   time.Duration
	log          *logger.Logger

	events  chan models.ReadingEvent
	dropped atomic.Int64

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

type Option func(*Hub)

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPingInterval sets the ping period; it is kept below the pong wait.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 && d < pongWait {
			h.pingPeriod = d
		}
	}
}

// WithBufferSize sets the depth of the pending event queue.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.events = make(chan models.ReadingEvent, n)
		}
	}
}

func NewHub(l *logger.Logger, opts ...Option) *Hub {
	if l == nil {
		l = logger.Nop()
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origin policy is enforced by the CORS middleware and the proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: 10 * time.Second,
		pingPeriod:   (pongWait * 9) / 10,
		log:          l,
		events:       make(chan models.ReadingEvent, 256),
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Broadcast queues ev for delivery. It never blocks; events are dropped when
// the queue is full.
func (h *Hub) Broadcast(ev models.ReadingEvent) {
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Run delivers queued events until ctx is cancelled, then closes all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// ServeHTTP upgrades the request and streams userID's events until the peer
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBufSize)}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(c)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("stream client connected", logger.Int64("user_id", c.userID))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) deliver(ev models.ReadingEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("stream marshal failed", logger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if c.userID != ev.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("stream client too slow, disconnecting", logger.Int64("user_id", c.userID))
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames; clients do not send data.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ drepo.EventSink = (*Hub)(nil)

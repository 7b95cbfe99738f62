package browser

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout = 5 * time.Second
	// sendBuffer is how many messages may wait for a client before it is
	// dropped as too slow.
	sendBuffer = 16
)

// Message is pushed to connected shims.
type Message struct {
	Event                string `json:"event"`
	Active               *bool  `json:"active,omitempty"`
	IdleDetectionSeconds int    `json:"idleDetectionSeconds,omitempty"`
}

const (
	EventIndicator     = "indicator"
	EventIdleDetection = "idleDetection"
)

// wsConn is the part of *websocket.Conn a client writer needs.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type hubClient struct {
	conn   wsConn
	send   chan Message
	remote string
}

// Hub broadcasts indicator and idle threshold changes to websocket
// clients. It implements tracker.Indicator and IdleNotifier.
//
// Broadcasting never blocks: each client has its own queue drained by a
// writer goroutine, and a client whose queue fills up is disconnected.
type Hub struct {
	logger    *slog.Logger
	originPat []string

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	active  bool
	known   bool
	idle    int
}

// NewHub returns a hub with no clients. originPatterns restricts which
// origins may connect; empty allows any.
func NewHub(logger *slog.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &Hub{
		logger:    logger,
		clients:   make(map[*hubClient]struct{}),
		originPat: originPatterns,
	}
}

// SetActive broadcasts the indicator state when it changes.
func (h *Hub) SetActive(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.known && h.active == active {
		return
	}
	h.known = true
	h.active = active
	h.broadcastLocked(Message{Event: EventIndicator, Active: &active})
}

// Active returns the last indicator state and whether one has been set.
func (h *Hub) Active() (active, known bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active, h.known
}

// SetIdleDetection broadcasts a new idle threshold.
func (h *Hub) SetIdleDetection(seconds int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.idle = seconds
	h.broadcastLocked(Message{Event: EventIdleDetection, IdleDetectionSeconds: seconds})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away. New clients receive the current state first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPat,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	h.logger.Debug("indicator client connected", "remote", r.RemoteAddr)

	c := h.add(conn, r.RemoteAddr)
	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop(c)
	}()

	defer func() {
		h.remove(c)
		<-written
		conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug("indicator client disconnected", "remote", r.RemoteAddr)
	}()

	// The request context ends with the handler, so read on a detached one.
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]wsConn, 0, len(h.clients))
	for c := range h.clients {
		h.removeLocked(c)
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn wsConn) {
			defer wg.Done()
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(conn)
	}
	wg.Wait()
}

// add registers conn and queues the current state for it. Both happen
// under the hub lock, so no broadcast can fall between them.
func (h *Hub) add(conn wsConn, remote string) *hubClient {
	c := &hubClient{conn: conn, send: make(chan Message, sendBuffer), remote: remote}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.idle > 0 {
		c.send <- Message{Event: EventIdleDetection, IdleDetectionSeconds: h.idle}
	}
	if h.known {
		active := h.active
		c.send <- Message{Event: EventIndicator, Active: &active}
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) broadcastLocked(msg Message) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("indicator client too slow, disconnecting", "remote", c.remote)
			h.removeLocked(c)
			go c.conn.Close(websocket.StatusPolicyViolation, "too slow")
		}
	}
	h.logger.Debug("indicator broadcast", "event", msg.Event, "clients", len(h.clients))
}

// writeLoop sends queued messages until the client is removed or a write
// fails.
func (h *Hub) writeLoop(c *hubClient) {
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("marshal message failed", "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Debug("send to client failed", "remote", c.remote, "error", err)
			h.remove(c)
			c.conn.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
}

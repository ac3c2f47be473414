package ws

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// client is one websocket connection of a user
type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans workspace events out to each user's open connections
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{} // Protected by mu
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewHub creates a hub accepting upgrades from the given origins; no
// origins accepts any
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics, origins ...string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				if allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		logger:  logger.Named("ws"),
		metrics: metrics,
	}
}

// Publish sends events to every connection of a user. Connections that
// cannot keep up are dropped.
func (h *Hub) Publish(userID string, events []types.Event) {
	if len(events) == 0 {
		return
	}
	frames := make([][]byte, 0, len(events))
	for i := range events {
		data, err := sonic.Marshal(types.WSMessage{Type: "event", Event: &events[i]})
		if err != nil {
			h.logger.Error("encode event", zap.String("kind", string(events[i].Kind)), zap.Error(err))
			continue
		}
		frames = append(frames, data)
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients[userID] {
		for _, f := range frames {
			select {
			case c.send <- f:
				h.observe("out", "event")
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("user", userID))
		h.unregister(c)
	}
}

// Count returns the number of open connections of a user
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

// Serve upgrades the request and streams the user's events until the
// connection closes. hello is sent as the first frame.
func (h *Hub) Serve(c *gin.Context, userID string, hello any) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := sonic.Marshal(types.WSMessage{Type: "system", Data: hello}); err == nil {
		cl.send <- data
	}
	h.register(cl)

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("websocket connected", zap.String("user", c.userID))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	_, present := set[c]
	if ok && present {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	if !present {
		return
	}
	c.close()
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Debug("websocket disconnected", zap.String("user", c.userID))
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.observe("in", "invalid")
			continue
		}
		h.observe("in", msg.Type)

		if msg.Type == "ping" {
			reply, _ := sonic.Marshal(types.WSMessage{Type: "pong"})
			h.trySend(c, reply)
		}
	}
}

func (h *Hub) trySend(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) observe(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

// Package broadcast pushes contest events to every connected websocket viewer.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxInboundBytes     = 4 << 10
)

// Config holds hub settings.
type Config struct {
	SendBuffer   int           `yaml:"sendBuffer"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
}

// Hub is the set of live viewers.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	clients  *xsync.MapOf[string, *client]
	closed   atomic.Bool
	log      *zap.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates an empty hub.
func NewHub(cfg Config, log *zap.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: xsync.NewMapOf[string, *client](),
		log:     log,
	}
}

// ServeWS upgrades the request and registers the connection as a viewer.
func (h *Hub) ServeWS(c *gin.Context) {
	if h.closed.Load() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	h.clients.Store(cl.id, cl)
	h.log.Debug("viewer connected", zap.String("client_id", cl.id), zap.String("remote", c.ClientIP()))

	go h.writeLoop(cl)
	h.readLoop(cl)
}

// readLoop only detects the peer going away; inbound messages are discarded.
func (h *Hub) readLoop(cl *client) {
	defer h.remove(cl, "closed by peer")
	cl.conn.SetReadLimit(maxInboundBytes)
	// hijacked connections keep the server's read deadline
	_ = cl.conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cl.done:
			return
		case msg := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(cl, "write failed")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.remove(cl, "ping failed")
				return
			}
		}
	}
}

func (h *Hub) remove(cl *client, reason string) {
	if _, loaded := h.clients.LoadAndDelete(cl.id); loaded {
		h.log.Debug("viewer disconnected", zap.String("client_id", cl.id), zap.String("reason", reason))
	}
	cl.close()
}

// Broadcast encodes event once and queues it for every viewer. A viewer whose
// queue is full is dropped instead of blocking the caller.
func (h *Hub) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode event", zap.Error(err))
		return
	}
	h.clients.Range(func(_ string, cl *client) bool {
		select {
		case cl.send <- data:
		case <-cl.done:
		default:
			h.remove(cl, "send buffer full")
		}
		return true
	})
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	return h.clients.Size()
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() {
	h.closed.Store(true)
	h.clients.Range(func(_ string, cl *client) bool {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		h.remove(cl, "hub closed")
		return true
	})
}

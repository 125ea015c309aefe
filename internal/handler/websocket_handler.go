package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/broker"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/middleware"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/models"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/rbac"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/internal/service"
	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxStreamLifetime = 15 * time.Minute
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxInboundSize    = 1024
)

// WSEvent is one frame sent to live-log subscribers.
type WSEvent struct {
	Type      string `json:"type"` // "log", "session_expired", "error"
	ID        uint64 `json:"id,omitempty"`
	Action    string `json:"action,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ModelID   string `json:"modelId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LogStreamHandler tails the audit log over a websocket for administrators.
type LogStreamHandler struct {
	audit    *service.AuditService
	upgrader websocket.Upgrader
	lifetime time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]*streamClient
}

type streamClient struct {
	conn        *websocket.Conn
	user        *models.User
	connectedAt time.Time
	writeMu     sync.Mutex
}

// NewLogStreamHandler accepts any origin when allowedOrigins is empty.
func NewLogStreamHandler(audit *service.AuditService, allowedOrigins []string) *LogStreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &LogStreamHandler{
		audit:    audit,
		lifetime: maxStreamLifetime,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		clients: make(map[*websocket.Conn]*streamClient),
	}
}

// SetLifetime overrides how long one stream stays open.
func (h *LogStreamHandler) SetLifetime(d time.Duration) {
	if d > 0 {
		h.lifetime = d
	}
}

// Stream GET /logs/stream
func (h *LogStreamHandler) Stream(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := rbac.Require(user, rbac.ActionViewLogs); err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	events, err := h.audit.Subscribe(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade log stream", zap.Error(err))
		return
	}

	client := &streamClient{conn: conn, user: user, connectedAt: time.Now()}
	h.addClient(client)
	defer h.removeClient(conn)

	go h.readPump(client, cancel)
	h.writePump(ctx, client, events)
}

// readPump only services control frames; it cancels the stream once the peer goes away.
func (h *LogStreamHandler) readPump(client *streamClient, cancel context.CancelFunc) {
	defer cancel()

	client.conn.SetReadLimit(maxInboundSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("Log stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *LogStreamHandler) writePump(ctx context.Context, client *streamClient, events <-chan broker.LogEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	lifetime := time.NewTimer(h.lifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-lifetime.C:
			h.closeGracefully(client, "stream lifetime exceeded")
			return

		case ev, ok := <-events:
			if !ok {
				h.closeGracefully(client, "log feed closed")
				return
			}
			if err := client.writeJSON(toWSEvent(ev)); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toWSEvent(ev broker.LogEvent) WSEvent {
	out := WSEvent{
		Type:      "log",
		ID:        ev.ID,
		Action:    ev.Action,
		Timestamp: ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.UserID != nil {
		out.UserID = ev.UserID.String()
	}
	if ev.ModelID != nil {
		out.ModelID = ev.ModelID.String()
	}
	return out
}

func (h *LogStreamHandler) closeGracefully(client *streamClient, reason string) {
	_ = client.writeJSON(WSEvent{Type: "session_expired", Error: reason})
	_ = client.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}

func (h *LogStreamHandler) addClient(client *streamClient) {
	h.mu.Lock()
	h.clients[client.conn] = client
	total := len(h.clients)
	h.mu.Unlock()

	logger.Log.Info("Log stream connected",
		zap.String("user_id", client.user.ID.String()),
		zap.Int("total", total),
	)
}

func (h *LogStreamHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	client, exists := h.clients[conn]
	delete(h.clients, conn)
	remaining := len(h.clients)
	h.mu.Unlock()

	if !exists {
		return
	}
	_ = conn.Close()
	logger.Log.Info("Log stream disconnected",
		zap.String("user_id", client.user.ID.String()),
		zap.Duration("duration", time.Since(client.connectedAt).Round(time.Second)),
		zap.Int("remaining", remaining),
	)
}

// CloseAll ends every open stream, used on shutdown.
func (h *LogStreamHandler) CloseAll() {
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = c.conn.Close()
	}
}

func (c *streamClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *streamClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

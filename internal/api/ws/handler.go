// Package ws upgrades authenticated clients to websocket sessions and feeds
// them into the presence registry.
package ws

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/presence"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Handler owns the websocket endpoint.
type Handler struct {
	registry *presence.Registry
	logger   *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(registry *presence.Registry, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register wires GET /ws. The session guard runs before the upgrade, so the
// connection is admitted only with a verified token; the identity is derived
// from that token, never from anything the client sends alongside it.
func (h *Handler) Register(app *fiber.App, guard *auth.SessionGuard) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", guard.Handle, websocket.New(h.serve))
}

func (h *Handler) serve(conn *websocket.Conn) {
	user, ok := conn.Locals(auth.UserContextKey).(*domain.User)
	if !ok {
		_ = conn.Close()
		return
	}

	session := h.registry.Connect(user.ID, &wsTransport{conn: conn})

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Presence carries no inbound messages; the read loop exists to notice
	// the transport dropping.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.String("user_id", user.ID), zap.Error(err))
			}
			break
		}
	}

	h.registry.Disconnect(user.ID, session)
}

// wsTransport adapts a fiber websocket connection to the registry's
// Transport. All writes happen on the session's write pump, so no extra
// locking is needed.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(v any) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// Package ws carries socket traffic between clients and the fan-out engine:
// JSON event frames over gorilla websocket connections.
package ws

import (
	"net/http"

	"chatwire/internal/config"
	"chatwire/internal/fanout"
	"chatwire/pkg/logger"

	"github.com/gorilla/websocket"
)

type Handler struct {
	engine   *fanout.Engine
	cfg      config.SocketConfig
	upgrader websocket.Upgrader
}

func NewHandler(engine *fanout.Engine, cfg config.SocketConfig) *Handler {
	return &Handler{
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleSocket upgrades the connection and starts the session pumps. No
// identity or room authorization happens here: the session binds a user via
// the setup event, and chat access was already authorized at REST time when
// the membership was established.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	sess := NewSession(conn, h.engine, h.cfg.SendBuffer, h.cfg.PongWait)
	h.engine.Register(sess)

	go sess.WritePump()
	go sess.ReadPump()
}

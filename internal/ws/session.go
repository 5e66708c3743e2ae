package ws

import (
	"time"

	"chatwire/internal/fanout"
	"chatwire/internal/models"
	"chatwire/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Session is one live websocket connection. It satisfies registry.Session;
// the fan-out engine addresses it through rooms and never touches the
// connection directly.
type Session struct {
	id       string
	conn     *websocket.Conn
	engine   *fanout.Engine
	send     chan models.Event
	done     chan struct{}
	pongWait time.Duration
}

func NewSession(conn *websocket.Conn, engine *fanout.Engine, sendBuffer int, pongWait time.Duration) *Session {
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		engine:   engine,
		send:     make(chan models.Event, sendBuffer),
		done:     make(chan struct{}),
		pongWait: pongWait,
	}
}

func (s *Session) ID() string { return s.id }

// Send queues ev for delivery without blocking the engine loop. It reports
// false when the session's buffer is full; that copy of the event is lost.
func (s *Session) Send(ev models.Event) bool {
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

// ReadPump decodes inbound frames and hands them to the engine. It owns the
// connection teardown: when reading stops the session is unregistered and
// every room membership is released.
func (s *Session) ReadPump() {
	defer func() {
		s.engine.Unregister(s)
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return nil
	})

	for {
		var ev models.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on session %s: %v", s.id, err)
			}
			return
		}
		s.engine.Dispatch(s, ev)
	}
}

// WritePump drains the outbound queue onto the wire and keeps the
// connection alive with pings.
func (s *Session) WritePump() {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				logger.Error("Write error on session %s: %v", s.id, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

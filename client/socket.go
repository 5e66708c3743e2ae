package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatwire/internal/models"

	"github.com/gorilla/websocket"
)

// Emitter sends events to the server. The store depends on this interface
// so reconciliation logic stays independent of transport wiring.
type Emitter interface {
	Emit(name models.EventName, v any) error
}

// Socket is the client side of the event wire: a gorilla websocket
// connection with a serialized writer and a single read loop.
type Socket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	handler   func(models.Event)
	connected chan struct{}
	connOnce  sync.Once
}

// DialSocket connects to the server's /ws endpoint. handler receives every
// pushed event; it runs on the read-loop goroutine, one event at a time.
func DialSocket(ctx context.Context, url string, handler func(models.Event)) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial socket: %w", err)
	}

	s := &Socket{
		conn:      conn,
		handler:   handler,
		connected: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Setup binds the session to the user and waits for the server's handshake
// ack. On reconnect the caller must run Setup again and re-join its active
// chat; the server keeps no memberships across connections.
func (s *Socket) Setup(ctx context.Context, user models.User) error {
	if err := s.Emit(models.EventSetup, user); err != nil {
		return err
	}
	select {
	case <-s.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for connected ack")
	}
}

func (s *Socket) Emit(name models.EventName, v any) error {
	ev, err := models.NewEvent(name, v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(ev)
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

func (s *Socket) readLoop() {
	for {
		var ev models.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Name == models.EventConnected {
			s.connOnce.Do(func() { close(s.connected) })
			continue
		}
		if s.handler != nil {
			s.handler(ev)
		}
	}
}

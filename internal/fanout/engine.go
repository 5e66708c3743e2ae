// Package fanout implements the event dispatch engine: given an inbound
// socket event it computes the recipient set from chat membership and
// delivers to each recipient's room. Delivery is at-most-once and best
// effort; a recipient that is not connected recovers the event on its next
// REST fetch.
package fanout

import (
	"context"
	"encoding/json"

	"chatwire/internal/models"
	"chatwire/internal/registry"
	"chatwire/pkg/logger"
)

// Inbound is one event read off a session's transport.
type Inbound struct {
	Session registry.Session
	Event   models.Event
}

// Engine processes all socket events on a single loop goroutine. The loop
// fully handles one event, including its room lookups, before the next, so
// the registry needs no locking.
type Engine struct {
	reg        *registry.Registry
	register   chan registry.Session
	unregister chan registry.Session
	inbound    chan Inbound
}

func New(reg *registry.Registry) *Engine {
	return &Engine{
		reg:        reg,
		register:   make(chan registry.Session),
		unregister: make(chan registry.Session),
		inbound:    make(chan Inbound, 64),
	}
}

// Register announces a newly connected session to the loop.
func (e *Engine) Register(sess registry.Session) {
	e.register <- sess
}

// Unregister removes a disconnected session and all its room memberships.
func (e *Engine) Unregister(sess registry.Session) {
	e.unregister <- sess
}

// Dispatch queues an inbound event for the loop.
func (e *Engine) Dispatch(sess registry.Session, ev models.Event) {
	e.inbound <- Inbound{Session: sess, Event: ev}
}

// Run processes events until ctx is cancelled, then tears the registry down.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.reg.Teardown()
			return ctx.Err()

		case sess := <-e.register:
			e.reg.Connect(sess)
			logger.Debug("session %s connected (%d total)", sess.ID(), e.reg.SessionCount())

		case sess := <-e.unregister:
			e.reg.Disconnect(sess)
			logger.Debug("session %s disconnected (%d total)", sess.ID(), e.reg.SessionCount())

		case in := <-e.inbound:
			e.handle(in.Session, in.Event)
		}
	}
}

func (e *Engine) handle(sess registry.Session, ev models.Event) {
	switch ev.Name {
	case models.EventSetup:
		e.handleSetup(sess, ev)
	case models.EventJoinChat:
		e.handleJoinChat(sess, ev)
	case models.EventTyping, models.EventStopTyping:
		e.handleTyping(sess, ev)
	case models.EventNewMessage:
		e.handleNewMessage(sess, ev)
	case models.EventMessageUpdated, models.EventMessageDeleted:
		e.handleMessageChanged(sess, ev)
	default:
		logger.Debug("ignoring unknown event %q from session %s", ev.Name, sess.ID())
	}
}

func (e *Engine) handleSetup(sess registry.Session, ev models.Event) {
	var user models.User
	if err := json.Unmarshal(ev.Data, &user); err != nil || user.ID == "" {
		logger.Error("setup with malformed user payload from session %s", sess.ID())
		return
	}
	if !e.reg.Setup(sess, user.ID) {
		logger.Debug("setup rejected for session %s", sess.ID())
		return
	}
	sess.Send(models.Event{Name: models.EventConnected})
}

func (e *Engine) handleJoinChat(sess registry.Session, ev models.Event) {
	var chatID string
	if err := json.Unmarshal(ev.Data, &chatID); err != nil || chatID == "" {
		logger.Error("join chat with malformed payload from session %s", sess.ID())
		return
	}
	if e.reg.JoinChat(sess, chatID) {
		logger.Debug("session %s joined chat room %s", sess.ID(), chatID)
	}
}

// handleTyping relays typing and stop-typing to the chat room, excluding the
// originator: the sender has no use for its own typing echo.
func (e *Engine) handleTyping(sess registry.Session, ev models.Event) {
	var chatID string
	if err := json.Unmarshal(ev.Data, &chatID); err != nil || chatID == "" {
		logger.Error("%s with malformed payload from session %s", ev.Name, sess.ID())
		return
	}
	e.broadcast(chatID, ev, sess)
}

// handleNewMessage fans a freshly sent message out to each participant's
// private user room, skipping the sender: the sender already applied the
// message optimistically and an echo could race with that local entry.
func (e *Engine) handleNewMessage(sess registry.Session, ev models.Event) {
	msg, ok := e.decodeMessage(sess, ev)
	if !ok {
		return
	}
	out := models.Event{Name: models.EventMessageReceived, Data: ev.Data}
	for _, user := range msg.Chat.Users {
		if user.ID == msg.Sender.ID {
			continue
		}
		e.broadcast(user.ID, out, sess)
	}
}

// handleMessageChanged broadcasts an edit or delete to the chat room without
// excluding anyone: every viewer, the editor included, must converge on the
// authoritative server copy.
func (e *Engine) handleMessageChanged(sess registry.Session, ev models.Event) {
	msg, ok := e.decodeMessage(sess, ev)
	if !ok {
		return
	}
	e.broadcast(msg.Chat.ID, ev, nil)
}

// decodeMessage checks the one payload invariant the engine cares about:
// a populated chat.users array. Anything else is the REST layer's problem.
// Malformed events are dropped whole; there is no partial fan-out.
func (e *Engine) decodeMessage(sess registry.Session, ev models.Event) (*models.Message, bool) {
	var msg models.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		logger.Error("%s with malformed payload from session %s: %v", ev.Name, sess.ID(), err)
		return nil, false
	}
	if msg.Chat == nil || len(msg.Chat.Users) == 0 {
		logger.Error("%s without chat.users from session %s, dropping", ev.Name, sess.ID())
		return nil, false
	}
	return &msg, true
}

// broadcast delivers ev to every session in the room except exclude. A full
// session buffer drops that session's copy.
func (e *Engine) broadcast(roomID string, ev models.Event, exclude registry.Session) {
	for _, sess := range e.reg.Room(roomID) {
		if exclude != nil && sess.ID() == exclude.ID() {
			continue
		}
		if !sess.Send(ev) {
			logger.Debug("dropping %s for slow session %s", ev.Name, sess.ID())
		}
	}
}

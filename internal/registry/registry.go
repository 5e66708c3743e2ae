// Package registry tracks live transport sessions and their room
// memberships. Rooms are pure addressing constructs: one room per user id
// for direct delivery and one room per chat id for chat-scoped events.
//
// The registry is not safe for concurrent use. It is owned by the fan-out
// engine's event loop, which is the only goroutine that touches it.
package registry

import (
	"chatwire/internal/models"
	"chatwire/pkg/logger"
)

// Session is one live transport connection. Send must not block: it reports
// whether the event made it into the session's outbound buffer.
type Session interface {
	ID() string
	Send(ev models.Event) bool
}

type binding struct {
	session Session
	userID  string
	rooms   map[string]struct{}
}

// Registry maps sessions to user identities and room memberships. Construct
// one per server process and tear it down explicitly; it is never shared
// across processes.
type Registry struct {
	bindings map[string]*binding            // session id -> binding
	rooms    map[string]map[string]*binding // room id -> session id -> binding
}

func New() *Registry {
	return &Registry{
		bindings: make(map[string]*binding),
		rooms:    make(map[string]map[string]*binding),
	}
}

// Connect records a session that has not bound an identity yet.
func (r *Registry) Connect(sess Session) {
	if _, ok := r.bindings[sess.ID()]; ok {
		return
	}
	r.bindings[sess.ID()] = &binding{
		session: sess,
		rooms:   make(map[string]struct{}),
	}
}

// Setup binds the session to a user identity exactly once and joins it to
// the user's private room. Calling it again with the same identity is a
// no-op; a different identity is rejected.
func (r *Registry) Setup(sess Session, userID string) bool {
	if userID == "" {
		return false
	}
	b, ok := r.bindings[sess.ID()]
	if !ok {
		return false
	}
	if b.userID != "" {
		return b.userID == userID
	}
	b.userID = userID
	r.join(b, userID)
	return true
}

// JoinChat joins the session to a chat's broadcast room. Sessions that have
// not completed setup are rejected silently; the intended client flow never
// reaches this state. Memberships accumulate across chat switches: fan-out
// to a room the user is no longer viewing is harmless and handled
// client-side via the notification path.
func (r *Registry) JoinChat(sess Session, chatID string) bool {
	if chatID == "" {
		return false
	}
	b, ok := r.bindings[sess.ID()]
	if !ok || b.userID == "" {
		logger.Debug("join chat %s rejected for unbound session %s", chatID, sess.ID())
		return false
	}
	r.join(b, chatID)
	return true
}

func (r *Registry) join(b *binding, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]*binding)
		r.rooms[roomID] = room
	}
	room[b.session.ID()] = b
	b.rooms[roomID] = struct{}{}
}

// Disconnect removes the session and all its room memberships. No trace of
// the session remains afterwards.
func (r *Registry) Disconnect(sess Session) {
	b, ok := r.bindings[sess.ID()]
	if !ok {
		return
	}
	for roomID := range b.rooms {
		r.leaveRoom(roomID, sess.ID())
	}
	delete(r.bindings, sess.ID())
}

func (r *Registry) leaveRoom(roomID, sessionID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

// Room returns a snapshot of the sessions currently joined to roomID.
func (r *Registry) Room(roomID string) []Session {
	room := r.rooms[roomID]
	if len(room) == 0 {
		return nil
	}
	sessions := make([]Session, 0, len(room))
	for _, b := range room {
		sessions = append(sessions, b.session)
	}
	return sessions
}

// UserID reports the identity bound to the session, if any.
func (r *Registry) UserID(sess Session) (string, bool) {
	b, ok := r.bindings[sess.ID()]
	if !ok || b.userID == "" {
		return "", false
	}
	return b.userID, true
}

// SessionCount reports the number of connected sessions.
func (r *Registry) SessionCount() int {
	return len(r.bindings)
}

// Teardown drops every session and room. Used on engine shutdown.
func (r *Registry) Teardown() {
	r.bindings = make(map[string]*binding)
	r.rooms = make(map[string]map[string]*binding)
}

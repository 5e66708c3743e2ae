// Package client is the Go client library for a chatwire server: a REST
// client, a socket client and a reconciliation store that merges REST
// fetches, optimistic local mutations and pushed events into one ordered
// view of messages and chat summaries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chatwire/internal/models"
	"chatwire/pkg/logger"
)

var (
	// ErrNoOpenChat means a message operation was attempted with no chat
	// selected.
	ErrNoOpenChat = errors.New("no chat is open")
	// ErrSendInFlight means a send/edit/delete is already pending; the
	// caller must not resubmit until it settles.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrMessageDeleted means the target message was deleted and cannot be
	// edited.
	ErrMessageDeleted = errors.New("cannot edit a deleted message")
)

// DefaultTypingIdle is how long a typing indicator survives without a
// refresh before the timer clears it. The timer is client-only and always
// fires; no server round-trip can cancel it.
const DefaultTypingIdle = 3 * time.Second

// Store holds the client's authoritative in-memory chat state. One mutex
// serializes every entry point — push handlers, local mutations and reads —
// so each merge runs whole, mirroring the single UI-thread ownership the
// state assumes. The chat list and message list are owned exclusively by
// the store; nothing mutates them from outside.
type Store struct {
	user models.User
	api  API
	sock Emitter
	idle time.Duration

	mu            sync.Mutex
	chats         []models.Chat
	messages      []models.Message
	openChatID    string
	notifications []models.Message
	sending       bool

	typing      bool // indicator: someone else is typing in the open chat
	typingTimer *time.Timer
	selfTyping  bool // we have emitted typing without a stop yet
	selfTimer   *time.Timer
}

func NewStore(user models.User, api API, sock Emitter) *Store {
	return &Store{
		user: user,
		api:  api,
		sock: sock,
		idle: DefaultTypingIdle,
	}
}

// SetTypingIdle overrides the typing idle window. Call before use.
func (s *Store) SetTypingIdle(d time.Duration) { s.idle = d }

// LoadChats replaces the chat-summary list from a REST fetch.
func (s *Store) LoadChats(ctx context.Context) error {
	chats, err := s.api.FetchChats(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.chats = sortChats(chats)
	s.mu.Unlock()
	return nil
}

// OpenChat selects a chat: fetches its messages, joins its broadcast room
// and clears its queued notifications. On failure the previous selection
// stays untouched.
func (s *Store) OpenChat(ctx context.Context, chatID string) error {
	messages, err := s.api.FetchMessages(ctx, chatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.openChatID = chatID
	s.messages = messages
	s.clearTypingLocked()
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.Chat == nil || n.Chat.ID != chatID {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
	s.mu.Unlock()

	return s.sock.Emit(models.EventJoinChat, chatID)
}

// SendMessage is a confirmed-optimistic send: the REST call is awaited, the
// server-confirmed record lands in the local lists immediately, and only
// then the fan-out event goes to the other participants. A REST failure
// leaves every list untouched. A second call while one is pending returns
// ErrSendInFlight.
func (s *Store) SendMessage(ctx context.Context, content string) (*models.Message, error) {
	s.mu.Lock()
	if s.openChatID == "" {
		s.mu.Unlock()
		return nil, ErrNoOpenChat
	}
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	chatID := s.openChatID
	s.mu.Unlock()
	defer s.clearSending()

	s.StopTyping()

	msg, err := s.api.SendMessage(ctx, chatID, content)
	if err != nil {
		return nil, err
	}

	s.apply(*msg, mergeMessage)

	if err := s.sock.Emit(models.EventNewMessage, msg); err != nil {
		logger.Error("emit new message: %v", err)
	}
	return msg, nil
}

// EditMessage overwrites a message's content and broadcasts the
// authoritative copy so every participant, this client included on the push
// path, converges on it.
func (s *Store) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	for _, m := range s.messages {
		if m.ID == messageID && m.IsDeleted {
			s.mu.Unlock()
			return nil, ErrMessageDeleted
		}
	}
	s.sending = true
	s.mu.Unlock()
	defer s.clearSending()

	s.StopTyping()

	msg, err := s.api.EditMessage(ctx, messageID, content)
	if err != nil {
		return nil, err
	}

	s.apply(*msg, mergeUpdate)

	if err := s.sock.Emit(models.EventMessageUpdated, msg); err != nil {
		logger.Error("emit message updated: %v", err)
	}
	return msg, nil
}

// DeleteMessage soft-deletes: the server returns the record with the
// placeholder content and deleted flag, which replaces the local copy.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) (*models.Message, error) {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	s.mu.Unlock()
	defer s.clearSending()

	msg, err := s.api.DeleteMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.apply(*msg, mergeUpdate)

	if err := s.sock.Emit(models.EventMessageDeleted, msg); err != nil {
		logger.Error("emit message deleted: %v", err)
	}
	return msg, nil
}

func (s *Store) clearSending() {
	s.mu.Lock()
	s.sending = false
	s.mu.Unlock()
}

// apply merges a confirmed or pushed message into the open message list via
// merge and runs the chat list through the shared normalization point. The
// target list is chosen by the message's embedded chat id against the
// *current* selection, never a selection captured earlier.
func (s *Store) apply(msg models.Message, merge func([]models.Message, models.Message) []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Chat != nil && msg.Chat.ID == s.openChatID {
		s.messages = merge(s.messages, msg)
	}
	s.chats = promoteChat(s.chats, msg)
}

// HandleEvent is the push entry point; wire it as the socket's handler.
func (s *Store) HandleEvent(ev models.Event) {
	switch ev.Name {
	case models.EventMessageReceived:
		s.handleReceived(ev)
	case models.EventMessageUpdated, models.EventMessageDeleted:
		s.handleChanged(ev)
	case models.EventTyping:
		s.handleTyping(ev, true)
	case models.EventStopTyping:
		s.handleTyping(ev, false)
	}
}

func (s *Store) handleReceived(ev models.Event) {
	var msg models.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil || msg.Chat == nil {
		logger.Error("malformed %s push: %v", ev.Name, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Chat.ID == s.openChatID {
		s.messages = mergeMessage(s.messages, msg)
	} else {
		s.queueNotificationLocked(msg)
	}
	s.chats = promoteChat(s.chats, msg)
}

func (s *Store) handleChanged(ev models.Event) {
	var msg models.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil || msg.Chat == nil {
		logger.Error("malformed %s push: %v", ev.Name, err)
		return
	}
	s.apply(msg, mergeUpdate)
}

func (s *Store) queueNotificationLocked(msg models.Message) {
	for _, n := range s.notifications {
		if n.ID == msg.ID {
			return
		}
	}
	s.notifications = append([]models.Message{msg}, s.notifications...)
}

// handleTyping keys on the event's embedded chat id: indicators for chats
// other than the current selection are ignored, never misapplied.
func (s *Store) handleTyping(ev models.Event, on bool) {
	var chatID string
	if err := json.Unmarshal(ev.Data, &chatID); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID != s.openChatID {
		return
	}
	if !on {
		s.clearTypingLocked()
		return
	}
	s.typing = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	// Idle timer, not an event ack: it always fires and clears the
	// indicator even if the peer's stop-typing never arrives.
	s.typingTimer = time.AfterFunc(s.idle, func() {
		s.mu.Lock()
		s.typing = false
		s.mu.Unlock()
	})
}

func (s *Store) clearTypingLocked() {
	s.typing = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

// NotifyTyping tells other participants this client is composing. The first
// call emits typing; an idle timer emits stop typing once the calls stop.
func (s *Store) NotifyTyping() {
	s.mu.Lock()
	if s.openChatID == "" {
		s.mu.Unlock()
		return
	}
	chatID := s.openChatID
	emit := !s.selfTyping
	s.selfTyping = true
	if s.selfTimer != nil {
		s.selfTimer.Stop()
	}
	s.selfTimer = time.AfterFunc(s.idle, s.StopTyping)
	s.mu.Unlock()

	if emit {
		s.sock.Emit(models.EventTyping, chatID)
	}
}

// StopTyping emits stop typing if a typing emission is outstanding.
func (s *Store) StopTyping() {
	s.mu.Lock()
	if !s.selfTyping {
		s.mu.Unlock()
		return
	}
	s.selfTyping = false
	if s.selfTimer != nil {
		s.selfTimer.Stop()
		s.selfTimer = nil
	}
	chatID := s.openChatID
	s.mu.Unlock()

	if chatID != "" {
		s.sock.Emit(models.EventStopTyping, chatID)
	}
}

// Chats returns a copy of the summary list, most recently active first.
func (s *Store) Chats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Chat{}, s.chats...)
}

// Messages returns a copy of the open chat's message list.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.messages...)
}

// Notifications returns queued messages for chats that are not open.
func (s *Store) Notifications() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.notifications...)
}

// Typing reports whether another participant is typing in the open chat.
func (s *Store) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// OpenChatID returns the current selection, empty when no chat is open.
func (s *Store) OpenChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openChatID
}

// User returns the identity the store was built for.
func (s *Store) User() models.User { return s.user }

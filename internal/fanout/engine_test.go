package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chatwire/internal/models"
	"chatwire/internal/registry"
)

type fakeSession struct {
	id     string
	events []models.Event
	full   bool
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(ev models.Event) bool {
	if f.full {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSession) names() []models.EventName {
	names := make([]models.EventName, 0, len(f.events))
	for _, ev := range f.events {
		names = append(names, ev.Name)
	}
	return names
}

func mustEvent(t *testing.T, name models.EventName, v any) models.Event {
	t.Helper()
	ev, err := models.NewEvent(name, v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return ev
}

// newEngine returns an engine whose registry is pre-wired with sessions for
// users a and b, both set up and joined to chat c1. Events are handled
// directly instead of through Run so tests stay synchronous.
func newEngine(t *testing.T) (*Engine, *fakeSession, *fakeSession) {
	t.Helper()
	reg := registry.New()
	e := New(reg)

	a := &fakeSession{id: "sess-a"}
	b := &fakeSession{id: "sess-b"}
	for sess, user := range map[*fakeSession]string{a: "user-a", b: "user-b"} {
		reg.Connect(sess)
		e.handle(sess, mustEvent(t, models.EventSetup, models.User{ID: user}))
		e.handle(sess, mustEvent(t, models.EventJoinChat, "c1"))
	}
	a.events, b.events = nil, nil
	return e, a, b
}

func chatMessage(id, senderID, content string) models.Message {
	return models.Message{
		ID:      id,
		Sender:  models.User{ID: senderID},
		Content: content,
		Chat: &models.Chat{
			ID:        "c1",
			Users:     []models.User{{ID: "user-a"}, {ID: "user-b"}},
			UpdatedAt: time.Now(),
		},
	}
}

func TestSetupAcksWithConnected(t *testing.T) {
	reg := registry.New()
	e := New(reg)
	sess := &fakeSession{id: "s1"}
	reg.Connect(sess)

	e.handle(sess, mustEvent(t, models.EventSetup, models.User{ID: "u1"}))

	if len(sess.events) != 1 || sess.events[0].Name != models.EventConnected {
		t.Fatalf("want connected ack, got %v", sess.names())
	}
	if _, ok := reg.UserID(sess); !ok {
		t.Fatal("setup should bind the identity")
	}
}

func TestSetupWithMalformedPayloadIsDropped(t *testing.T) {
	reg := registry.New()
	e := New(reg)
	sess := &fakeSession{id: "s1"}
	reg.Connect(sess)

	e.handle(sess, models.Event{Name: models.EventSetup, Data: json.RawMessage(`"not a user"`)})

	if len(sess.events) != 0 {
		t.Fatalf("no ack expected, got %v", sess.names())
	}
}

func TestTypingExcludesOriginator(t *testing.T) {
	e, a, b := newEngine(t)

	e.handle(a, mustEvent(t, models.EventTyping, "c1"))

	if len(a.events) != 0 {
		t.Fatalf("originator should not get its own typing echo, got %v", a.names())
	}
	if len(b.events) != 1 || b.events[0].Name != models.EventTyping {
		t.Fatalf("peer should receive typing, got %v", b.names())
	}

	var chatID string
	if err := json.Unmarshal(b.events[0].Data, &chatID); err != nil || chatID != "c1" {
		t.Fatalf("typing payload should carry the chat id, got %s", b.events[0].Data)
	}
}

func TestStopTypingExcludesOriginator(t *testing.T) {
	e, a, b := newEngine(t)

	e.handle(b, mustEvent(t, models.EventStopTyping, "c1"))

	if len(b.events) != 0 {
		t.Fatalf("originator should get nothing, got %v", b.names())
	}
	if len(a.events) != 1 || a.events[0].Name != models.EventStopTyping {
		t.Fatalf("peer should receive stop typing, got %v", a.names())
	}
}

func TestNewMessageFansOutToUserRoomsExceptSender(t *testing.T) {
	e, a, b := newEngine(t)

	e.handle(a, mustEvent(t, models.EventNewMessage, chatMessage("m1", "user-a", "hello")))

	if len(a.events) != 0 {
		t.Fatalf("sender applied the message optimistically and must not get an echo, got %v", a.names())
	}
	if len(b.events) != 1 || b.events[0].Name != models.EventMessageReceived {
		t.Fatalf("recipient should get message recieved, got %v", b.names())
	}

	var msg models.Message
	if err := json.Unmarshal(b.events[0].Data, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.ID != "m1" || msg.Chat == nil || len(msg.Chat.Users) != 2 {
		t.Fatalf("payload should be the full populated message, got %+v", msg)
	}
}

func TestNewMessageWithoutChatUsersIsDropped(t *testing.T) {
	e, a, b := newEngine(t)

	msg := chatMessage("m1", "user-a", "hello")
	msg.Chat.Users = nil
	e.handle(a, mustEvent(t, models.EventNewMessage, msg))

	if len(a.events) != 0 || len(b.events) != 0 {
		t.Fatal("malformed event should be dropped whole, no partial fan-out")
	}
}

func TestMessageUpdatedReachesEveryoneIncludingEditor(t *testing.T) {
	e, a, b := newEngine(t)

	e.handle(a, mustEvent(t, models.EventMessageUpdated, chatMessage("m1", "user-a", "edited")))

	// The editor must converge on the authoritative server copy too.
	if len(a.events) != 1 || a.events[0].Name != models.EventMessageUpdated {
		t.Fatalf("editor should receive the update, got %v", a.names())
	}
	if len(b.events) != 1 || b.events[0].Name != models.EventMessageUpdated {
		t.Fatalf("peer should receive the update, got %v", b.names())
	}
}

func TestMessageDeletedBroadcastsPlaceholder(t *testing.T) {
	e, _, b := newEngine(t)

	msg := chatMessage("m1", "user-a", models.DeletedPlaceholder)
	msg.IsDeleted = true
	e.handle(&fakeSession{id: "other"}, mustEvent(t, models.EventMessageDeleted, msg))

	if len(b.events) != 1 || b.events[0].Name != models.EventMessageDeleted {
		t.Fatalf("want message deleted, got %v", b.names())
	}
	var got models.Message
	if err := json.Unmarshal(b.events[0].Data, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !got.IsDeleted || got.Content != models.DeletedPlaceholder {
		t.Fatalf("payload should carry the deleted flag and placeholder, got %+v", got)
	}
}

func TestSlowSessionLosesItsCopyOnly(t *testing.T) {
	e, a, b := newEngine(t)
	b.full = true

	e.handle(a, mustEvent(t, models.EventTyping, "c1"))
	b.full = false
	e.handle(a, mustEvent(t, models.EventTyping, "c1"))

	// At-most-once: the first copy is simply lost, later events still flow.
	if len(b.events) != 1 {
		t.Fatalf("want exactly the second typing event, got %v", b.names())
	}
}

type chanSession struct {
	id string
	ch chan models.Event
}

func (c *chanSession) ID() string { return c.id }

func (c *chanSession) Send(ev models.Event) bool {
	select {
	case c.ch <- ev:
		return true
	default:
		return false
	}
}

func TestRunLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(registry.New())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	sess := &chanSession{id: "s1", ch: make(chan models.Event, 8)}
	e.Register(sess)
	e.Dispatch(sess, mustEvent(t, models.EventSetup, models.User{ID: "u1"}))

	select {
	case ev := <-sess.ch:
		if ev.Name != models.EventConnected {
			t.Fatalf("want connected, got %s", ev.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connected ack")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestJoinChatBeforeSetupDeliversNothing(t *testing.T) {
	e, a, _ := newEngine(t)
	ghost := &fakeSession{id: "ghost"}
	e.reg.Connect(ghost)
	e.handle(ghost, mustEvent(t, models.EventJoinChat, "c1"))

	e.handle(a, mustEvent(t, models.EventTyping, "c1"))

	if len(ghost.events) != 0 {
		t.Fatalf("unbound session must not receive room traffic, got %v", ghost.names())
	}
}

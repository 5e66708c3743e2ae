package registry

import (
	"testing"

	"chatwire/internal/models"
)

type fakeSession struct {
	id     string
	events []models.Event
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(ev models.Event) bool {
	f.events = append(f.events, ev)
	return true
}

func TestSetupBindsOnce(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "s1"}
	r.Connect(sess)

	if !r.Setup(sess, "u1") {
		t.Fatal("first setup should succeed")
	}
	if !r.Setup(sess, "u1") {
		t.Fatal("setup with the same identity should be a no-op success")
	}
	if r.Setup(sess, "u2") {
		t.Fatal("rebinding to a different identity should be rejected")
	}

	userID, ok := r.UserID(sess)
	if !ok || userID != "u1" {
		t.Fatalf("got identity %q, want u1", userID)
	}
}

func TestSetupJoinsPrivateRoom(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "s1"}
	r.Connect(sess)
	r.Setup(sess, "u1")

	members := r.Room("u1")
	if len(members) != 1 || members[0].ID() != "s1" {
		t.Fatalf("user room should contain the session, got %v", members)
	}
}

func TestJoinChatBeforeSetupIsRejected(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "s1"}
	r.Connect(sess)

	if r.JoinChat(sess, "c1") {
		t.Fatal("join before setup should be rejected")
	}
	if got := r.Room("c1"); got != nil {
		t.Fatalf("chat room should be empty, got %v", got)
	}
}

func TestJoinAccumulatesAcrossChatSwitches(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "s1"}
	r.Connect(sess)
	r.Setup(sess, "u1")

	r.JoinChat(sess, "c1")
	r.JoinChat(sess, "c2")

	// Switching chats does not leave the previous room; fan-out to a room
	// the user is no longer viewing is handled client-side.
	if len(r.Room("c1")) != 1 || len(r.Room("c2")) != 1 {
		t.Fatal("session should remain in both chat rooms")
	}
}

func TestMultipleSessionsPerUser(t *testing.T) {
	r := New()
	a := &fakeSession{id: "s1"}
	b := &fakeSession{id: "s2"}
	r.Connect(a)
	r.Connect(b)
	r.Setup(a, "u1")
	r.Setup(b, "u1")

	if len(r.Room("u1")) != 2 {
		t.Fatalf("user room should hold both tabs, got %d", len(r.Room("u1")))
	}
}

func TestDisconnectReleasesEverything(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "s1"}
	r.Connect(sess)
	r.Setup(sess, "u1")
	r.JoinChat(sess, "c1")

	r.Disconnect(sess)

	if got := r.Room("u1"); got != nil {
		t.Fatalf("user room should be gone, got %v", got)
	}
	if got := r.Room("c1"); got != nil {
		t.Fatalf("chat room should be gone, got %v", got)
	}
	if r.SessionCount() != 0 {
		t.Fatalf("no session should remain, got %d", r.SessionCount())
	}
	if _, ok := r.UserID(sess); ok {
		t.Fatal("identity should not survive disconnect")
	}
}

func TestDisconnectUnknownSessionIsNoop(t *testing.T) {
	r := New()
	r.Disconnect(&fakeSession{id: "ghost"})
}

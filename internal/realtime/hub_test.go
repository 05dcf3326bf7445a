package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordedEvent struct {
	event   string
	payload interface{}
}

type memberStub struct {
	id     string
	userID string
	mu     sync.Mutex
	events []recordedEvent
}

func (m *memberStub) ID() string     { return m.id }
func (m *memberStub) UserID() string { return m.userID }

func (m *memberStub) Send(event string, payload interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{event: event, payload: payload})
	return true
}

func (m *memberStub) received(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func TestHubRoomsAndPresence(t *testing.T) {
	hub := NewHub(NewLocalPresence())
	alice := &memberStub{id: "c1", userID: "alice"}
	bob := &memberStub{id: "c2", userID: "bob"}

	hub.Attach(alice, map[string]string{"userId": "alice"})
	hub.Attach(bob, map[string]string{"userId": "bob"})
	assert.True(t, hub.IsOnline("alice"))
	assert.Equal(t, 2, alice.received(EventUserOnline))

	hub.Join(alice, "conversation:alice-bob")
	assert.True(t, hub.InRoom("alice", "conversation:alice-bob"))
	assert.False(t, hub.InRoom("bob", "conversation:alice-bob"))

	hub.EmitToRoom("conversation:alice-bob", "message:received", "hi")
	assert.Equal(t, 1, alice.received("message:received"))
	assert.Equal(t, 0, bob.received("message:received"))

	hub.EmitToUser("bob", "message:notification", "ping")
	assert.Equal(t, 1, bob.received("message:notification"))

	hub.Join(bob, "conversation:alice-bob")
	hub.EmitToRoomExcept("conversation:alice-bob", bob, EventTyping, "typing")
	assert.Equal(t, 1, alice.received(EventTyping))
	assert.Equal(t, 0, bob.received(EventTyping))

	hub.Leave(alice, "conversation:alice-bob")
	assert.False(t, hub.InRoom("alice", "conversation:alice-bob"))

	hub.Detach(bob)
	assert.False(t, hub.IsOnline("bob"))
	assert.False(t, hub.InRoom("bob", "conversation:alice-bob"))
	assert.Equal(t, 1, alice.received(EventUserOffline))
}

func TestStaleDisconnectKeepsNewerConnection(t *testing.T) {
	hub := NewHub(NewLocalPresence())
	first := &memberStub{id: "c1", userID: "alice"}
	second := &memberStub{id: "c2", userID: "alice"}
	watcher := &memberStub{id: "c3", userID: "bob"}

	hub.Attach(watcher, nil)
	hub.Attach(first, nil)
	hub.Attach(second, nil)

	hub.Detach(first)
	assert.True(t, hub.IsOnline("alice"))
	assert.Equal(t, 0, watcher.received(EventUserOffline))

	hub.EmitToUser("alice", "message:notification", "x")
	assert.Equal(t, 1, second.received("message:notification"))
	assert.Equal(t, 0, first.received("message:notification"))
}

func TestLocalPresence(t *testing.T) {
	p := NewLocalPresence()
	h := &memberStub{id: "c1", userID: "u1"}

	p.Register("u1", h)
	got, ok := p.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "c1", got.ID())
	assert.Equal(t, []string{"u1"}, p.Online())

	assert.False(t, p.Unregister("u1", &memberStub{id: "other"}))
	assert.True(t, p.Unregister("u1", h))
	_, ok = p.Lookup("u1")
	assert.False(t, ok)
}

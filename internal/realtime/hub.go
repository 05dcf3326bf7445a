package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Events emitted by the hub itself.
const (
	EventUserOnline  = "user:online"
	EventUserOffline = "user:offline"
	EventTyping      = "typing:user"
	EventError       = "message:error"
)

// Member is a connection that can join rooms.
type Member interface {
	Handle
	UserID() string
}

// Hub tracks rooms and presence and fans events out to connections.
type Hub struct {
	mu       sync.RWMutex
	presence Presence
	members  map[string]Member
	rooms    map[string]map[string]Member
	log      *logrus.Entry
}

func NewHub(presence Presence) *Hub {
	return &Hub{
		presence: presence,
		members:  map[string]Member{},
		rooms:    map[string]map[string]Member{},
		log:      logrus.WithField("area", "SOCKET"),
	}
}

// Attach registers a new authenticated connection and announces the user.
func (h *Hub) Attach(m Member, profile interface{}) {
	h.mu.Lock()
	h.members[m.ID()] = m
	h.mu.Unlock()

	h.presence.Register(m.UserID(), m)
	h.log.WithFields(logrus.Fields{"user": m.UserID(), "conn": m.ID()}).Info("user connected")
	h.Broadcast(EventUserOnline, profile)
}

// Detach drops the connection from every room and, when it was the user's
// current connection, announces the user as offline.
func (h *Hub) Detach(m Member) {
	h.mu.Lock()
	delete(h.members, m.ID())
	for room, members := range h.rooms {
		delete(members, m.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"user": m.UserID(), "conn": m.ID()}).Info("user disconnected")
	if h.presence.Unregister(m.UserID(), m) {
		h.Broadcast(EventUserOffline, map[string]string{"userId": m.UserID()})
	}
}

func (h *Hub) Join(m Member, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = map[string]Member{}
		h.rooms[room] = members
	}
	members[m.ID()] = m
}

func (h *Hub) Leave(m Member, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, m.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) EmitToRoom(room, event string, payload interface{}) {
	h.emitToRoom(room, "", event, payload)
}

// EmitToRoomExcept skips the sending connection, like a socket broadcast.
func (h *Hub) EmitToRoomExcept(room string, except Member, event string, payload interface{}) {
	h.emitToRoom(room, except.ID(), event, payload)
}

func (h *Hub) emitToRoom(room, skip, event string, payload interface{}) {
	for _, m := range h.roomMembers(room) {
		if m.ID() == skip {
			continue
		}
		m.Send(event, payload)
	}
}

func (h *Hub) EmitToUser(userID, event string, payload interface{}) {
	if handle, ok := h.presence.Lookup(userID); ok {
		handle.Send(event, payload)
	}
}

func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	members := make([]Member, 0, len(h.members))
	for _, m := range h.members {
		members = append(members, m)
	}
	h.mu.RUnlock()

	for _, m := range members {
		m.Send(event, payload)
	}
}

func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.presence.Lookup(userID)
	return ok
}

// InRoom reports whether any connection of userID has joined room.
func (h *Hub) InRoom(userID, room string) bool {
	for _, m := range h.roomMembers(room) {
		if m.UserID() == userID {
			return true
		}
	}
	return false
}

func (h *Hub) OnlineUsers() []string {
	return h.presence.Online()
}

func (h *Hub) roomMembers(room string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]Member, 0, len(h.rooms[room]))
	for _, m := range h.rooms[room] {
		members = append(members, m)
	}
	return members
}

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/auth"
	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

type userTable map[primitive.ObjectID]*models.User

func (u userTable) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []service.SendMessageInput
	err  error
}

func (m *recordingMessenger) Send(_ context.Context, _ service.Actor, in service.SendMessageInput) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, in)
	return &models.Message{ID: primitive.NewObjectID(), Receiver: in.Receiver, Message: in.Message}, nil
}

func (m *recordingMessenger) MarkRead(_ context.Context, _ service.Actor, id primitive.ObjectID) (*models.Message, error) {
	return &models.Message{ID: id}, nil
}

func (m *recordingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type socketFixture struct {
	server   *httptest.Server
	hub      *Hub
	issuer   *auth.Issuer
	alice    *models.User
	bob      *models.User
	messages *recordingMessenger
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	alice := &models.User{ID: primitive.NewObjectID(), Name: "Alice", Role: models.RoleBuyer, IsActive: true}
	bob := &models.User{ID: primitive.NewObjectID(), Name: "Bob", Role: models.RoleSeller, IsActive: true}
	issuer := auth.NewIssuer("socket-secret", time.Minute)
	hub := NewHub(NewLocalPresence())
	messages := &recordingMessenger{}

	router := gin.New()
	router.GET("/socket", NewServer(hub, issuer, userTable{alice.ID: alice, bob.ID: bob}, messages, []string{"*"}).Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &socketFixture{server: server, hub: hub, issuer: issuer, alice: alice, bob: bob, messages: messages}
}

func (f *socketFixture) dial(t *testing.T, user *models.User) *websocket.Conn {
	t.Helper()
	token, err := f.issuer.Issue(user.ID, user.Role, user.Email)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/socket?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

// readUntil skips events until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Event == event {
			return env
		}
	}
}

func TestHandshakeRequiresToken(t *testing.T) {
	f := newSocketFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/socket"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInactiveAccountCannotConnect(t *testing.T) {
	f := newSocketFixture(t)
	f.alice.IsActive = false
	token, err := f.issuer.Issue(f.alice.ID, f.alice.Role, "")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/socket?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectAnnouncesPresence(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.dial(t, f.alice)
	readUntil(t, alice, EventUserOnline)

	f.dial(t, f.bob)
	env := readUntil(t, alice, EventUserOnline)
	var p profile
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, f.bob.ID.Hex(), p.UserID)
	assert.Equal(t, "Bob", p.Name)
	assert.Eventually(t, func() bool { return f.hub.IsOnline(f.bob.ID.Hex()) }, time.Second, 10*time.Millisecond)
}

func TestJoinIsLimitedToParticipants(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.dial(t, f.alice)
	readUntil(t, alice, EventUserOnline)

	foreign := models.ConversationID(primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex())
	writeEvent(t, alice, EventJoin, foreign)
	readUntil(t, alice, EventError)

	own := models.ConversationID(f.alice.ID.Hex(), f.bob.ID.Hex())
	writeEvent(t, alice, EventJoin, map[string]string{"conversationId": own})
	assert.Eventually(t, func() bool {
		return f.hub.InRoom(f.alice.ID.Hex(), models.ConversationRoom(own))
	}, time.Second, 10*time.Millisecond)
}

func TestTypingReachesTheOtherParticipant(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.dial(t, f.alice)
	bob := f.dial(t, f.bob)
	conversation := models.ConversationID(f.alice.ID.Hex(), f.bob.ID.Hex())
	room := models.ConversationRoom(conversation)

	writeEvent(t, alice, EventJoin, conversation)
	writeEvent(t, bob, EventJoin, conversation)
	assert.Eventually(t, func() bool {
		return f.hub.InRoom(f.alice.ID.Hex(), room) && f.hub.InRoom(f.bob.ID.Hex(), room)
	}, time.Second, 10*time.Millisecond)

	writeEvent(t, alice, EventTypingStart, conversation)
	env := readUntil(t, bob, EventTyping)
	var typing typingPayload
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.Equal(t, f.alice.ID.Hex(), typing.UserID)
	assert.True(t, typing.IsTyping)
}

func TestSendEventReachesMessenger(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.dial(t, f.alice)

	writeEvent(t, alice, EventSend, map[string]string{"recipientId": f.bob.ID.Hex(), "content": "olá"})
	assert.Eventually(t, func() bool { return f.messages.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "olá", f.messages.sent[0].Message)
	assert.Equal(t, f.bob.ID, f.messages.sent[0].Receiver)

	writeEvent(t, alice, EventSend, map[string]string{"receiverId": "nope", "message": "hi"})
	env := readUntil(t, alice, EventError)
	assert.Contains(t, string(env.Data), "invalid receiver")
}

func TestSendFailureReportsDomainMessage(t *testing.T) {
	f := newSocketFixture(t)
	f.messages.err = &service.Error{Kind: service.ErrValidation, Message: "message is required"}
	alice := f.dial(t, f.alice)

	writeEvent(t, alice, EventSend, map[string]string{"receiverId": f.bob.ID.Hex()})
	env := readUntil(t, alice, EventError)
	assert.Contains(t, string(env.Data), "message is required")
}

func TestDisconnectGoesOffline(t *testing.T) {
	f := newSocketFixture(t)
	alice := f.dial(t, f.alice)
	bob := f.dial(t, f.bob)
	readUntil(t, alice, EventUserOnline)

	bob.Close()
	env := readUntil(t, alice, EventUserOffline)
	assert.Contains(t, string(env.Data), f.bob.ID.Hex())
	assert.False(t, f.hub.IsOnline(f.bob.ID.Hex()))
}

func TestConversationIDPayloads(t *testing.T) {
	assert.Equal(t, "a-b", conversationID(json.RawMessage(`"a-b"`)))
	assert.Equal(t, "a-b", conversationID(json.RawMessage(`{"conversationId":" a-b "}`)))
	assert.Equal(t, "", conversationID(json.RawMessage(`42`)))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	req := httptest.NewRequest(http.MethodGet, "/socket", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}

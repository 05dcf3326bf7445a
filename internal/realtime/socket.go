package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/auth"
	"marketplace/internal/models"
	"marketplace/internal/service"
)

// Events accepted from clients.
const (
	EventJoin        = "conversation:join"
	EventLeave       = "conversation:leave"
	EventSend        = "message:send"
	EventRead        = "message:read"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
)

const eventTimeout = 5 * time.Second

var _ service.Deliverer = (*Hub)(nil)

type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

type AccountLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Messenger is the part of the messaging service the socket drives.
type Messenger interface {
	Send(ctx context.Context, actor service.Actor, in service.SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, actor service.Actor, id primitive.ObjectID) (*models.Message, error)
}

type Server struct {
	hub      *Hub
	tokens   TokenParser
	accounts AccountLookup
	messages Messenger
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func NewServer(hub *Hub, tokens TokenParser, accounts AccountLookup, messages Messenger, allowedOrigins []string) *Server {
	return &Server{
		hub:      hub,
		tokens:   tokens,
		accounts: accounts,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: logrus.WithField("area", "SOCKET"),
	}
}

type profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type sendPayload struct {
	ReceiverID  string              `json:"receiverId"`
	RecipientID string              `json:"recipientId"`
	Message     string              `json:"message"`
	Content     string              `json:"content"`
	ProductID   string              `json:"productId"`
	Type        string              `json:"type"`
	Attachments []models.Attachment `json:"attachments"`
}

type typingPayload struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

// Handle authenticates the handshake with the access token from the
// "token" query parameter or the Authorization header, then upgrades.
func (s *Server) Handle(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("token"))
	if raw == "" {
		raw, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
		return
	}

	user, err := s.authenticate(c.Request.Context(), raw)
	if err != nil {
		s.log.WithError(err).Debug("socket authentication failed")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(conn, user.ID.Hex(), user.Name, user.Avatar)
	actor := service.Actor{ID: user.ID, Role: user.Role}

	s.hub.Attach(client, profile{UserID: client.userID, Name: client.name, Avatar: client.avatar})
	go client.writePump()

	client.readPump(func(env Envelope) {
		s.dispatch(client, actor, env)
	})

	s.hub.Detach(client)
	client.close()
}

func (s *Server) authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load socket user")
	}
	if !user.IsActive {
		return nil, errors.New("account is inactive")
	}
	return user, nil
}

func (s *Server) dispatch(client *Client, actor service.Actor, env Envelope) {
	switch env.Event {
	case EventJoin:
		conversation, ok := s.participantConversation(client, env.Data)
		if ok {
			s.hub.Join(client, models.ConversationRoom(conversation))
		}
	case EventLeave:
		if conversation := conversationID(env.Data); conversation != "" {
			s.hub.Leave(client, models.ConversationRoom(conversation))
		}
	case EventSend:
		s.send(client, actor, env.Data)
	case EventRead:
		s.markRead(client, actor, env.Data)
	case EventTypingStart, EventTypingStop:
		conversation, ok := s.participantConversation(client, env.Data)
		if !ok {
			return
		}
		s.hub.EmitToRoomExcept(models.ConversationRoom(conversation), client, EventTyping, typingPayload{
			UserID:   client.userID,
			Name:     client.name,
			IsTyping: env.Event == EventTypingStart,
		})
	default:
		client.Send(EventError, map[string]string{"message": "unknown event"})
	}
}

func (s *Server) send(client *Client, actor service.Actor, data json.RawMessage) {
	var payload sendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.Send(EventError, map[string]string{"message": "invalid message payload"})
		return
	}

	in := service.SendMessageInput{
		Message:     firstNonEmpty(payload.Message, payload.Content),
		Type:        payload.Type,
		Attachments: payload.Attachments,
	}
	receiver, err := primitive.ObjectIDFromHex(firstNonEmpty(payload.ReceiverID, payload.RecipientID))
	if err != nil {
		client.Send(EventError, map[string]string{"message": "invalid receiver"})
		return
	}
	in.Receiver = receiver
	if payload.ProductID != "" {
		product, err := primitive.ObjectIDFromHex(payload.ProductID)
		if err != nil {
			client.Send(EventError, map[string]string{"message": "invalid product"})
			return
		}
		in.Product = &product
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if _, err := s.messages.Send(ctx, actor, in); err != nil {
		s.reportError(client, "send message", err)
	}
}

func (s *Server) markRead(client *Client, actor service.Actor, data json.RawMessage) {
	var payload struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		client.Send(EventError, map[string]string{"message": "invalid read payload"})
		return
	}
	id, err := primitive.ObjectIDFromHex(payload.MessageID)
	if err != nil {
		client.Send(EventError, map[string]string{"message": "invalid message id"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if _, err := s.messages.MarkRead(ctx, actor, id); err != nil {
		s.reportError(client, "mark read", err)
	}
}

func (s *Server) reportError(client *Client, op string, err error) {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		client.Send(EventError, map[string]string{"message": domainErr.Message})
		return
	}
	s.log.WithError(err).WithField("user", client.userID).Errorf("%s failed", op)
	client.Send(EventError, map[string]string{"message": "error sending message"})
}

// participantConversation only lets users into conversations they are part of.
func (s *Server) participantConversation(client *Client, data json.RawMessage) (string, bool) {
	conversation := conversationID(data)
	first, second, ok := models.ConversationParticipants(conversation)
	if !ok || (client.userID != first && client.userID != second) {
		client.Send(EventError, map[string]string{"message": "not a participant of this conversation"})
		return "", false
	}
	return conversation, true
}

// conversationID accepts a bare string or {"conversationId": "..."}.
func conversationID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var payload struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		return strings.TrimSpace(payload.ConversationID)
	}
	return ""
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/repository"
)

// Realtime events emitted by the messaging service.
const (
	EventMessageReceived     = "message:received"
	EventMessageNotification = "message:notification"
	EventMessageReadConfirm  = "message:read:confirm"
)

const (
	maxMessageLength = 1000
	previewLength    = 50
)

type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	ListConversation(ctx context.Context, conversation string, page repository.Page) ([]models.Message, int64, error)
	MarkConversationRead(ctx context.Context, conversation string, receiver primitive.ObjectID, at time.Time) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error)
	CountUnread(ctx context.Context, receiver primitive.ObjectID) (int64, error)
	Conversations(ctx context.Context, user primitive.ObjectID) ([]models.Conversation, error)
}

type MessageUsers interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
}

// Deliverer pushes events to connected clients. Delivery is best effort:
// a user who is not connected simply misses the push.
type Deliverer interface {
	EmitToRoom(room, event string, payload interface{})
	EmitToUser(userID, event string, payload interface{})
	IsOnline(userID string) bool
	InRoom(userID, room string) bool
}

type SendMessageInput struct {
	Receiver    primitive.ObjectID
	Product     *primitive.ObjectID
	Message     string
	Type        string
	Attachments []models.Attachment
}

type MessageNotification struct {
	ConversationID string             `json:"conversationId"`
	Sender         models.UserSummary `json:"sender"`
	Preview        string             `json:"preview"`
}

type ReadConfirmation struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}

// ConversationView is an inbox row with the other participant's profile.
type ConversationView struct {
	models.Conversation
	Participant *models.UserSummary `json:"participant,omitempty"`
}

type MessageService struct {
	messages MessageStore
	users    MessageUsers
	deliver  Deliverer
	log      *logrus.Entry
}

func NewMessageService(messages MessageStore, users MessageUsers, deliver Deliverer) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		deliver:  deliver,
		log:      logrus.WithField("area", "MESSAGE"),
	}
}

// Send persists the message first and only then attempts live delivery.
func (s *MessageService) Send(ctx context.Context, actor Actor, in SendMessageInput) (*models.Message, error) {
	if in.Receiver.IsZero() {
		return nil, fail(ErrValidation, "receiver is required")
	}
	if in.Receiver == actor.ID {
		return nil, fail(ErrValidation, "cannot send a message to yourself")
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, fail(ErrValidation, "message is required")
	}
	if len(text) > maxMessageLength {
		return nil, fail(ErrValidation, "message must have at most %d characters", maxMessageLength)
	}
	kind := in.Type
	if kind == "" {
		kind = models.MessageText
	}
	if !models.ValidMessageType(kind) {
		return nil, fail(ErrValidation, "invalid message type")
	}

	receiver, err := s.users.FindByID(ctx, in.Receiver)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !receiver.IsActive) {
		return nil, fail(ErrNotFound, "receiver not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load receiver")
	}

	message := &models.Message{
		Conversation: models.ConversationID(actor.ID.Hex(), in.Receiver.Hex()),
		Sender:       actor.ID,
		Receiver:     in.Receiver,
		Product:      in.Product,
		Message:      text,
		Type:         kind,
		Attachments:  in.Attachments,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}

	s.push(ctx, actor, message)
	return message, nil
}

// push fans the message out to the conversation room and, when the receiver
// is connected elsewhere, notifies them directly.
func (s *MessageService) push(ctx context.Context, actor Actor, message *models.Message) {
	room := models.ConversationRoom(message.Conversation)
	s.deliver.EmitToRoom(room, EventMessageReceived, map[string]interface{}{"message": message})

	receiverID := message.Receiver.Hex()
	if !s.deliver.IsOnline(receiverID) || s.deliver.InRoom(receiverID, room) {
		return
	}

	sender := models.UserSummary{ID: actor.ID}
	if summaries, err := s.users.Summaries(ctx, []primitive.ObjectID{actor.ID}); err == nil {
		if summary, ok := summaries[actor.ID]; ok {
			sender = summary
		}
	} else {
		s.log.WithError(err).Warn("sender lookup for notification failed")
	}

	s.deliver.EmitToUser(receiverID, EventMessageNotification, MessageNotification{
		ConversationID: message.Conversation,
		Sender:         sender,
		Preview:        Preview(message.Message),
	})
}

func (s *MessageService) Conversations(ctx context.Context, actor Actor) ([]ConversationView, error) {
	conversations, err := s.messages.Conversations(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}

	others := make([]primitive.ObjectID, 0, len(conversations))
	for _, conversation := range conversations {
		others = append(others, otherParticipant(conversation.LastMessage, actor.ID))
	}
	summaries, err := s.users.Summaries(ctx, others)
	if err != nil {
		return nil, errors.Wrap(err, "load participants")
	}

	views := make([]ConversationView, 0, len(conversations))
	for i, conversation := range conversations {
		view := ConversationView{Conversation: conversation}
		if summary, ok := summaries[others[i]]; ok {
			view.Participant = &summary
		}
		views = append(views, view)
	}
	return views, nil
}

// ConversationMessages returns a page oldest-first and marks every unread
// message addressed to the caller in that conversation as read.
func (s *MessageService) ConversationMessages(ctx context.Context, actor Actor, conversationID string, page repository.Page) (PageResult[models.Message], error) {
	first, second, ok := models.ConversationParticipants(conversationID)
	if !ok {
		return PageResult[models.Message]{}, fail(ErrValidation, "invalid conversation id")
	}
	me := actor.ID.Hex()
	if me != first && me != second {
		return PageResult[models.Message]{}, fail(ErrForbidden, "not a participant of this conversation")
	}

	messages, total, err := s.messages.ListConversation(ctx, conversationID, page)
	if err != nil {
		return PageResult[models.Message]{}, errors.Wrap(err, "list messages")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if _, err := s.messages.MarkConversationRead(ctx, conversationID, actor.ID, time.Now()); err != nil {
		return PageResult[models.Message]{}, errors.Wrap(err, "mark conversation read")
	}
	return pageOf(messages, page, total), nil
}

// MarkRead is allowed to the receiver only; the sender gets a confirmation
// event when connected.
func (s *MessageService) MarkRead(ctx context.Context, actor Actor, id primitive.ObjectID) (*models.Message, error) {
	message, err := s.messages.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "message not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load message")
	}
	if message.Receiver != actor.ID {
		return nil, fail(ErrForbidden, "only the receiver can mark a message as read")
	}

	updated, err := s.messages.MarkRead(ctx, id, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "mark message read")
	}

	senderID := updated.Sender.Hex()
	if s.deliver.IsOnline(senderID) {
		s.deliver.EmitToUser(senderID, EventMessageReadConfirm, ReadConfirmation{
			MessageID: updated.ID.Hex(),
			ReadBy:    actor.ID.Hex(),
		})
	}
	return updated, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	count, err := s.messages.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return count, nil
}

// Preview cuts text to the notification preview length without splitting runes.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}

func otherParticipant(message models.Message, me primitive.ObjectID) primitive.ObjectID {
	if message.Sender == me {
		return message.Receiver
	}
	return message.Sender
}

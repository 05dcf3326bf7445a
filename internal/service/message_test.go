package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/service"
)

type messageFixture struct {
	messages *fakeMessages
	deliver  *fakeDeliverer
	svc      *service.MessageService
	alice    service.Actor
	bob      service.Actor
}

func newMessageFixture() *messageFixture {
	alice := &models.User{Name: "Alice", IsActive: true, Role: models.RoleBuyer}
	bob := &models.User{Name: "Bob", IsActive: true, Role: models.RoleSeller}
	users := newFakeUsers(alice, bob)
	messages := &fakeMessages{}
	deliver := newFakeDeliverer()
	return &messageFixture{
		messages: messages,
		deliver:  deliver,
		svc:      service.NewMessageService(messages, users, deliver),
		alice:    service.Actor{ID: alice.ID, Role: alice.Role},
		bob:      service.Actor{ID: bob.ID, Role: bob.Role},
	}
}

func TestSendNotifiesOnlineReceiverOutsideRoom(t *testing.T) {
	f := newMessageFixture()
	f.deliver.online[f.bob.ID.Hex()] = true

	text := strings.Repeat("a", 80)
	message, err := f.svc.Send(context.Background(), f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: text})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationID(f.alice.ID.Hex(), f.bob.ID.Hex()), message.Conversation)
	assert.Equal(t, models.MessageText, message.Type)

	require.Len(t, f.deliver.toRoom, 1)
	assert.Equal(t, models.ConversationRoom(message.Conversation), f.deliver.toRoom[0].target)
	assert.Equal(t, service.EventMessageReceived, f.deliver.toRoom[0].event)

	require.Len(t, f.deliver.toUser, 1)
	assert.Equal(t, f.bob.ID.Hex(), f.deliver.toUser[0].target)
	notification, ok := f.deliver.toUser[0].payload.(service.MessageNotification)
	require.True(t, ok)
	assert.Equal(t, "Alice", notification.Sender.Name)
	assert.Len(t, []rune(notification.Preview), 50)
}

func TestSendSkipsNotificationWhenReceiverInRoom(t *testing.T) {
	f := newMessageFixture()
	room := models.ConversationRoom(models.ConversationID(f.alice.ID.Hex(), f.bob.ID.Hex()))
	f.deliver.join(f.bob.ID.Hex(), room)

	_, err := f.svc.Send(context.Background(), f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: "hi"})
	require.NoError(t, err)
	assert.Len(t, f.deliver.toRoom, 1)
	assert.Empty(t, f.deliver.toUser)
}

func TestSendPersistsWhenReceiverOffline(t *testing.T) {
	f := newMessageFixture()

	_, err := f.svc.Send(context.Background(), f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: "hi"})
	require.NoError(t, err)
	assert.Len(t, f.messages.items, 1)
	assert.Empty(t, f.deliver.toUser)

	count, err := f.svc.UnreadCount(context.Background(), f.bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSendValidation(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: f.alice.ID, Message: "me"})
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: "   "})
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: strings.Repeat("x", 1001)})
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: newBuyer().ID, Message: "hello"})
	assert.True(t, errors.Is(err, service.ErrNotFound))
	assert.Empty(t, f.messages.items)
}

func TestConversationMessagesOldestFirstAndMarksRead(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: text})
		require.NoError(t, err)
	}
	conversation := models.ConversationID(f.bob.ID.Hex(), f.alice.ID.Hex())

	page, err := f.svc.ConversationMessages(ctx, f.bob, conversation, repository.NewPage(1, 50))
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "one", page.Items[0].Message)
	assert.Equal(t, "three", page.Items[2].Message)

	count, err := f.svc.UnreadCount(ctx, f.bob)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConversationMessagesRejectsOutsiders(t *testing.T) {
	f := newMessageFixture()
	conversation := models.ConversationID(f.alice.ID.Hex(), f.bob.ID.Hex())

	_, err := f.svc.ConversationMessages(context.Background(), newBuyer(), conversation, repository.NewPage(1, 50))
	assert.True(t, errors.Is(err, service.ErrForbidden))

	_, err = f.svc.ConversationMessages(context.Background(), f.alice, "garbage", repository.NewPage(1, 50))
	assert.True(t, errors.Is(err, service.ErrValidation))
}

func TestMarkReadConfirmsToSender(t *testing.T) {
	f := newMessageFixture()
	ctx := context.Background()

	message, err := f.svc.Send(ctx, f.alice, service.SendMessageInput{Receiver: f.bob.ID, Message: "ping"})
	require.NoError(t, err)

	_, err = f.svc.MarkRead(ctx, f.alice, message.ID)
	assert.True(t, errors.Is(err, service.ErrForbidden))

	f.deliver.online[f.alice.ID.Hex()] = true
	read, err := f.svc.MarkRead(ctx, f.bob, message.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	require.Len(t, f.deliver.toUser, 1)
	assert.Equal(t, service.EventMessageReadConfirm, f.deliver.toUser[0].event)
	assert.Equal(t, service.ReadConfirmation{MessageID: message.ID.Hex(), ReadBy: f.bob.ID.Hex()}, f.deliver.toUser[0].payload)
}

func TestPreviewKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", service.Preview("short"))
	long := strings.Repeat("ç", 60)
	assert.Equal(t, strings.Repeat("ç", 50), service.Preview(long))
}

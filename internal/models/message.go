package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageSystem = "system"
)

type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
}

type Message struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Conversation string              `bson:"conversation" json:"conversation"`
	Sender       primitive.ObjectID  `bson:"sender" json:"sender"`
	Receiver     primitive.ObjectID  `bson:"receiver" json:"receiver"`
	Product      *primitive.ObjectID `bson:"product,omitempty" json:"product,omitempty"`
	Message      string              `bson:"message" json:"message"`
	Type         string              `bson:"type" json:"type"`
	Attachments  []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	IsRead       bool                `bson:"isRead" json:"isRead"`
	ReadAt       *time.Time          `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Conversation is one row of a user's inbox.
type Conversation struct {
	ID          string  `bson:"_id" json:"id"`
	LastMessage Message `bson:"lastMessage" json:"lastMessage"`
	UnreadCount int     `bson:"unreadCount" json:"unreadCount"`
}

// ConversationID is the thread key for a one-to-one pair: the two ids sorted
// lexicographically and joined with "-", so it does not depend on who writes first.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "-" + ids[1]
}

// ConversationParticipants splits a conversation id back into its two ids.
func ConversationParticipants(conversationID string) (string, string, bool) {
	first, second, ok := strings.Cut(conversationID, "-")
	if !ok || first == "" || second == "" {
		return "", "", false
	}
	return first, second, true
}

func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageSystem:
		return true
	}
	return false
}

// ConversationRoom is the realtime room name for a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

type sendMessageRequest struct {
	ReceiverID  string              `json:"receiverId" binding:"required"`
	ProductID   string              `json:"productId"`
	Message     string              `json:"message" binding:"required,max=1000"`
	Type        string              `json:"type" binding:"omitempty,oneof=text image system"`
	Attachments []models.Attachment `json:"attachments"`
}

func GetConversations(messages *service.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /messages/conversations"
		defer handlePanic(c, route)

		conversations, err := messages.Conversations(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, conversations)
	}
}

/*
GET /api/messages/conversation/:conversationId
- participants only
- oldest first within the page; unread messages to the caller become read
*/
func GetConversationMessages(messages *service.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /messages/conversation/:conversationId"
		defer handlePanic(c, route)

		result, err := messages.ConversationMessages(
			c.Request.Context(),
			actor(c),
			strings.TrimSpace(c.Param("conversationId")),
			parsePaginationParams(c),
		)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondPage(c, result)
	}
}

// SendMessage is the HTTP twin of the message:send socket event.
func SendMessage(messages *service.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /messages"
		defer handlePanic(c, route)

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		receiver, err := parseObjectID(req.ReceiverID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid receiver id")
			return
		}
		product, err := optionalObjectID(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		message, err := messages.Send(c.Request.Context(), actor(c), service.SendMessageInput{
			Receiver:    receiver,
			Product:     product,
			Message:     req.Message,
			Type:        req.Type,
			Attachments: req.Attachments,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, message)
	}
}

func MarkMessageRead(messages *service.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /messages/:id/read"
		defer handlePanic(c, route)

		id, err := paramID(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}
		message, err := messages.MarkRead(c.Request.Context(), actor(c), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, message)
	}
}

func GetUnreadCount(messages *service.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /messages/unread-count"
		defer handlePanic(c, route)

		count, err := messages.UnreadCount(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"count": count})
	}
}

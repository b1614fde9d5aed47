package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-app/internal/server/middleware"
	"chat-app/internal/service"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// GetUsers returns the sidebar roster: every user except the caller.
func (h *MessageHandler) GetUsers(c *gin.Context) {
	users, err := h.messages.UsersForSidebar(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetMessages returns the full conversation with one peer, oldest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	peerID := c.Param("id")
	msgs, err := h.messages.Conversation(c.Request.Context(), middleware.GetUserID(c), peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage persists a message to the peer in the path and pushes it to
// their live connection if they are online. Accepts multipart form data with
// a text field and/or an image file.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	receiverID := c.Param("id")
	text := c.PostForm("text")

	// The image is optional; only its absence alongside empty text is an error.
	image, err := c.FormFile("image")
	if err != nil {
		image = nil
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.GetUserID(c), receiverID, text, image)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "text or image is required"})
		case errors.Is(err, service.ErrUploadsDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

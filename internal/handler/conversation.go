package handler

import (
	"net/http"
	"strconv"

	"messenger/internal/service"
	"messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	conversationService service.ConversationService
	messageService      service.MessageService
	log                 logger.Logger
}

func NewConversationHandler(conversationService service.ConversationService, messageService service.MessageService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		messageService:      messageService,
		log:                 log,
	}
}

type CreateConversationRequest struct {
	Type         string      `json:"type" binding:"required"`
	Name         string      `json:"name"`
	Participants []uuid.UUID `json:"participants" binding:"required"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation data"})
		return
	}

	conversation, existing, err := h.conversationService.Create(c.Request.Context(), userID, service.CreateConversationInput{
		Type:         req.Type,
		Name:         req.Name,
		Participants: req.Participants,
	})
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	if existing {
		// Личная беседа между этими двумя уже есть - возвращаем её
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conversation.ID,
			"message":         "Conversation already exists",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversation_id": conversation.ID,
		"message":         "Conversation created successfully",
	})
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversations, err := h.conversationService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	conversation, err := h.conversationService.Get(c.Request.Context(), userID, conversationID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// GetMessages - постраничная история сообщений, от старых к новым
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messageService.History(c.Request.Context(), userID, conversationID, limit, offset)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(messages),
		},
	})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if err := h.conversationService.Delete(c.Request.Context(), userID, conversationID); err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

func (h *ConversationHandler) Leave(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if err := h.conversationService.Leave(c.Request.Context(), userID, conversationID); err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left group successfully"})
}

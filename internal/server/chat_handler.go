package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatflow/internal/repository"
)

// ChatHandler atiende los endpoints compañeros del protocolo: alta de
// chat, snapshot, edición de mensajes y feedback.
type ChatHandler struct {
	logger *zap.Logger
	repo   repository.ChatRepository
}

func NewChatHandler(logger *zap.Logger, repo repository.ChatRepository) *ChatHandler {
	return &ChatHandler{logger: logger, repo: repo}
}

type snapshotMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateChat maneja POST /chats.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		AgentID string `json:"agent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	claims, _ := GetAuthClaims(c)
	chat := repository.ChatRecord{
		ID:        uuid.NewString(),
		UserID:    claims.UserID,
		Title:     req.Title,
		AgentID:   req.AgentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateChat(c.Request.Context(), chat); err != nil {
		h.logger.Error("create chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"chat": gin.H{"id": chat.ID, "title": chat.Title}})
}

// GetChat maneja GET /chats/:id y devuelve el snapshot autoritativo.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID := c.Param("id")
	chat, err := h.repo.GetChat(c.Request.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		h.logger.Error("get chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chat"})
		return
	}

	records, err := h.repo.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load chat"})
		return
	}

	messages := make([]snapshotMessage, 0, len(records))
	for _, m := range records {
		messages = append(messages, snapshotMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			IsEdited:  m.IsEdited,
			CreatedAt: m.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"chat": gin.H{
		"id":       chat.ID,
		"title":    chat.Title,
		"messages": messages,
	}})
}

// EditMessage maneja PATCH /chats/:id/messages/:mid.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	chatID := c.Param("id")
	messageID := c.Param("mid")

	msg, err := h.repo.GetMessage(c.Request.Context(), chatID, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.logger.Error("get message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}
	if msg.Role != "user" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "only user messages can be edited"})
		return
	}

	updated, err := h.repo.UpdateMessageContent(c.Request.Context(), chatID, messageID, req.Content)
	if err != nil {
		h.logger.Error("update message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": gin.H{
		"message_id": updated.ID,
		"content":    updated.Content,
		"is_edited":  updated.IsEdited,
	}})
}

// SetFeedback maneja POST /chats/:id/messages/:mid/feedback.
func (h *ChatHandler) SetFeedback(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Feedback != "" && req.Feedback != "up" && req.Feedback != "down" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid feedback value"})
		return
	}

	chatID := c.Param("id")
	messageID := c.Param("mid")
	err := h.repo.SetFeedback(c.Request.Context(), chatID, messageID, req.Feedback)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.logger.Error("set feedback failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feedback": req.Feedback})
}

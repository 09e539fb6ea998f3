package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatflow/internal/repository"
)

// streamChunkRunes es el tamaño de los fragmentos content emitidos.
const streamChunkRunes = 24

// StreamHandler atiende POST /chat/stream: persiste el turno del
// usuario, genera la respuesta y la emite como frames SSE según el
// protocolo: start, content*, avisos opcionales y done o error.
type StreamHandler struct {
	logger    *zap.Logger
	repo      repository.ChatRepository
	responder Responder
	limiter   StreamRateLimiter
}

func NewStreamHandler(logger *zap.Logger, repo repository.ChatRepository, responder Responder, limiter StreamRateLimiter) *StreamHandler {
	return &StreamHandler{
		logger:    logger,
		repo:      repo,
		responder: responder,
		limiter:   limiter,
	}
}

// Stream maneja POST /chat/stream.
func (h *StreamHandler) Stream(c *gin.Context) {
	var req struct {
		ChatID         string `json:"chat_id" binding:"required"`
		Content        string `json:"content" binding:"required"`
		IsRegeneration bool   `json:"is_regeneration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	key := c.ClientIP()
	if claims, ok := GetAuthClaims(c); ok {
		key = claims.UserID
	}
	if h.limiter != nil && !h.limiter.Allow(key) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many streams"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repo.GetChat(ctx, req.ChatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.logger.Error("get chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open stream"})
		return
	}

	userMsgID, err := h.resolveUserMessage(c, req.ChatID, req.Content, req.IsRegeneration)
	if err != nil {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	h.emit(c, map[string]any{"type": "start", "user_message_id": userMsgID})

	history, err := h.repo.ListMessages(ctx, req.ChatID)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		h.emit(c, map[string]any{"type": "error", "error": "could not load conversation"})
		return
	}

	reply, toolCalls, err := h.responder.Respond(ctx, history)
	if err != nil {
		h.logger.Warn("responder failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		h.emit(c, map[string]any{"type": "error", "error": "could not generate a reply"})
		return
	}

	if len(toolCalls) > 0 {
		h.emit(c, map[string]any{"type": "tool_check"})
	}

	runes := []rune(reply)
	for start := 0; start < len(runes); start += streamChunkRunes {
		if ctx.Err() != nil {
			return
		}
		end := start + streamChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		h.emit(c, map[string]any{"type": "content", "content": string(runes[start:end])})
	}

	assistantMsg := repository.MessageRecord{
		ID:        uuid.NewString(),
		ChatID:    req.ChatID,
		Role:      "assistant",
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateMessage(ctx, assistantMsg); err != nil {
		h.logger.Error("persist assistant message failed", zap.Error(err))
		h.emit(c, map[string]any{"type": "error", "error": "could not persist the reply"})
		return
	}

	done := map[string]any{"type": "done", "message_id": assistantMsg.ID}
	if len(toolCalls) > 0 {
		done["tool_calls"] = toolCalls
	}
	h.emit(c, done)
}

// resolveUserMessage persiste el mensaje de usuario del turno, o lo
// reutiliza si es una regeneración. Escribe la respuesta de error por
// su cuenta cuando falla.
func (h *StreamHandler) resolveUserMessage(c *gin.Context, chatID, content string, regen bool) (string, error) {
	ctx := c.Request.Context()
	if regen {
		history, err := h.repo.ListMessages(ctx, chatID)
		if err != nil {
			h.logger.Error("list messages failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open stream"})
			return "", err
		}
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == "user" {
				return history[i].ID, nil
			}
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "nothing to regenerate"})
		return "", repository.ErrNotFound
	}

	msg := repository.MessageRecord{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateMessage(ctx, msg); err != nil {
		h.logger.Error("persist user message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open stream"})
		return "", err
	}
	return msg.ID, nil
}

func (h *StreamHandler) emit(c *gin.Context, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal frame failed", zap.Error(err))
		return
	}
	if _, err := c.Writer.WriteString("data: " + string(raw) + "\n\n"); err != nil {
		return
	}
	c.Writer.Flush()
}

package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("repository: not found")

// ChatRecord es un chat tal como lo persiste el backend.
type ChatRecord struct {
	ID        string
	UserID    string
	Title     string
	AgentID   string
	CreatedAt time.Time
}

// MessageRecord es un mensaje persistido. ID es la identidad de
// servidor que el cliente reconcilia contra sus ids locales.
type MessageRecord struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	Feedback  string
	IsEdited  bool
	CreatedAt time.Time
}

// ChatRepository persiste chats y mensajes del backend de referencia.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat ChatRecord) error
	GetChat(ctx context.Context, chatID string) (ChatRecord, error)
	CreateMessage(ctx context.Context, msg MessageRecord) error
	ListMessages(ctx context.Context, chatID string) ([]MessageRecord, error)
	GetMessage(ctx context.Context, chatID, messageID string) (MessageRecord, error)
	UpdateMessageContent(ctx context.Context, chatID, messageID, content string) (MessageRecord, error)
	SetFeedback(ctx context.Context, chatID, messageID, feedback string) error
}

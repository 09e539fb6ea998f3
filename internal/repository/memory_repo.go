package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryChatRepository guarda chats y mensajes en memoria. Es el
// repositorio por defecto del backend de referencia cuando no hay base
// de datos configurada, y el que usan los tests.
type MemoryChatRepository struct {
	mu       sync.Mutex
	chats    map[string]ChatRecord
	messages map[string][]MessageRecord
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		chats:    make(map[string]ChatRecord),
		messages: make(map[string][]MessageRecord),
	}
}

func (r *MemoryChatRepository) CreateChat(_ context.Context, chat ChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *MemoryChatRepository) GetChat(_ context.Context, chatID string) (ChatRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[chatID]
	if !ok {
		return ChatRecord{}, ErrNotFound
	}
	return chat, nil
}

func (r *MemoryChatRepository) CreateMessage(_ context.Context, msg MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[msg.ChatID]; !ok {
		return ErrNotFound
	}
	r.messages[msg.ChatID] = append(r.messages[msg.ChatID], msg)
	return nil
}

func (r *MemoryChatRepository) ListMessages(_ context.Context, chatID string) ([]MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := append([]MessageRecord(nil), r.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *MemoryChatRepository) GetMessage(_ context.Context, chatID, messageID string) (MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages[chatID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return MessageRecord{}, ErrNotFound
}

func (r *MemoryChatRepository) UpdateMessageContent(_ context.Context, chatID, messageID, content string) (MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			msgs[i].IsEdited = true
			return msgs[i], nil
		}
	}
	return MessageRecord{}, ErrNotFound
}

func (r *MemoryChatRepository) SetFeedback(_ context.Context, chatID, messageID, feedback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Feedback = feedback
			return nil
		}
	}
	return ErrNotFound
}

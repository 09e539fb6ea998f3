package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgChatRepository implementa ChatRepository sobre Postgres.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) CreateChat(ctx context.Context, chat ChatRecord) error {
	const query = `
		INSERT INTO chats (id, user_id, title, agent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	var agentID interface{}
	if chat.AgentID != "" {
		agentID = chat.AgentID
	}

	_, err := r.pool.Exec(ctx, query,
		chat.ID,
		chat.UserID,
		chat.Title,
		agentID,
		chat.CreatedAt,
	)
	return err
}

func (r *PgChatRepository) GetChat(ctx context.Context, chatID string) (ChatRecord, error) {
	const query = `
		SELECT id, user_id, title, COALESCE(agent_id, ''), created_at
		FROM chats
		WHERE id = $1
	`

	var chat ChatRecord
	err := r.pool.QueryRow(ctx, query, chatID).Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.AgentID,
		&chat.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ChatRecord{}, ErrNotFound
	}
	if err != nil {
		return ChatRecord{}, err
	}
	return chat, nil
}

func (r *PgChatRepository) CreateMessage(ctx context.Context, msg MessageRecord) error {
	const query = `
		INSERT INTO messages (id, chat_id, role, content, feedback, is_edited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var feedback interface{}
	if msg.Feedback != "" {
		feedback = msg.Feedback
	}

	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.Content,
		feedback,
		msg.IsEdited,
		msg.CreatedAt,
	)
	return err
}

func (r *PgChatRepository) ListMessages(ctx context.Context, chatID string) ([]MessageRecord, error) {
	const query = `
		SELECT id, chat_id, role, content, COALESCE(feedback, ''), is_edited, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		var msg MessageRecord
		err = rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Role,
			&msg.Content,
			&msg.Feedback,
			&msg.IsEdited,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PgChatRepository) GetMessage(ctx context.Context, chatID, messageID string) (MessageRecord, error) {
	const query = `
		SELECT id, chat_id, role, content, COALESCE(feedback, ''), is_edited, created_at
		FROM messages
		WHERE chat_id = $1 AND id = $2
	`

	var msg MessageRecord
	err := r.pool.QueryRow(ctx, query, chatID, messageID).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.Role,
		&msg.Content,
		&msg.Feedback,
		&msg.IsEdited,
		&msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return MessageRecord{}, ErrNotFound
	}
	if err != nil {
		return MessageRecord{}, err
	}
	return msg, nil
}

func (r *PgChatRepository) UpdateMessageContent(ctx context.Context, chatID, messageID, content string) (MessageRecord, error) {
	const query = `
		UPDATE messages
		SET content = $3, is_edited = TRUE
		WHERE chat_id = $1 AND id = $2
		RETURNING id, chat_id, role, content, COALESCE(feedback, ''), is_edited, created_at
	`

	var msg MessageRecord
	err := r.pool.QueryRow(ctx, query, chatID, messageID, content).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.Role,
		&msg.Content,
		&msg.Feedback,
		&msg.IsEdited,
		&msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return MessageRecord{}, ErrNotFound
	}
	if err != nil {
		return MessageRecord{}, err
	}
	return msg, nil
}

func (r *PgChatRepository) SetFeedback(ctx context.Context, chatID, messageID, feedback string) error {
	const query = `
		UPDATE messages
		SET feedback = NULLIF($3, '')
		WHERE chat_id = $1 AND id = $2
	`

	tag, err := r.pool.Exec(ctx, query, chatID, messageID, feedback)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

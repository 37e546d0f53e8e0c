package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/models"
)

// ConversationRepository handles the durable conversation log.
// Messages are append-only; a conversation is only ever appended to or
// deleted wholesale.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create starts a new conversation.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (title, model_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, conv.Title, conv.ModelID).
		Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// List returns all conversations with their model's display name,
// newest first.
func (r *ConversationRepository) List(ctx context.Context) ([]models.Conversation, error) {
	query := `
		SELECT c.id, c.title, COALESCE(c.model_id, 0) AS model_id, c.created_at,
		       COALESCE(m.display_name, '') AS model_name
		FROM conversations c
		LEFT JOIN model_configs m ON m.id = c.model_id
		ORDER BY c.created_at DESC
	`

	conversations := make([]models.Conversation, 0)
	if err := r.db.SelectContext(ctx, &conversations, query); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return conversations, nil
}

// Delete removes a conversation wholesale (messages cascade).
func (r *ConversationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendMessage appends one message to a conversation.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, role, content, raw_content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.RawContent,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	return nil
}

// Messages returns a conversation's messages in creation order.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, raw_content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	messages := make([]models.Message, 0)
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return messages, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/models"
)

// TokenUsageRepository appends to the token usage audit trail.
type TokenUsageRepository struct {
	db *sqlx.DB
}

// NewTokenUsageRepository creates a new token usage repository.
func NewTokenUsageRepository(db *sqlx.DB) *TokenUsageRepository {
	return &TokenUsageRepository{db: db}
}

// Log appends one usage record. The trail is append-only; rows are
// never updated.
func (r *TokenUsageRepository) Log(ctx context.Context, rec *models.TokenUsageRecord) error {
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens
	}

	query := `
		INSERT INTO token_usage (model_id, prompt_tokens, completion_tokens, total_tokens, task_label)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, logged_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rec.ModelID,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.TaskLabel,
	).Scan(&rec.ID, &rec.LoggedAt)
	if err != nil {
		return fmt.Errorf("log token usage: %w", err)
	}

	return nil
}

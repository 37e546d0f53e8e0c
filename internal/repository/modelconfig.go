package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/models"
)

// ModelConfigRepository handles database operations for model backends.
type ModelConfigRepository struct {
	db *sqlx.DB
}

// NewModelConfigRepository creates a new model config repository.
func NewModelConfigRepository(db *sqlx.DB) *ModelConfigRepository {
	return &ModelConfigRepository{db: db}
}

// Create inserts a new model backend configuration.
func (r *ModelConfigRepository) Create(ctx context.Context, m *models.ModelConfig) error {
	query := `
		INSERT INTO model_configs (display_name, endpoint, credential, model_identifier, system_prompt, active_flag)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		m.DisplayName,
		m.Endpoint,
		m.Credential,
		m.ModelIdentifier,
		m.SystemPrompt,
		m.ActiveFlag,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create model config: %w", err)
	}

	return nil
}

// GetByID retrieves a model backend by id.
func (r *ModelConfigRepository) GetByID(ctx context.Context, id int64) (*models.ModelConfig, error) {
	var m models.ModelConfig
	query := `
		SELECT id, display_name, endpoint, credential, model_identifier,
		       system_prompt, active_flag, created_at, 0 AS used_tokens
		FROM model_configs
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &m, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get model config: %w", err)
	}

	return &m, nil
}

// GetActive returns the model backend for the given id, or the first
// active one when id is zero.
func (r *ModelConfigRepository) GetActive(ctx context.Context, id int64) (*models.ModelConfig, error) {
	if id != 0 {
		return r.GetByID(ctx, id)
	}

	var m models.ModelConfig
	query := `
		SELECT id, display_name, endpoint, credential, model_identifier,
		       system_prompt, active_flag, created_at, 0 AS used_tokens
		FROM model_configs
		WHERE active_flag
		ORDER BY id
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &m, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active model config: %w", err)
	}

	return &m, nil
}

// List returns all model backends with their accumulated token usage,
// newest first.
func (r *ModelConfigRepository) List(ctx context.Context) ([]models.ModelConfig, error) {
	query := `
		SELECT m.id, m.display_name, m.endpoint, m.credential, m.model_identifier,
		       m.system_prompt, m.active_flag, m.created_at,
		       COALESCE(SUM(u.total_tokens), 0) AS used_tokens
		FROM model_configs m
		LEFT JOIN token_usage u ON u.model_id = m.id
		GROUP BY m.id
		ORDER BY m.created_at DESC
	`

	configs := make([]models.ModelConfig, 0)
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list model configs: %w", err)
	}

	return configs, nil
}

// Update edits a model backend configuration. An empty credential keeps
// the stored one, so clients never need to echo the secret back.
func (r *ModelConfigRepository) Update(ctx context.Context, m *models.ModelConfig) error {
	query := `
		UPDATE model_configs
		SET display_name = $2, endpoint = $3,
		    credential = CASE WHEN $4 = '' THEN credential ELSE $4 END,
		    model_identifier = $5, system_prompt = $6, active_flag = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.DisplayName,
		m.Endpoint,
		m.Credential,
		m.ModelIdentifier,
		m.SystemPrompt,
		m.ActiveFlag,
	)
	if err != nil {
		return fmt.Errorf("update model config: %w", err)
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

// Delete removes a model backend (its usage rows cascade).
func (r *ModelConfigRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM model_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete model config: %w", err)
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

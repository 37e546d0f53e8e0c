package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

var modelColumns = []string{
	"id", "display_name", "endpoint", "credential", "model_identifier",
	"system_prompt", "active_flag", "created_at", "used_tokens",
}

func TestModelConfigGetActivePrefersGivenID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewModelConfigRepository(db)

	mock.ExpectQuery("SELECT id, display_name").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(modelColumns).
			AddRow(int64(4), "m", "https://api", "sk-x", "gpt-x", "", true, time.Now(), int64(0)))

	m, err := repo.GetActive(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.ID)
}

func TestModelConfigGetActiveFallsBackToFirstActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewModelConfigRepository(db)

	mock.ExpectQuery("SELECT id, display_name").
		WillReturnRows(sqlmock.NewRows(modelColumns).
			AddRow(int64(1), "default", "https://api", "sk-x", "gpt-x", "", true, time.Now(), int64(0)))

	m, err := repo.GetActive(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "default", m.DisplayName)
}

func TestModelConfigGetActiveNoneConfigured(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewModelConfigRepository(db)

	mock.ExpectQuery("SELECT id, display_name").
		WillReturnRows(sqlmock.NewRows(modelColumns))

	_, err := repo.GetActive(context.Background(), 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestModelConfigUpdateKeepsCredentialWhenEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := repository.NewModelConfigRepository(db)

	mock.ExpectExec("UPDATE model_configs").
		WithArgs(int64(4), "renamed", "https://api", "", "gpt-x", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.ModelConfig{
		ID:              4,
		DisplayName:     "renamed",
		Endpoint:        "https://api",
		Credential:      "", // keep stored credential
		ModelIdentifier: "gpt-x",
		ActiveFlag:      true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaskedCredential(t *testing.T) {
	m := &models.ModelConfig{Credential: "sk-abcdef123456"}
	assert.Equal(t, "****3456", m.MaskedCredential())

	short := &models.ModelConfig{Credential: "abc"}
	assert.Equal(t, "***", short.MaskedCredential())
}

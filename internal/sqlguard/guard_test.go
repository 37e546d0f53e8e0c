package sqlguard_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/sqlguard"
)

func newGuard(t *testing.T) (*sqlguard.Guard, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return sqlguard.New(db, logger.NewNop()), mock
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"plain select", "SELECT id, title FROM source_items", false},
		{"lowercase select", "select count(*) from deep_records", false},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t", false},
		{"explain", "EXPLAIN SELECT 1", false},
		{"show", "SHOW server_version", false},
		{"trailing semicolon", "SELECT 1;", false},
		{"leading comment", "-- peek\nSELECT 1", false},
		{"empty", "   ", true},
		{"comment only", "-- nothing\n/* still nothing */", true},
		{"insert", "INSERT INTO source_items (url) VALUES ('x')", true},
		{"update", "UPDATE source_items SET title = 'x'", true},
		{"delete", "DELETE FROM messages", true},
		{"drop", "DROP TABLE conversations", true},
		{"stacked statements", "SELECT 1; DELETE FROM messages", true},
		{"write inside cte", "WITH t AS (DELETE FROM messages RETURNING id) SELECT * FROM t", true},
		{"comment-hidden write", "/* SELECT */ TRUNCATE source_items", true},
		{"set", "SET search_path TO public", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlguard.Validate(tt.query)
			if tt.wantErr {
				require.ErrorIs(t, err, sqlguard.ErrQueryRejected)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	guard, mock := newGuard(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title FROM source_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), []byte("first")).
			AddRow(int64(2), []byte("second")))
	mock.ExpectRollback()

	result, err := guard.Execute(context.Background(), "SELECT id, title FROM source_items")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "first", result.Rows[0][1])
	assert.False(t, result.Truncated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTruncates(t *testing.T) {
	guard, mock := newGuard(t)

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < sqlguard.MaxRows+5; i++ {
		rows.AddRow(int64(i))
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT n FROM big").WillReturnRows(rows)
	mock.ExpectRollback()

	result, err := guard.Execute(context.Background(), "SELECT n FROM big")
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	require.Len(t, result.Rows, sqlguard.MaxRows+1)
	assert.Equal(t, sqlguard.TruncationNotice, result.Rows[sqlguard.MaxRows][0])
}

func TestExecuteRejectedBeforeDatabase(t *testing.T) {
	guard, mock := newGuard(t)

	_, err := guard.Execute(context.Background(), "DELETE FROM messages")
	require.ErrorIs(t, err, sqlguard.ErrQueryRejected)

	// No Begin expected: rejected SQL never touches the pool.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryError(t *testing.T) {
	guard, mock := newGuard(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT missing FROM nowhere").
		WillReturnError(fmt.Errorf(`relation "nowhere" does not exist`))
	mock.ExpectRollback()

	_, err := guard.Execute(context.Background(), "SELECT missing FROM nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

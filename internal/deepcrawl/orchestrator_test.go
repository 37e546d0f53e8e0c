package deepcrawl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/deepcrawl"
	"github.com/jonesrussell/webinsight/internal/fetcher"
	"github.com/jonesrussell/webinsight/internal/insight"
	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
	"github.com/jonesrussell/webinsight/internal/repository"
)

var modelColumns = []string{
	"id", "display_name", "endpoint", "credential", "model_identifier",
	"system_prompt", "active_flag", "created_at", "used_tokens",
}

var itemColumns = []string{
	"id", "title", "url", "description", "source_tag", "collected_at", "deep_status",
}

func newOrchestrator(t *testing.T) (*deepcrawl.Orchestrator, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	log := logger.NewNop()
	client := llm.NewClient(log)

	o := deepcrawl.NewOrchestrator(
		repository.NewSourceItemRepository(db),
		repository.NewDeepRecordRepository(db),
		repository.NewModelConfigRepository(db),
		repository.NewTokenUsageRepository(db),
		fetcher.New(&config.CrawlConfig{FetchTimeout: 5 * time.Second, UserAgent: "test"}, log),
		insight.NewExtractor(client, log),
		nil,
		log,
	)
	return o, mock
}

func modelRow(endpoint string) *sqlmock.Rows {
	return sqlmock.NewRows(modelColumns).
		AddRow(int64(5), "test model", endpoint, "sk-test", "test-model", "", true, time.Now(), int64(0))
}

func itemRow(id int64, title, url string) *sqlmock.Rows {
	return sqlmock.NewRows(itemColumns).
		AddRow(id, title, url, "desc", "baidu_search", time.Now(), int(models.DeepNotStarted))
}

func expectStatus(mock sqlmock.Sqlmock, id int64, status models.DeepStatus) {
	mock.ExpectExec("UPDATE source_items SET deep_status").
		WithArgs(status, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func drain(t *testing.T, ch <-chan deepcrawl.Event) []deepcrawl.Event {
	t.Helper()
	var got []deepcrawl.Event
	for ev := range ch {
		got = append(got, ev)
	}
	return got
}

func TestRunOneFailureDoesNotAbortTheRest(t *testing.T) {
	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html><body><p>A long enough article body about technology, repeated to pass the readability threshold for direct extraction of visible page text content.</p></body></html>"))
	}))
	defer pageServer.Close()

	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":` +
			`"{\"title\":\"Extracted Title\",\"summary\":\"Short summary.\",\"key_points\":[\"a\",\"b\",\"c\"],\"category\":\"technology\",\"sentiment\":\"neutral\"}"}}],` +
			`"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer modelServer.Close()

	o, mock := newOrchestrator(t)

	mock.ExpectQuery("SELECT id, display_name").WithArgs(int64(5)).
		WillReturnRows(modelRow(modelServer.URL))

	// Item 1: full pipeline succeeds.
	mock.ExpectQuery("SELECT id, title, url").WithArgs(int64(1)).
		WillReturnRows(itemRow(1, "good item", pageServer.URL+"/good"))
	expectStatus(mock, 1, models.DeepInProgress)
	mock.ExpectQuery("INSERT INTO token_usage").
		WillReturnRows(sqlmock.NewRows([]string{"id", "logged_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectQuery("INSERT INTO deep_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "collected_at"}).AddRow(int64(7), time.Now()))
	expectStatus(mock, 1, models.DeepSucceeded)

	// Item 2: fetch fails, item is marked failed, run continues.
	mock.ExpectQuery("SELECT id, title, url").WithArgs(int64(2)).
		WillReturnRows(itemRow(2, "bad item", pageServer.URL+"/bad"))
	expectStatus(mock, 2, models.DeepInProgress)
	expectStatus(mock, 2, models.DeepFailed)

	got := drain(t, o.Run(context.Background(), []int64{1, 2}, 5))

	require.Len(t, got, 4)
	assert.Equal(t, deepcrawl.EventProcessing, got[0].Type)
	assert.Equal(t, deepcrawl.EventProcessing, got[1].Type)
	assert.Equal(t, deepcrawl.EventError, got[2].Type)
	assert.Equal(t, deepcrawl.EventCompleted, got[3].Type)

	processing, ok := got[0].Data.(deepcrawl.ProcessingData)
	require.True(t, ok)
	assert.Equal(t, 1, processing.Current)
	assert.Equal(t, 2, processing.Total)
	assert.Equal(t, 50, processing.Progress)
	assert.Equal(t, "good item", processing.Title)

	completed, ok := got[3].Data.(deepcrawl.CompletedData)
	require.True(t, ok)
	assert.Equal(t, 1, completed.Success)
	assert.Equal(t, 1, completed.Fail)
	assert.Equal(t, 2, completed.Total)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsUnknownIDs(t *testing.T) {
	o, mock := newOrchestrator(t)

	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer modelServer.Close()

	mock.ExpectQuery("SELECT id, display_name").WithArgs(int64(3)).
		WillReturnRows(modelRow(modelServer.URL))
	mock.ExpectQuery("SELECT id, title, url").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	got := drain(t, o.Run(context.Background(), []int64{99}, 3))

	require.Len(t, got, 1)
	assert.Equal(t, deepcrawl.EventCompleted, got[0].Type)

	completed := got[0].Data.(deepcrawl.CompletedData)
	assert.Equal(t, 0, completed.Success)
	assert.Equal(t, 0, completed.Fail)
	assert.Equal(t, 1, completed.Total)
}

func TestRunWithoutModelBackend(t *testing.T) {
	o, mock := newOrchestrator(t)

	// No configured backend at all.
	mock.ExpectQuery("SELECT id, display_name").
		WillReturnRows(sqlmock.NewRows(modelColumns))

	got := drain(t, o.Run(context.Background(), []int64{1, 2, 3}, 0))

	require.Len(t, got, 2)
	assert.Equal(t, deepcrawl.EventError, got[0].Type)
	assert.Equal(t, deepcrawl.EventCompleted, got[1].Type)
}

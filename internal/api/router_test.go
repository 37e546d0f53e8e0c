package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/analysis"
	"github.com/jonesrussell/webinsight/internal/api"
	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/deepcrawl"
	"github.com/jonesrussell/webinsight/internal/fetcher"
	"github.com/jonesrussell/webinsight/internal/handlers"
	"github.com/jonesrussell/webinsight/internal/ingest"
	"github.com/jonesrussell/webinsight/internal/insight"
	"github.com/jonesrussell/webinsight/internal/llm"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/repository"
	"github.com/jonesrussell/webinsight/internal/scraper"
	"github.com/jonesrussell/webinsight/internal/sqlguard"
)

func newTestRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	log := logger.NewNop()
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Crawl.FetchTimeout = 5 * time.Second
	cfg.Crawl.UserAgent = "test"

	itemRepo := repository.NewSourceItemRepository(db)
	recordRepo := repository.NewDeepRecordRepository(db)
	modelRepo := repository.NewModelConfigRepository(db)
	usageRepo := repository.NewTokenUsageRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	convRepo := repository.NewConversationRepository(db)

	client := llm.NewClient(log)
	orchestrator := deepcrawl.NewOrchestrator(
		itemRepo, recordRepo, modelRepo, usageRepo,
		fetcher.New(&cfg.Crawl, log),
		insight.NewExtractor(client, log),
		nil, log,
	)
	engine := analysis.NewEngine(convRepo, modelRepo, usageRepo, sqlguard.New(db, log), client, log)

	router := api.NewRouter(cfg, api.Handlers{
		Items:       handlers.NewItemHandler(itemRepo, ingest.NewService(itemRepo, statsRepo, nil, log), orchestrator, log),
		DeepRecords: handlers.NewDeepRecordHandler(recordRepo, log),
		Models:      handlers.NewModelConfigHandler(modelRepo, usageRepo, client, log),
		Analysis:    handlers.NewAnalysisHandler(engine, convRepo, log),
		Scrape:      handlers.NewScrapeHandler(scraper.NewRegistry(&cfg.Crawl, log), log),
		Stats:       handlers.NewStatsHandler(statsRepo, log),
		Screen:      handlers.NewScreenHandler(repository.NewAnalyticsRepository(db), log),
	}, log)

	return router, mock
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSaveItems(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("INSERT INTO source_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_insert"}).AddRow(int64(1), true))
	mock.ExpectExec("INSERT INTO stat_counters").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `[{"title":"t","url":"https://a.example.com","description":"d","source":"baidu_search"}]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/save", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"added":1,"updated":0}`, w.Body.String())
}

func TestListItems(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT s.id, s.title").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "url", "description", "source_tag",
			"collected_at", "deep_status", "deep_record_id",
		}).AddRow(int64(1), "a", "https://a", "d", "baidu_search", time.Now(), 0, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/items?page=1&per_page=20", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestDeleteItemNotFound(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectExec("DELETE FROM source_items").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/items/99", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeepCrawlStreamRequiresIDs(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/items/deep-crawl/stream", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeepCrawlStreamEndsWithSentinel(t *testing.T) {
	router, mock := newTestRouter(t)

	// No model backend configured: the stream carries an error event,
	// a completed event, and the sentinel.
	mock.ExpectQuery("SELECT id, display_name").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "display_name", "endpoint", "credential", "model_identifier",
			"system_prompt", "active_flag", "created_at", "used_tokens",
		}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/items/deep-crawl/stream?ids=1,2", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `"type":"error"`)
	assert.Contains(t, body, `"type":"completed"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestListModelsMasksCredential(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT m.id, m.display_name").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "display_name", "endpoint", "credential", "model_identifier",
			"system_prompt", "active_flag", "created_at", "used_tokens",
		}).AddRow(int64(1), "m", "https://api", "sk-secret-12345678", "gpt-x", "", true, time.Now(), int64(1234)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "sk-secret-12345678")
	assert.Contains(t, body, `"credential_masked":"****5678"`)
	assert.Contains(t, body, `"used_tokens":1234`)
}

func TestListConversations(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT c.id, c.title").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "model_id", "created_at", "model_name"}).
			AddRow(int64(1), "sales", int64(2), time.Now(), "gpt"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/conversations", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestStats(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT id, metric_name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "metric_name", "metric_value", "updated_at"}).
			AddRow(int64(1), "total_items", int64(57), time.Now()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"metric_value":57`)
}

func TestScreenOverview(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"today", "week", "month", "total", "deep"}).
			AddRow(2, 9, 30, 100, 12))
	mock.ExpectQuery("SELECT source_tag, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"source_tag", "count"}).
			AddRow("baidu_search", 70))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screen/overview", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":100`)
	assert.Contains(t, w.Body.String(), `"sources":[{"source":"baidu_search","count":70}]`)
}

func TestScreenTrend(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT to_char").
		WillReturnRows(sqlmock.NewRows([]string{"date", "count"}).
			AddRow("2026-08-28", 4))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screen/trend", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"date":"2026-08-28","count":4}]`, w.Body.String())
}

func TestScreenKeywords(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT title").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).
			AddRow("golang news").
			AddRow("golang news"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screen/keywords", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestScreenDeepRank(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT s.title, s.source_tag").
		WillReturnRows(sqlmock.NewRows([]string{"title", "source_tag", "summary", "collected_at"}).
			AddRow("a", "baidu_news", "s", time.Now()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screen/deep-rank", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"baidu_news"`)
}

func TestSearchStreamRejectsUnknownEngine(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/stream?engine=bing&keyword=x", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchStreamRequiresKeyword(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/stream", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

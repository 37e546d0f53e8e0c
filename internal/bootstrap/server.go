package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/analysis"
	"github.com/jonesrussell/webinsight/internal/api"
	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/deepcrawl"
	"github.com/jonesrussell/webinsight/internal/events"
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

const shutdownTimeout = 10 * time.Second

// SetupHTTPServer wires repositories, services, and handlers into the
// HTTP server. This is the composition root: every service handle is
// constructed once here and injected, never reached through globals.
func SetupHTTPServer(
	cfg *config.Config,
	db *sqlx.DB,
	publisher *events.Publisher,
	log logger.Logger,
) *http.Server {
	itemRepo := repository.NewSourceItemRepository(db)
	recordRepo := repository.NewDeepRecordRepository(db)
	modelRepo := repository.NewModelConfigRepository(db)
	usageRepo := repository.NewTokenUsageRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	convRepo := repository.NewConversationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	client := llm.NewClient(log)
	pageFetcher := fetcher.New(&cfg.Crawl, log)
	extractor := insight.NewExtractor(client, log)
	guard := sqlguard.New(db, log)
	registry := scraper.NewRegistry(&cfg.Crawl, log)

	ingester := ingest.NewService(itemRepo, statsRepo, publisher, log)
	orchestrator := deepcrawl.NewOrchestrator(
		itemRepo, recordRepo, modelRepo, usageRepo,
		pageFetcher, extractor, publisher, log,
	)
	engine := analysis.NewEngine(convRepo, modelRepo, usageRepo, guard, client, log)

	router := api.NewRouter(cfg, api.Handlers{
		Items:       handlers.NewItemHandler(itemRepo, ingester, orchestrator, log),
		DeepRecords: handlers.NewDeepRecordHandler(recordRepo, log),
		Models:      handlers.NewModelConfigHandler(modelRepo, usageRepo, client, log),
		Analysis:    handlers.NewAnalysisHandler(engine, convRepo, log),
		Scrape:      handlers.NewScrapeHandler(registry, log),
		Stats:       handlers.NewStatsHandler(statsRepo, log),
		Screen:      handlers.NewScreenHandler(analyticsRepo, log),
	}, log)

	return &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays unset: SSE streams are long-lived.
	}
}

// runServer runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
func runServer(server *http.Server, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

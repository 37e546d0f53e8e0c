// Package fetcher retrieves single pages and reduces them to bounded
// plain text suitable for model prompts.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/logger"
)

const (
	// maxResponseBodyBytes caps how much of a page body we read.
	maxResponseBodyBytes = 10 * 1024 * 1024

	// maxTextRunes bounds the extracted text handed to the model.
	maxTextRunes = 4000
)

// Fetcher downloads pages over HTTP with a browser-like identity.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    logger.Logger
}

// New creates a fetcher from the crawl configuration.
func New(cfg *config.CrawlConfig, log logger.Logger) *Fetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		logger:    log,
	}
}

// FetchText downloads pageURL and returns its readable text, bounded to
// maxTextRunes runes.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return "", fmt.Errorf("invalid page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	text, err := ExtractText(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", pageURL, err)
	}

	return truncateRunes(text, maxTextRunes), nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

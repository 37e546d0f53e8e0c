// Package scraper collects search engine results pages and normalizes
// them into search results for ingestion.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
)

// Source tags stamped onto results, also stored with ingested items.
const (
	SourceBaiduWeb  = "baidu_search"
	SourceBaiduNews = "baidu_news"
	SourceSo360     = "360_search"
)

const (
	searchTimeout = 10 * time.Second

	// redirectTimeout bounds the HEAD request used to resolve a result
	// engine's redirect wrapper.
	redirectTimeout = 5 * time.Second

	// pageDelay spaces out paginated requests against the same engine.
	pageDelay = 800 * time.Millisecond

	timeLayout = "2006-01-02 15:04:05"
)

// Scraper produces search results for a keyword, invoking emit for each
// result as it is parsed. Returning an error from emit stops the search.
type Scraper interface {
	Name() string
	Search(ctx context.Context, keyword string, limit int, emit func(models.SearchResult) error) error
}

// Registry maps engine names to scrapers.
type Registry struct {
	scrapers map[string]Scraper
}

// NewRegistry builds the default scraper set.
func NewRegistry(cfg *config.CrawlConfig, log logger.Logger) *Registry {
	c := newEngineClient(cfg, log)
	r := &Registry{scrapers: make(map[string]Scraper)}
	for _, s := range []Scraper{
		NewBaiduWeb(c),
		NewBaiduNews(c),
		NewSo360(c),
	} {
		r.scrapers[s.Name()] = s
	}
	return r
}

// Get returns the scraper for an engine name.
func (r *Registry) Get(name string) (Scraper, error) {
	s, ok := r.scrapers[name]
	if !ok {
		return nil, fmt.Errorf("unknown search engine %q", name)
	}
	return s, nil
}

// Names lists the registered engines.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	return names
}

// engineClient is the HTTP plumbing shared by all scrapers.
type engineClient struct {
	client    *http.Client
	headOnly  *http.Client
	userAgent string
	logger    logger.Logger
}

func newEngineClient(cfg *config.CrawlConfig, log logger.Logger) *engineClient {
	return &engineClient{
		client: &http.Client{Timeout: searchTimeout},
		headOnly: &http.Client{
			Timeout: redirectTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: cfg.UserAgent,
		logger:    log,
	}
}

// fetchDocument GETs baseURL with params and parses the response body.
func (c *engineClient) fetchDocument(ctx context.Context, baseURL string, params url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch results page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	return doc, nil
}

// resolveRedirect follows one level of an engine's redirect wrapper with
// a HEAD request. On any failure the wrapped URL is returned as-is.
func (c *engineClient) resolveRedirect(ctx context.Context, raw string) string {
	if !strings.HasPrefix(raw, "http") {
		return raw
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return raw
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.headOnly.Do(req)
	if err != nil {
		return raw
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		if loc := resp.Header.Get("Location"); loc != "" {
			return loc
		}
	}
	return raw
}

// imageURL reads an <img> src, preferring lazy-load attributes, and
// makes protocol-relative URLs absolute.
func imageURL(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	return src
}

// sleepPage waits between paginated requests, honoring cancellation.
func sleepPage(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pageDelay):
		return nil
	}
}

func nowStamp() string {
	return time.Now().Format(timeLayout)
}

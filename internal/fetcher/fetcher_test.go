package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/fetcher"
	"github.com/jonesrussell/webinsight/internal/logger"
)

const testUserAgent = "Mozilla/5.0 (Test) WebInsight/1.0"

func newTestFetcher(timeout time.Duration) *fetcher.Fetcher {
	return fetcher.New(&config.CrawlConfig{
		FetchTimeout: timeout,
		UserAgent:    testUserAgent,
	}, logger.NewNop())
}

func TestFetchTextStripsChrome(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head><title>t</title><style>body { color: red }</style></head>
<body>
<nav>Home | About</nav>
<script>alert("tracking")</script>
<article>
<h1>Go Generics Land</h1>
<p>Generics arrived in Go 1.18 and changed how library authors design container packages.
This article walks through the type parameter syntax and the constraints package in detail,
with worked examples that compile on any recent toolchain release.</p>
</article>
<footer>Copyright 2026</footer>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	text, err := newTestFetcher(15 * time.Second).FetchText(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Go Generics Land")
	assert.Contains(t, text, "type parameter syntax")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Copyright 2026")
}

func TestFetchTextBoundsLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>" + strings.Repeat("word ", 5000) + "</p></body></html>"))
	}))
	defer server.Close()

	text, err := newTestFetcher(15 * time.Second).FetchText(context.Background(), server.URL)
	require.NoError(t, err)

	assert.LessOrEqual(t, len([]rune(text)), 4000)
}

func TestFetchTextNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestFetcher(15 * time.Second).FetchText(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchTextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("<html><body>late</body></html>"))
	}))
	defer server.Close()

	_, err := newTestFetcher(20 * time.Millisecond).FetchText(context.Background(), server.URL)
	require.Error(t, err)
}

func TestFetchTextInvalidURL(t *testing.T) {
	_, err := newTestFetcher(time.Second).FetchText(context.Background(), "not a url")
	require.Error(t, err)
}

func TestExtractTextCollapsesWhitespace(t *testing.T) {
	html := []byte(`<html><body>
<p>first   line</p>

<p>   second line   </p>
<p>The quick brown fox jumps over the lazy dog near the riverbank every single morning before dawn breaks over the hills.</p>
</body></html>`)

	text, err := fetcher.ExtractText(html, "http://example.com/a")
	require.NoError(t, err)

	assert.Contains(t, text, "first line")
	assert.NotContains(t, text, "  ")
}

package fetcher

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// nonContentSelectors matches elements that never carry article text.
const nonContentSelectors = "script, style, noscript, nav, header, footer, iframe, form"

// minUsefulRunes is the threshold below which the DOM walk is assumed to
// have missed the article body and readability extraction is tried instead.
const minUsefulRunes = 80

// ExtractText reduces an HTML document to newline-joined plain text.
// It strips scripts, styles and page chrome, and falls back to
// readability extraction when the direct walk yields next to nothing.
func ExtractText(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContentSelectors).Remove()

	text := collapseText(doc.Find("body").Text())
	if len([]rune(text)) >= minUsefulRunes {
		return text, nil
	}

	// Sparse result. Let readability find the article node.
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		// Keep whatever the direct walk produced.
		return text, nil
	}
	if recovered := collapseText(article.TextContent); len([]rune(recovered)) > len([]rune(text)) {
		return recovered, nil
	}

	return text, nil
}

// collapseText normalizes extracted text: each line trimmed, blank lines
// dropped, lines joined with a single newline.
func collapseText(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}
	return strings.Join(kept, "\n")
}

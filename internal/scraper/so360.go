package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/webinsight/internal/models"
)

const soSearchURL = "https://www.so.com/s"

// So360 scrapes 360 (so.com) web search results.
type So360 struct {
	c       *engineClient
	baseURL string
}

// NewSo360 creates a 360 search scraper.
func NewSo360(c *engineClient) *So360 {
	return &So360{c: c, baseURL: soSearchURL}
}

func (s *So360) Name() string { return SourceSo360 }

// Search fetches one results page and emits up to limit entries.
func (s *So360) Search(ctx context.Context, keyword string, limit int, emit func(models.SearchResult) error) error {
	params := url.Values{}
	params.Set("q", keyword)

	doc, err := s.c.fetchDocument(ctx, s.baseURL, params)
	if err != nil {
		return err
	}

	count := 0
	var emitErr error
	doc.Find(".res-list").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if count >= limit {
			return false
		}

		titleTag := item.Find("h3 a").First()
		if titleTag.Length() == 0 {
			return true
		}
		link, _ := titleTag.Attr("href")

		desc := strings.TrimSpace(item.Find(".res-desc").First().Text())
		if desc == "" {
			desc = strings.TrimSpace(item.Find(".res-rich").First().Text())
		}
		if desc == "" {
			desc = "see result"
		}

		img := item.Find(".res-img img").First()
		if img.Length() == 0 {
			img = item.Find("img").First()
		}

		count++
		emitErr = emit(models.SearchResult{
			Rank:        count,
			Title:       strings.TrimSpace(titleTag.Text()),
			URL:         link,
			Image:       imageURL(img),
			Description: desc,
			SourceTag:   SourceSo360,
			Time:        nowStamp(),
		})
		return emitErr == nil
	})

	return emitErr
}

package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/webinsight/internal/models"
)

// BaiduNews scrapes Baidu news vertical results, newest first.
type BaiduNews struct {
	c       *engineClient
	baseURL string
}

// NewBaiduNews creates a Baidu news scraper.
func NewBaiduNews(c *engineClient) *BaiduNews {
	return &BaiduNews{c: c, baseURL: baiduSearchURL}
}

func (s *BaiduNews) Name() string { return SourceBaiduNews }

// Search fetches one news results page sorted by recency. The publisher
// name is folded into the description, matching the ingest format.
func (s *BaiduNews) Search(ctx context.Context, keyword string, limit int, emit func(models.SearchResult) error) error {
	params := url.Values{}
	params.Set("tn", "news")
	params.Set("wd", keyword)
	// rtt=1 sorts by time, rtt=4 by relevance.
	params.Set("rtt", "1")

	doc, err := s.c.fetchDocument(ctx, s.baseURL, params)
	if err != nil {
		return err
	}

	count := 0
	var emitErr error
	doc.Find(".result-op.news").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if count >= limit {
			return false
		}

		titleTag := item.Find("h3 a").First()
		if titleTag.Length() == 0 {
			return true
		}
		link, _ := titleTag.Attr("href")

		publisher := strings.TrimSpace(item.Find(".c-color-gray.c-font-normal").First().Text())
		if publisher == "" {
			publisher = "baidu news"
		}
		desc := strings.TrimSpace(item.Find(".c-font-normal.c-color-text").First().Text())
		if desc == "" {
			desc = "see article"
		}

		count++
		emitErr = emit(models.SearchResult{
			Rank:        count,
			Title:       strings.TrimSpace(titleTag.Text()),
			URL:         link,
			Image:       imageURL(item.Find(".c-img img").First()),
			Description: fmt.Sprintf("[%s] %s", publisher, desc),
			SourceTag:   SourceBaiduNews,
			Time:        nowStamp(),
		})
		return emitErr == nil
	})

	return emitErr
}

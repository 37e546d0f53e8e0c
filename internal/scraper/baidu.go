package scraper

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/webinsight/internal/logger"
	"github.com/jonesrussell/webinsight/internal/models"
)

const (
	baiduSearchURL = "https://www.baidu.com/s"

	// maxBaiduPages bounds pagination if the engine keeps returning
	// containers without useful entries.
	maxBaiduPages = 10
)

// BaiduWeb scrapes Baidu web search results.
type BaiduWeb struct {
	c       *engineClient
	baseURL string
}

// NewBaiduWeb creates a Baidu web search scraper.
func NewBaiduWeb(c *engineClient) *BaiduWeb {
	return &BaiduWeb{c: c, baseURL: baiduSearchURL}
}

func (s *BaiduWeb) Name() string { return SourceBaiduWeb }

// Search paginates through result pages until limit results have been
// emitted or a page yields no result containers. Result links are
// unwrapped from Baidu's redirector before being emitted.
func (s *BaiduWeb) Search(ctx context.Context, keyword string, limit int, emit func(models.SearchResult) error) error {
	count := 0
	for page := 1; page <= maxBaiduPages && count < limit; page++ {
		params := url.Values{}
		params.Set("wd", keyword)
		params.Set("pn", strconv.Itoa((page-1)*10))

		doc, err := s.c.fetchDocument(ctx, s.baseURL, params)
		if err != nil {
			return err
		}

		items := doc.Find("div.c-container")
		if items.Length() == 0 {
			break
		}

		var emitErr error
		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if count >= limit {
				return false
			}

			titleTag := item.Find("h3 a").First()
			if titleTag.Length() == 0 {
				return true
			}
			link, _ := titleTag.Attr("href")

			img := item.Find("img.c-img").First()
			if img.Length() == 0 {
				img = item.Find(".c-span6 img").First()
			}
			if img.Length() == 0 {
				img = item.Find(".c-span3 img").First()
			}

			desc := strings.TrimSpace(item.Find("div.c-abstract").First().Text())
			if desc == "" {
				desc = strings.TrimSpace(item.Find(".content-right_8Zs40").First().Text())
			}
			if desc == "" {
				desc = "no description"
			}

			count++
			emitErr = emit(models.SearchResult{
				Rank:        count,
				Title:       strings.TrimSpace(titleTag.Text()),
				URL:         s.c.resolveRedirect(ctx, link),
				Image:       imageURL(img),
				Description: desc,
				SourceTag:   SourceBaiduWeb,
				Time:        nowStamp(),
			})
			return emitErr == nil
		})
		if emitErr != nil {
			return emitErr
		}

		if count < limit {
			if err := sleepPage(ctx); err != nil {
				return err
			}
		}
	}

	s.c.logger.Debug("baidu web search finished",
		logger.String("keyword", keyword),
		logger.Int("results", count))
	return nil
}

// =============================================================================
// sources_rba.go - オーストラリア準備銀行（RBA）コレクタ
// =============================================================================
//
// 【含まれるエージェンシー】
//   1. rba     - ニュース一覧 + メディアリリースRSSフィードの補完
//   2. rba-rdp - 研究ディスカッションペーパー（年次ウィンドウ）
//
// RBAのニュース一覧はHTMLだが更新が遅れることがあるため、
// メディアリリースのRSSフィードからも取り込んで取りこぼしを防ぐ。
//
// =============================================================================
package scrape

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const rbaBaseURL = "https://www.rba.gov.au"

// rbaMediaRSS はメディアリリースのRSSフィード
const rbaMediaRSS = rbaBaseURL + "/rss/rss-cb-media-releases.xml"

// rdpMaxYears は研究ペーパーを遡る年数
const rdpMaxYears = 5

// rbaDetailSpec はRBA記事詳細ページの共通セレクタ
var rbaDetailSpec = detailSpec{
	Title:    []string{"h1.page-title", "h1"},
	DateAttr: []string{"time[datetime]"},
	Date:     []string{".publication-date", ".date"},
	Body:     []string{"div#content", "section", "main"},
}

// collectRBA fetches news articles from the RBA news index, supplemented by
// the media release RSS feed
func collectRBA(rt *Runtime) ([]Record, error) {
	var records []Record
	seen := map[string]bool{}

	// HTML一覧（article.item）
	doc, err := rt.Client.GetDocument(rbaBaseURL + "/news/")
	if err != nil {
		return nil, fmt.Errorf("RBA listing: %w", err)
	}
	doc.Find("article.item").Each(func(_ int, item *goquery.Selection) {
		href, _ := item.Find("a").First().Attr("href")
		full := resolveURL(rbaBaseURL, href)
		if full == "" || seen[full] || rt.IsKnown(full) {
			return
		}
		seen[full] = true

		rec, detail, err := scrapeDetail(rt, "rba", full, rbaDetailSpec)
		if err != nil {
			logger.Warn("RBA article failed", "url", full, "err", err)
			return
		}
		rbaFillExtras(&rec, detail)
		records = append(records, rec)
	})

	// RSSフィードによる補完（一覧に出ていないリリースを拾う）
	feed, err := rt.Client.GetFeed(rbaMediaRSS)
	if err != nil {
		logger.Warn("RBA media release feed failed", "err", err)
		return records, nil
	}
	for _, item := range feed.Items {
		if item.Link == "" || seen[item.Link] || rt.IsKnown(item.Link) {
			continue
		}
		seen[item.Link] = true

		rec, detail, err := scrapeDetail(rt, "rba", item.Link, rbaDetailSpec)
		if err != nil {
			logger.Warn("RBA feed article failed", "url", item.Link, "err", err)
			continue
		}
		if rec.Title == "" {
			rec.Title = item.Title
		}
		if rec.PublishedAt == "" && item.PublishedParsed != nil {
			rec.PublishedAt = item.PublishedParsed.Format("2006-01-02")
		}
		if rec.Summary == "" {
			rec.Summary = cleanHTMLTags(item.Description)
		}
		rbaFillExtras(&rec, detail)
		records = append(records, rec)
	}
	return records, nil
}

// rbaFillExtras pulls RBA-specific fields: publication name and data tables
func rbaFillExtras(rec *Record, doc *goquery.Document) {
	if name := doc.Find("span.publication-name").First().Text(); name != "" {
		rec.Theme = normalizeWhitespace(name)
	}
	// 統計記事はテーブルが本文の中心のため、テキスト化して本文に連結する
	var tables []string
	doc.Find("div#content table").Each(func(_ int, t *goquery.Selection) {
		if txt := tableText(t); txt != "" {
			tables = append(tables, txt)
		}
	})
	if len(tables) > 0 {
		rec.Body = strings.TrimSpace(rec.Body + "\n\n" + strings.Join(tables, "\n\n"))
	}
}

// collectRBARDP fetches research discussion papers from the last rdpMaxYears
// years of the RDP archive
func collectRBARDP(rt *Runtime) ([]Record, error) {
	currentYear := time.Now().Year()

	var records []Record
	seen := map[string]bool{}

	for year := currentYear; year > currentYear-rdpMaxYears; year-- {
		yearURL := fmt.Sprintf("%s/publications/rdp/%d/", rbaBaseURL, year)
		doc, err := rt.Client.GetDocument(yearURL)
		if err != nil {
			// 年初は当年のページが未作成のことがある
			logger.Debug("RDP year page unavailable", "year", year, "err", err)
			continue
		}

		var urls []string
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			full := resolveURL(yearURL, href)
			if full == "" || !strings.Contains(full, fmt.Sprintf("/rdp/%d/", year)) {
				return
			}
			if strings.HasSuffix(full, "/") || strings.Contains(full, "about.html") {
				return
			}
			urls = append(urls, full)
		})

		for _, u := range uniqStrings(urls) {
			if seen[u] || rt.IsKnown(u) {
				continue
			}
			seen[u] = true

			rec, detail, err := scrapeDetail(rt, "rba-rdp", u, detailSpec{
				Title:    []string{"h1.page-title", "h1"},
				DateAttr: []string{"time[datetime]"},
				Summary:  []string{"div.rss-rdp-description"},
				Body:     []string{"div#content", "section"},
			})
			if err != nil {
				logger.Warn("RDP paper failed", "url", u, "err", err)
				continue
			}
			if authors := detail.Find("p.author").First().Text(); authors != "" {
				rec.Theme = normalizeWhitespace(authors)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

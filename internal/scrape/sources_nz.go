// =============================================================================
// sources_nz.go - ニュージーランド機関コレクタ
// =============================================================================
//
// 【含まれるエージェンシー】
//   1. rbnz           - NZ準備銀行ニュース（公開レート上限292req/hを厳守）
//   2. treasury-nz    - NZ財務省ニュース
//   3. nz-legislation - NZ法令データベース最新分（要ブラウザ）
//
// RBNZのディレイはregistry.goでエージェンシー定義に設定済み
// （3600/292秒 ≒ 12.3秒）。承認済みUser-Agentも同様。
//
// =============================================================================
package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ---------------------------------------------------------------------------
// RBNZ
// ---------------------------------------------------------------------------

const rbnzBaseURL = "https://www.rbnz.govt.nz"

// collectRBNZ fetches news articles from the RBNZ news listing
func collectRBNZ(rt *Runtime) ([]Record, error) {
	doc, err := rt.Client.GetDocument(rbnzBaseURL + "/news-and-events/news")
	if err != nil {
		return nil, fmt.Errorf("RBNZ listing: %w", err)
	}

	var urls []string
	doc.Find("div.coveo-list-layout a.CoveoResultLink, div.CoveoResult a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if full := resolveURL(rbnzBaseURL, href); full != "" && strings.Contains(full, "rbnz.govt.nz") {
			urls = append(urls, full)
		}
	})

	var records []Record
	for _, u := range uniqStrings(urls) {
		if rt.IsKnown(u) {
			continue
		}
		rec, detail, err := scrapeDetail(rt, "rbnz", u, detailSpec{
			Title:    []string{"h1.hero__heading", "h1"},
			DateAttr: []string{"time[datetime]"},
			Date:     []string{"time"},
			Summary:  []string{"p.hero__description"},
			Body:     []string{"div#article-content", "article", "main"},
		})
		if err != nil {
			logger.Warn("RBNZ article failed", "url", u, "err", err)
			continue
		}
		var tags []string
		detail.Find("span.tag").Each(func(_ int, s *goquery.Selection) {
			tags = append(tags, normalizeWhitespace(s.Text()))
		})
		rec.Theme = strings.Join(uniqStrings(tags), ", ")

		// 統計系記事はテーブルを本文に含める
		var tables []string
		detail.Find("div#article-content table").Each(func(_ int, t *goquery.Selection) {
			if txt := tableText(t); txt != "" {
				tables = append(tables, txt)
			}
		})
		if len(tables) > 0 {
			rec.Body = strings.TrimSpace(rec.Body + "\n\n" + strings.Join(tables, "\n\n"))
		}
		records = append(records, rec)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Treasury NZ
// ---------------------------------------------------------------------------

const treasuryNZBaseURL = "https://www.treasury.govt.nz"

// collectTreasuryNZ fetches news articles from the NZ Treasury
func collectTreasuryNZ(rt *Runtime) ([]Record, error) {
	listURL := treasuryNZBaseURL + "/news-and-events/news"

	var records []Record
	seen := map[string]bool{}

	for page := 0; page < rt.PageCap; page++ {
		pageURL := listURL
		if page > 0 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Client.GetDocument(pageURL)
		if err != nil {
			if page == 0 {
				return records, fmt.Errorf("Treasury NZ listing: %w", err)
			}
			break
		}

		var urls []string
		doc.Find("h3.slat__title a, main h2 a, main h3 a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if full := resolveURL(treasuryNZBaseURL, href); full != "" && strings.Contains(full, "treasury.govt.nz") {
				urls = append(urls, full)
			}
		})
		urls = uniqStrings(urls)
		if len(urls) == 0 {
			break
		}

		for _, u := range urls {
			if seen[u] || rt.IsKnown(u) {
				continue
			}
			seen[u] = true

			rec, detail, err := scrapeDetail(rt, "treasury-nz", u, detailSpec{
				Title:    []string{"h1.page-header", "h1"},
				DateAttr: []string{"time[datetime]"},
				Date:     []string{"time"},
				Body:     []string{"article", "main", ".content"},
			})
			if err != nil {
				logger.Warn("Treasury NZ article failed", "url", u, "err", err)
				continue
			}
			if theme := detail.Find("div.article__type").First().Text(); theme != "" {
				rec.Theme = normalizeWhitespace(theme)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// NZ Legislation（要ヘッドレスブラウザ）
// ---------------------------------------------------------------------------

const nzLegislationBaseURL = "https://www.legislation.govt.nz"

// nzLegislationSearchParams は法令検索（法律・法案・二次法令）の固定クエリ
const nzLegislationSearchParams = "search=ad_act%40bill%40regulation%40deemedreg______25_ac%40bc%40rc%40dc%40apub%40aloc%40apri%40apro%40aimp%40bgov%40bloc%40bpri%40bmem%40rpub%40rimp_ac%40bc%40rc%40ainf%40anif%40aaif%40bcur%40bena%40rinf%40rnif%40raif_y_aw_se_"

// collectNZLegislation fetches the latest acts, bills and secondary
// legislation from the NZ legislation database
//
// 検索結果テーブルはASP.NETのJS描画のためヘッドレスブラウザで取得する。
// 種別（act/bill/regulation）はURLパスから判定してThemeに入れる。
func collectNZLegislation(rt *Runtime) ([]Record, error) {
	var records []Record
	seen := map[string]bool{}

	for page := 1; page <= rt.PageCap; page++ {
		pageURL := fmt.Sprintf("%s/all/results.aspx?%s&p=%d", nzLegislationBaseURL, nzLegislationSearchParams, page)
		doc, err := rt.Browser.RenderDocument(pageURL, "table[id*=\"mixedTable\"]")
		if err != nil {
			if page == 1 {
				return records, fmt.Errorf("NZ legislation results: %w", err)
			}
			break
		}

		type listItem struct {
			url   string
			title string
		}
		var items []listItem
		doc.Find("table[id*=\"mixedTable\"] td.resultsTitle a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			full := resolveURL(nzLegislationBaseURL, href)
			// トラッキング用クエリを除去して正規URLにする
			if i := strings.Index(full, "?"); i != -1 {
				full = full[:i]
			}
			if full == "" {
				return
			}
			items = append(items, listItem{url: full, title: normalizeWhitespace(a.Text())})
		})
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if seen[item.url] || rt.IsKnown(item.url) {
				continue
			}
			seen[item.url] = true

			rec, detail, err := scrapeDetail(rt, "nz-legislation", item.url, detailSpec{
				Body: []string{"#contentPanel", "div.legislation", "main"},
			})
			if err != nil {
				logger.Warn("NZ legislation item failed", "url", item.url, "err", err)
				continue
			}
			if rec.Title == "" {
				rec.Title = item.title
			}
			rec.Theme = nzLegislationKind(item.url)
			rec.Status = nzLegislationStatus(detail)
			records = append(records, rec)
		}
	}
	return records, nil
}

// nzLegislationKind derives the legislation type from the URL path
func nzLegislationKind(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/act/"):
		return "act"
	case strings.Contains(rawURL, "/bill/"):
		return "bill"
	case strings.Contains(rawURL, "/regulation/"), strings.Contains(rawURL, "/deemedreg/"):
		return "secondary legislation"
	}
	return ""
}

// nzLegislationStatus extracts the in-force status from the page text
func nzLegislationStatus(doc *goquery.Document) string {
	text := strings.ToLower(doc.Find("#contentPanel, main, body").First().Text())
	switch {
	case strings.Contains(text, "not yet in force"):
		return "Not yet in force"
	case strings.Contains(text, "repealed"):
		return "Repealed"
	case strings.Contains(text, "in force"):
		return "In force"
	}
	return ""
}

// =============================================================================
// sources_au.go - オーストラリア規制当局コレクタ
// =============================================================================
//
// 【含まれるエージェンシー】
//   1. ACCC    - 競争・消費者委員会（ニュースセンター）
//   2. ACMA    - 通信メディア庁（メディアリリース）
//   3. AHPRA   - 医療従事者規制庁（ニュース）
//   4. APRA    - 健全性規制庁（ニュース・出版物）
//   5. AUSTRAC - 金融取引報告分析センター（メディアリリース）
//   6. NHVR    - 重量車両規制局（メディアリリース）
//   7. OAIC    - 情報コミッショナー事務局（メディアセンター、要ブラウザ）
//
// 各コレクタは「一覧 → 新規URLの抽出 → 詳細取得」の増分パターンで動く。
// 既知URL（rt.Known）の詳細ページは再取得しない。
//
// =============================================================================
package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ---------------------------------------------------------------------------
// ACCC
// ---------------------------------------------------------------------------

const acccBaseURL = "https://www.accc.gov.au"

// acccNewsPathPatterns はニュース系コンテンツと判定するURLパスの断片
var acccNewsPathPatterns = []string{
	"/news/", "/media-release/", "/speech/", "/update/",
	"/media-updates/", "/about-us/news/", "/about-us/publications/", "/media/",
}

// isACCCNewsURL はACCCドメインのニュース系URLかを判定する
func isACCCNewsURL(rawURL string) bool {
	if !strings.Contains(rawURL, "accc.gov.au") {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, p := range acccNewsPathPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// collectACCC fetches articles from the ACCC news centre (Drupal listing)
func collectACCC(rt *Runtime) ([]Record, error) {
	listURL := acccBaseURL + "/news-centre"

	var records []Record
	seen := map[string]bool{}
	pagesWithoutNew := 0

	for page := 0; page < rt.PageCap; page++ {
		pageURL := listURL
		if page > 0 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Client.GetDocument(pageURL)
		if err != nil {
			if page == 0 {
				return records, fmt.Errorf("ACCC listing: %w", err)
			}
			logger.Warn("ACCC listing page failed, stopping pagination", "page", page, "err", err)
			break
		}

		// カード型セレクタとページ内全リンクの両方からニュースURLを拾う
		var urls []string
		doc.Find("div[data-type=\"accc-news\"] a[href], .accc-date-card a[href], .news-item a[href], article a[href], .view-content a[href], a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			full := resolveURL(acccBaseURL, href)
			if full != "" && isACCCNewsURL(full) {
				urls = append(urls, full)
			}
		})
		urls = uniqStrings(urls)
		if len(urls) == 0 {
			break
		}

		newOnPage := 0
		for _, u := range urls {
			if seen[u] || rt.IsKnown(u) {
				continue
			}
			seen[u] = true
			newOnPage++

			rec, _, err := scrapeDetail(rt, "accc", u, detailSpec{
				Title:    []string{"article.accc-full-view h1", "h1", ".page-title"},
				DateAttr: []string{".field--name-field-accc-news-published-date time", "time[datetime]"},
				Date:     []string{".published-date", ".date"},
				Summary:  []string{".field--name-field-summary", ".summary", ".lead"},
				Body:     []string{"article.accc-full-view", ".field--name-field-acccgov-body", "article", "main"},
			})
			if err != nil {
				logger.Warn("ACCC article failed", "url", u, "err", err)
				continue
			}
			records = append(records, rec)
		}

		// 新規ゼロのページが続いたら早期終了（増分実行の高速化）
		if newOnPage == 0 {
			pagesWithoutNew++
			if pagesWithoutNew >= 2 {
				break
			}
		} else {
			pagesWithoutNew = 0
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// ACMA
// ---------------------------------------------------------------------------

const acmaBaseURL = "https://www.acma.gov.au"

// collectACMA fetches media releases and news from ACMA
func collectACMA(rt *Runtime) ([]Record, error) {
	listURL := acmaBaseURL + "/media-releases"

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
				return records, fmt.Errorf("ACMA listing: %w", err)
			}
			break
		}

		var urls []string
		doc.Find(".node-teaser a[href], .article-teaser a[href], .news-teaser a[href], .media-teaser a[href], article.card a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if full := resolveURL(acmaBaseURL, href); full != "" && strings.Contains(full, "acma.gov.au") {
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

			rec, doc, err := scrapeDetail(rt, "acma", u, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Date:     []string{".date", ".published-date"},
				Body:     []string{"div.field--name-field-html", "div.prose", "article", "main"},
			})
			if err != nil {
				logger.Warn("ACMA article failed", "url", u, "err", err)
				continue
			}
			// パンくずからコンテンツ種別を取得（Media release / News 等）
			if crumb := doc.Find(".breadcrumb a, nav[aria-label=\"breadcrumb\"] a").Last(); crumb.Length() > 0 {
				rec.Theme = normalizeWhitespace(crumb.Text())
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// AHPRA
// ---------------------------------------------------------------------------

const ahpraBaseURL = "https://www.ahpra.gov.au"

// collectAHPRA fetches news articles from AHPRA (single listing page)
func collectAHPRA(rt *Runtime) ([]Record, error) {
	doc, err := rt.Client.GetDocument(ahpraBaseURL + "/News.aspx")
	if err != nil {
		return nil, fmt.Errorf("AHPRA listing: %w", err)
	}

	var urls []string
	doc.Find("div.article-list a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if full := resolveURL(ahpraBaseURL, href); full != "" && strings.Contains(full, "ahpra.gov.au") {
			urls = append(urls, full)
		}
	})

	var records []Record
	for _, u := range uniqStrings(urls) {
		if rt.IsKnown(u) {
			continue
		}
		rec, _, err := scrapeDetail(rt, "ahpra", u, detailSpec{
			Title: []string{"h1.heading", "h1"},
			Date:  []string{".main p strong", ".main .date", ".date"},
			Body:  []string{"#page-body", ".main .col-md-9", ".main", "#content"},
		})
		if err != nil {
			logger.Warn("AHPRA article failed", "url", u, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// APRA
// ---------------------------------------------------------------------------

const apraBaseURL = "https://www.apra.gov.au"

// collectAPRA fetches news and publications from APRA
func collectAPRA(rt *Runtime) ([]Record, error) {
	listURL := apraBaseURL + "/news-and-publications"

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
				return records, fmt.Errorf("APRA listing: %w", err)
			}
			break
		}

		var urls []string
		doc.Find("a[href*=\"news-and-publications\"]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			// ページネーション・フィルタ用のリンクは除外
			if strings.ContainsAny(href, "?#") {
				return
			}
			full := resolveURL(apraBaseURL, href)
			if full != "" && full != listURL {
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

			rec, _, err := scrapeDetail(rt, "apra", u, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Body:     []string{".rich-text", "div.page__sections", "article", "main"},
			})
			if err != nil {
				logger.Warn("APRA article failed", "url", u, "err", err)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// AUSTRAC
// ---------------------------------------------------------------------------

const austracBaseURL = "https://www.austrac.gov.au"

// collectAUSTRAC fetches media releases from AUSTRAC (Drupal views listing)
func collectAUSTRAC(rt *Runtime) ([]Record, error) {
	listURL := austracBaseURL + "/news-and-media/media-release"

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
				return records, fmt.Errorf("AUSTRAC listing: %w", err)
			}
			break
		}

		rows := doc.Find(".views-row")
		if rows.Length() == 0 {
			rows = doc.Find("article, .media-release, .news-item, .content-item")
		}
		if rows.Length() == 0 {
			break
		}

		type listItem struct {
			url  string
			date string
		}
		var items []listItem
		rows.Each(func(_ int, row *goquery.Selection) {
			href, _ := row.Find("a[href]").First().Attr("href")
			full := resolveURL(austracBaseURL, href)
			if full == "" {
				return
			}
			item := listItem{url: full}
			if dt, ok := row.Find("time").First().Attr("datetime"); ok {
				item.date = parseDate(dt)
			} else if t := row.Find("time").First().Text(); t != "" {
				item.date = parseDate(t)
			}
			items = append(items, item)
		})
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if seen[item.url] || rt.IsKnown(item.url) {
				continue
			}
			seen[item.url] = true

			rec, _, err := scrapeDetail(rt, "austrac", item.url, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Body:     []string{".body-copy", ".article-content", ".content", "article", "main"},
			})
			if err != nil {
				logger.Warn("AUSTRAC article failed", "url", item.url, "err", err)
				continue
			}
			if rec.PublishedAt == "" {
				rec.PublishedAt = item.date
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// NHVR
// ---------------------------------------------------------------------------

const nhvrBaseURL = "https://www.nhvr.gov.au"

// collectNHVR fetches media releases from NHVR
func collectNHVR(rt *Runtime) ([]Record, error) {
	listURL := nhvrBaseURL + "/mediarelease"

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
				return records, fmt.Errorf("NHVR listing: %w", err)
			}
			break
		}

		type listItem struct {
			url  string
			date string
		}
		var items []listItem
		doc.Find("article").Each(func(_ int, article *goquery.Selection) {
			href, _ := article.Find("h2 a").First().Attr("href")
			full := resolveURL(nhvrBaseURL, href)
			if full == "" {
				return
			}
			item := listItem{url: full}
			if dt, ok := article.Find("time").First().Attr("datetime"); ok {
				item.date = parseDate(dt)
			}
			items = append(items, item)
		})
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if seen[item.url] || rt.IsKnown(item.url) {
				continue
			}
			seen[item.url] = true

			rec, doc, err := scrapeDetail(rt, "nhvr", item.url, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Body:     []string{"article", "main"},
			})
			if err != nil {
				logger.Warn("NHVR article failed", "url", item.url, "err", err)
				continue
			}
			if rec.PublishedAt == "" {
				rec.PublishedAt = item.date
			}
			// "Latest News Subject" ラベルの隣にテーマが入る
			doc.Find("div").EachWithBreak(func(_ int, d *goquery.Selection) bool {
				if strings.Contains(d.Text(), "Latest News Subject") {
					if next := d.Next(); next.Length() > 0 {
						rec.Theme = normalizeWhitespace(next.Text())
					}
					return false
				}
				return true
			})
			records = append(records, rec)
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// OAIC（要ヘッドレスブラウザ）
// ---------------------------------------------------------------------------

const oaicBaseURL = "https://www.oaic.gov.au"

// collectOAIC fetches media centre articles from OAIC via headless Chrome
//
// OAICの一覧・詳細ページはJSで描画されるため通常のGETでは取得できない。
func collectOAIC(rt *Runtime) ([]Record, error) {
	listURL := oaicBaseURL + "/news/media-centre"

	var records []Record
	seen := map[string]bool{}

	for page := 0; page < rt.PageCap; page++ {
		pageURL := listURL
		if page > 0 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Browser.RenderDocument(pageURL, ".page-content")
		if err != nil {
			if page == 0 {
				return records, fmt.Errorf("OAIC listing: %w", err)
			}
			break
		}

		var urls []string
		doc.Find("a[href*=\"/news/\"]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			full := resolveURL(oaicBaseURL, href)
			if full == "" || full == listURL || strings.Contains(full, "?page=") {
				return
			}
			urls = append(urls, full)
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

			detail, err := rt.Browser.RenderDocument(u, ".page-content")
			if err != nil {
				logger.Warn("OAIC article failed", "url", u, "err", err)
				continue
			}
			rec := newRecord("oaic", u)
			fillDetail(rt, &rec, detail, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Date:     []string{".publication-date", ".date"},
				Body: []string{
					"#main-content-area article", ".page-content article",
					"#main-content-area", ".page-content", "main",
				},
			})
			records = append(records, rec)
		}
	}
	return records, nil
}

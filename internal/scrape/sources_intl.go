// =============================================================================
// sources_intl.go - 国際機関コレクタ
// =============================================================================
//
// 【含まれるエージェンシー】
//   1. osfi      - カナダ金融機関監督庁（要ブラウザ）
//   2. bis       - 国際決済銀行（プレスリリース + 中央銀行スピーチ）
//   3. fsa-japan - 金融庁 英語版新着情報（日本語日付・非UTF-8対応）
//   4. mas       - シンガポール金融管理局ニュース
//
// FSAのページはShift_JIS配信のことがあるが、Client側でcharset変換済みの
// UTF-8が返ってくるため、ここでは意識しなくてよい。
//
// =============================================================================
package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ---------------------------------------------------------------------------
// OSFI（要ヘッドレスブラウザ）
// ---------------------------------------------------------------------------

const osfiBaseURL = "https://www.osfi-bsif.gc.ca"

// collectOSFI fetches news articles from OSFI via headless Chrome
//
// OSFIはボット対策が強く、通常のGETではニュース一覧が描画されない。
func collectOSFI(rt *Runtime) ([]Record, error) {
	doc, err := rt.Browser.RenderDocument(osfiBaseURL+"/en/news", "article.news")
	if err != nil {
		return nil, fmt.Errorf("OSFI listing: %w", err)
	}

	var urls []string
	doc.Find("article.news a[href], .news-item a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if full := resolveURL(osfiBaseURL, href); full != "" && strings.Contains(full, "osfi-bsif.gc.ca") {
			urls = append(urls, full)
		}
	})

	var records []Record
	for _, u := range uniqStrings(urls) {
		if rt.IsKnown(u) {
			continue
		}
		detail, err := rt.Browser.RenderDocument(u, "h1")
		if err != nil {
			logger.Warn("OSFI article failed", "url", u, "err", err)
			continue
		}
		rec := newRecord("osfi", u)
		fillDetail(rt, &rec, detail, detailSpec{
			Title:    []string{"h1#wb-cont", "h1"},
			DateAttr: []string{"time[datetime]"},
			Date:     []string{".date-modified", ".gc-byline time", "time"},
			Body:     []string{"article.news", "main", "#wb-main"},
		})
		records = append(records, rec)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// BIS
// ---------------------------------------------------------------------------

const bisBaseURL = "https://www.bis.org"

// bisPressRSS はプレスリリースのRSSフィード（HTML一覧の補完用）
const bisPressRSS = bisBaseURL + "/doclist/pressrels.rss"

// collectBIS fetches BIS press releases and central bank speeches
//
// 両一覧とも tr.item even / tr.item odd のテーブル行で構成される。
// プレスリリースはRSSフィードでも補完する。
func collectBIS(rt *Runtime) ([]Record, error) {
	var records []Record
	seen := map[string]bool{}

	press, err := collectBISTable(rt, bisBaseURL+"/press/wnew.htm?m=257", "press release", seen)
	if err != nil {
		return records, err
	}
	records = append(records, press...)

	speeches, err := collectBISTable(rt, bisBaseURL+"/cbspeeches/index.htm", "speech", seen)
	if err != nil {
		logger.Warn("BIS speeches listing failed", "err", err)
	}
	records = append(records, speeches...)

	// RSS補完
	feed, err := rt.Client.GetFeed(bisPressRSS)
	if err != nil {
		logger.Warn("BIS press feed failed", "err", err)
		return records, nil
	}
	for _, item := range feed.Items {
		full := resolveURL(bisBaseURL, item.Link)
		if full == "" || seen[full] || rt.IsKnown(full) {
			continue
		}
		seen[full] = true
		rec, ok := bisDetail(rt, full, "press release")
		if !ok {
			continue
		}
		if rec.Title == "" {
			rec.Title = item.Title
		}
		if rec.PublishedAt == "" && item.PublishedParsed != nil {
			rec.PublishedAt = item.PublishedParsed.Format("2006-01-02")
		}
		records = append(records, rec)
	}
	return records, nil
}

// collectBISTable walks one BIS table listing (press or speeches)
func collectBISTable(rt *Runtime, listURL, kind string, seen map[string]bool) ([]Record, error) {
	var records []Record

	for page := 1; page <= rt.PageCap; page++ {
		pageURL := listURL
		if page > 1 {
			sep := "?"
			if strings.Contains(listURL, "?") {
				sep = "&"
			}
			pageURL = fmt.Sprintf("%s%snewsarchive_page=%d", listURL, sep, page)
		}
		doc, err := rt.Client.GetDocument(pageURL)
		if err != nil {
			if page == 1 {
				return records, fmt.Errorf("BIS %s listing: %w", kind, err)
			}
			break
		}

		rows := doc.Find("tr.item.even, tr.item.odd")
		if rows.Length() == 0 {
			break
		}

		type listItem struct {
			url  string
			date string
		}
		var items []listItem
		rows.Each(func(_ int, tr *goquery.Selection) {
			href, _ := tr.Find("a.dark").First().Attr("href")
			full := resolveURL(bisBaseURL, href)
			if full == "" {
				return
			}
			items = append(items, listItem{
				url:  full,
				date: parseDate(tr.Find("td.item_date").First().Text()),
			})
		})

		for _, item := range items {
			if seen[item.url] || rt.IsKnown(item.url) {
				continue
			}
			seen[item.url] = true

			rec, ok := bisDetail(rt, item.url, kind)
			if !ok {
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

// bisDetail fetches one BIS detail page (ok=false on failure, already logged)
func bisDetail(rt *Runtime, pageURL, kind string) (Record, bool) {
	rec, _, err := scrapeDetail(rt, "bis", pageURL, detailSpec{
		DateAttr: []string{"time[datetime]"},
		Date:     []string{".date"},
		Body:     []string{"div#cmsContent", "div#center[role=\"main\"]", "main"},
	})
	if err != nil {
		logger.Warn("BIS detail failed", "url", pageURL, "err", err)
		return Record{}, false
	}
	rec.Theme = kind
	return rec, true
}

// ---------------------------------------------------------------------------
// FSA Japan
// ---------------------------------------------------------------------------

const fsaBaseURL = "https://www.fsa.go.jp"

// collectFSAJapan fetches the FSA "What's New" page (English)
//
// 一覧は div#main 配下に月別のh2見出しとli項目が並ぶ構造。
// 日付は「2026年3月12日」形式も混在するが parseDate が処理する。
func collectFSAJapan(rt *Runtime) ([]Record, error) {
	doc, err := rt.Client.GetDocument(fsaBaseURL + "/en/recent.html")
	if err != nil {
		return nil, fmt.Errorf("FSA listing: %w", err)
	}

	main := doc.Find("div#main")
	if main.Length() == 0 {
		return nil, fmt.Errorf("FSA listing: div#main not found")
	}

	var records []Record
	seen := map[string]bool{}
	main.Find("li").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		full := resolveURL(fsaBaseURL, href)
		if full == "" || seen[full] || rt.IsKnown(full) || !strings.Contains(full, "fsa.go.jp") {
			return
		}
		seen[full] = true

		// PDFへの直接リンクは詳細ページなしで文書抽出する
		if hasExt(full, ".pdf") {
			rec := newRecord("fsa-japan", full)
			rec.Title = normalizeWhitespace(li.Text())
			attachDocuments(rt, &rec, []string{full})
			records = append(records, rec)
			return
		}

		rec, _, err := scrapeDetail(rt, "fsa-japan", full, detailSpec{
			Title: []string{"div#main div.inner h1", "h1"},
			Date:  []string{"div#main .date", ".date"},
			Body:  []string{"div#main div.inner", "div#main"},
		})
		if err != nil {
			logger.Warn("FSA article failed", "url", full, "err", err)
			return
		}
		if rec.PublishedAt == "" {
			// 一覧のli先頭に日付が付くことが多い
			rec.PublishedAt = parseDate(normalizeWhitespace(li.Text()))
			if rec.PublishedAt == normalizeWhitespace(li.Text()) {
				rec.PublishedAt = ""
			}
		}
		records = append(records, rec)
	})
	return records, nil
}

// ---------------------------------------------------------------------------
// MAS
// ---------------------------------------------------------------------------

const masBaseURL = "https://www.mas.gov.sg"

// collectMAS fetches news articles from the Monetary Authority of Singapore
func collectMAS(rt *Runtime) ([]Record, error) {
	listURL := masBaseURL + "/news"

	var records []Record
	seen := map[string]bool{}

	for page := 1; page <= rt.PageCap; page++ {
		pageURL := listURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Client.GetDocument(pageURL)
		if err != nil {
			if page == 1 {
				return records, fmt.Errorf("MAS listing: %w", err)
			}
			break
		}

		cards := doc.Find("article.mas-search-card")
		if cards.Length() == 0 {
			break
		}

		type listItem struct {
			url   string
			title string
			theme string
		}
		var items []listItem
		cards.Each(func(_ int, card *goquery.Selection) {
			link := card.Find("a.mas-link").First()
			href, _ := link.Attr("href")
			full := resolveURL(masBaseURL, href)
			if full == "" {
				return
			}
			items = append(items, listItem{
				url:   full,
				title: normalizeWhitespace(link.Find("span.mas-link__text").Text()),
				theme: normalizeWhitespace(card.Find("div.mas-tag__text").First().Text()),
			})
		})

		for _, item := range items {
			if seen[item.url] || rt.IsKnown(item.url) {
				continue
			}
			seen[item.url] = true

			rec, detail, err := scrapeDetail(rt, "mas", item.url, detailSpec{
				Title:    []string{"h1.mas-text-h1", "h1"},
				DateAttr: []string{"time[datetime]"},
				Body:     []string{"div._mas-typeset", "div.mas-rte-content", "main"},
			})
			if err != nil {
				logger.Warn("MAS article failed", "url", item.url, "err", err)
				continue
			}
			if rec.Title == "" {
				rec.Title = item.title
			}
			if rec.Theme == "" {
				rec.Theme = item.theme
			}
			if rec.PublishedAt == "" {
				if t := detail.Find("div.mas-ancillaries").Text(); t != "" {
					rec.PublishedAt = parseDate(normalizeWhitespace(t))
					if rec.PublishedAt == normalizeWhitespace(t) {
						rec.PublishedAt = ""
					}
				}
			}
			// mas-sectionブロック内のリンクも関連リンクとして拾う
			detail.Find("div.mas-section a.mas-link[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				if full := resolveURL(item.url, href); full != "" {
					rec.RelatedLinks = append(rec.RelatedLinks, full)
				}
			})
			rec.RelatedLinks = uniqStrings(rec.RelatedLinks)
			records = append(records, rec)
		}
	}
	return records, nil
}

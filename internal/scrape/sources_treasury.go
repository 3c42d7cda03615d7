// =============================================================================
// sources_treasury.go - 豪州財務省コンサルテーションコレクタ
// =============================================================================
//
// Treasury AUのコンサルテーション一覧はJS描画（Drupal + Views Ajax）のため
// ヘッドレスブラウザで取得する。各行には掲載ステータス（Open/Closed等）が
// 含まれており、詳細ページを開かなくても毎回全行のステータスを確認できる。
//
// 【ステータス追跡】
//   - 新規コンサルテーション: 詳細ページを取得して完全なレコードを作る
//   - 既知コンサルテーション: 一覧のステータスだけを載せた薄いレコードを
//     返し、ストアのマージ層が変化検出とStatusHistory追記を行う
//
// 識別はURLではなくMD5(タイトル + "_" + クエリ除去URL)のUniqueIDで行う。
// URLのトラッキングパラメータ変化で同一案件が重複するのを防ぐため。
//
// =============================================================================
package scrape

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

const treasuryAUBaseURL = "https://treasury.gov.au"

// collectTreasuryAU fetches Treasury AU consultations with status tracking
func collectTreasuryAU(rt *Runtime) ([]Record, error) {
	listURL := treasuryAUBaseURL + "/consultation"

	var records []Record
	seen := map[string]bool{}

	for page := 0; page < rt.PageCap; page++ {
		pageURL := listURL
		if page > 0 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Browser.RenderDocument(pageURL, "div.views-row")
		if err != nil {
			if page == 0 {
				return records, fmt.Errorf("Treasury AU listing: %w", err)
			}
			break
		}

		rows := doc.Find("div.views-row")
		if rows.Length() == 0 {
			break
		}

		rows.Each(func(_ int, row *goquery.Selection) {
			titleLink := row.Find("div[class*=\"field--name-node-title\"] a").First()
			title := normalizeWhitespace(titleLink.Text())
			href, _ := titleLink.Attr("href")
			fullURL := resolveURL(treasuryAUBaseURL, href)
			if title == "" || fullURL == "" {
				return
			}

			status := normalizeWhitespace(row.Find("div[class*=\"field--name-field-status\"] div[class*=\"field__item\"]").First().Text())
			if status == "" {
				status = "Unknown"
			}
			dateRange := normalizeWhitespace(row.Find("div[class*=\"field--field-date-range\"]").First().Text())

			uid := MD5UniqueID(title, fullURL)
			if seen[uid] {
				return
			}
			seen[uid] = true

			if rt.IsKnown(uid) {
				// 既知案件: ステータス確認用の薄いレコード。
				// 変化があればマージ層が既存レコードを更新する。
				rec := newRecord("treasury-au", fullURL)
				rec.Title = title
				rec.UniqueID = uid
				rec.Status = status
				rec.DateRange = dateRange
				records = append(records, rec)
				return
			}

			rec, ok := treasuryAUDetail(rt, fullURL)
			if !ok {
				return
			}
			rec.Title = title
			rec.UniqueID = uid
			rec.Status = status
			rec.DateRange = dateRange
			records = append(records, rec)
		})
	}
	return records, nil
}

// treasuryAUDetail fetches one consultation detail page via the browser
func treasuryAUDetail(rt *Runtime, pageURL string) (Record, bool) {
	doc, err := rt.Browser.RenderDocument(pageURL, "h1")
	if err != nil {
		logger.Warn("Treasury AU consultation failed", "url", pageURL, "err", err)
		return Record{}, false
	}
	rec := newRecord("treasury-au", pageURL)
	fillDetail(rt, &rec, doc, detailSpec{
		DateAttr: []string{"time[datetime]"},
		Summary:  []string{".field--name-field-summary", ".summary"},
		Body:     []string{".field--name-body", "article", "main"},
	})
	return rec, true
}

// =============================================================================
// sources_asic.go - ASICコレクタ
// =============================================================================
//
// 【含まれるエージェンシー】
//   1. asic-media          - メディアリリース（詳細取得は4並列ワーカー）
//   2. asic-consultations  - コンサルテーションペーパー（ステータス追跡）
//
// メディアリリースは件数が多いため、詳細ページの取得だけを
// 固定4ワーカーのプールで並列化する。Clientはgoroutineセーフ。
//
// =============================================================================
package scrape

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const asicBaseURL = "https://asic.gov.au"

// asicDetailWorkers は詳細ページ取得の並列度
const asicDetailWorkers = 4

// collectASICMedia fetches media releases from the ASIC newsroom
func collectASICMedia(rt *Runtime) ([]Record, error) {
	listURL := asicBaseURL + "/newsroom/media-releases/"

	// 一覧ページから新規URLを集める（ここは直列）
	type listItem struct {
		url     string
		date    string
		summary string
	}
	var items []listItem
	seen := map[string]bool{}

	for page := 1; page <= rt.PageCap; page++ {
		pageURL := listURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", listURL, page)
		}
		doc, err := rt.Client.GetDocument(pageURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("ASIC listing: %w", err)
			}
			break
		}

		entries := doc.Find("#nr-list > li")
		if entries.Length() == 0 {
			break
		}
		found := 0
		entries.Each(func(_ int, li *goquery.Selection) {
			href, _ := li.Find("h3 > a").First().Attr("href")
			full := resolveURL(asicBaseURL, href)
			if full == "" || seen[full] || rt.IsKnown(full) {
				return
			}
			seen[full] = true
			found++
			items = append(items, listItem{
				url:     full,
				date:    parseDate(li.Find(".nr-date").First().Text()),
				summary: normalizeWhitespace(li.Find(".nr-summary, .summary, p").First().Text()),
			})
		})
		if found == 0 && page > 1 {
			break
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	// 詳細ページの取得はワーカープールで並列化、結果はミューテックス保護
	var (
		mu      sync.Mutex
		records []Record
		wg      sync.WaitGroup
	)
	jobs := make(chan listItem)

	for w := 0; w < asicDetailWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				rec, doc, err := scrapeDetail(rt, "asic-media", item.url, detailSpec{
					DateAttr: []string{"time[datetime]"},
					Date:     []string{".nh-article-date"},
					Body:     []string{"#nh-article-body", ".nh-article-content", ".article-content", "main"},
				})
				if err != nil {
					logger.Warn("ASIC media release failed", "url", item.url, "err", err)
					continue
				}
				if rec.PublishedAt == "" {
					rec.PublishedAt = item.date
				}
				if rec.Summary == "" {
					rec.Summary = item.summary
				}
				if t := doc.Find("span.nh-mr-type").First().Text(); t != "" {
					rec.Theme = normalizeWhitespace(t)
				}
				var tags []string
				doc.Find(".nh-article-tags a.nh-list-tag").Each(func(_ int, a *goquery.Selection) {
					tags = append(tags, normalizeWhitespace(a.Text()))
				})
				if len(tags) > 0 && rec.Theme == "" {
					rec.Theme = strings.Join(tags, ", ")
				}

				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}
		}()
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()

	return records, nil
}

// collectASICConsultations fetches consultation papers and tracks their status
//
// 一覧は検索UI（JS描画）のためヘッドレスブラウザで取得する。
// 既知のコンサルテーションも毎回ステータスを確認し、変化があれば
// マージ層がStatusHistoryに追記する。
func collectASICConsultations(rt *Runtime) ([]Record, error) {
	listURLs := []string{
		asicBaseURL + "/regulatory-resources/",
		asicBaseURL + "/regulatory-resources/find-a-document/",
	}

	var urls []string
	seen := map[string]bool{}
	for _, listURL := range listURLs {
		doc, err := rt.Browser.RenderDocument(listURL, "main")
		if err != nil {
			logger.Warn("ASIC consultations listing failed", "url", listURL, "err", err)
			continue
		}
		doc.Find("a[href*=\"consultation\"]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			full := resolveURL(asicBaseURL, href)
			if full == "" || seen[full] || !strings.Contains(full, "asic.gov.au") {
				return
			}
			seen[full] = true
			urls = append(urls, full)
		})
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("ASIC consultations: no consultation links found")
	}

	var records []Record
	for _, u := range urls {
		rec, doc, err := scrapeDetail(rt, "asic-consultations", u, detailSpec{
			DateAttr: []string{"time[datetime]"},
			Body:     []string{"#nh-article-body", ".article-content", "article", "main"},
		})
		if err != nil {
			logger.Warn("ASIC consultation failed", "url", u, "err", err)
			continue
		}
		if rec.Title == "" {
			continue
		}
		rec.UniqueID = MD5UniqueID(rec.Title, u)
		rec.Status = asicConsultationStatus(doc)
		records = append(records, rec)
	}
	return records, nil
}

// asicConsultationStatus derives Open/Closed from the consultation page text
func asicConsultationStatus(doc *goquery.Document) string {
	text := strings.ToLower(doc.Find("main, article, body").First().Text())
	switch {
	case strings.Contains(text, "seeking feedback") ||
		strings.Contains(text, "submissions are open") ||
		strings.Contains(text, "consultation is open"):
		return "Open"
	case strings.Contains(text, "submissions closed") ||
		strings.Contains(text, "consultation has closed") ||
		strings.Contains(text, "now closed"):
		return "Closed"
	}
	return "Unknown"
}

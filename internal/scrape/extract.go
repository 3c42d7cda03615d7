// =============================================================================
// extract.go - HTML抽出ヘルパー
// =============================================================================
//
// このファイルは詳細ページからの本文・日付・リンク抽出の共通処理を提供します。
//
// 【抽出の基本方針】
//   各エージェンシーのHTML構造は予告なく変わる外部契約なので、
//   優先順位付きのCSSセレクタ列（フォールバックチェーン）で防御的に抽出し、
//   全セレクタが外れた場合はreadabilityによる本文推定に落とす。
//
// 【日付パース】
//   政府系サイトの日付表記は "12 March 2026" / "2026-03-12" / "2026年3月12日"
//   など自由形式のため、dateparseで推定し、失敗時は元テキストを保持する。
//
// =============================================================================
package scrape

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

// Package-level compiled regex for performance (avoid recompiling on every call)
var (
	reScriptTags      = regexp.MustCompile(`(?s)<script[^>]*>.*?</script>`)
	reHTMLTags        = regexp.MustCompile(`<[^>]*>`)
	reJapaneseDateYMD = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

// firstText はセレクタ列を順に試し、最初に見つかった非空テキストを返す
//
// 戻り値の2つ目は、どのセレクタにもマッチしなかった場合にfalse。
func firstText(doc *goquery.Document, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if s := strings.TrimSpace(doc.Find(sel).First().Text()); s != "" {
			return normalizeWhitespace(s), true
		}
	}
	return "", false
}

// firstAttr はセレクタ列を順に試し、最初に見つかった非空属性値を返す
func firstAttr(doc *goquery.Document, attr string, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// blockText はセレクション配下のブロック要素を改行区切りのテキストに変換する
//
// goqueryの.Text()はブロック境界の空白を落とすため、段落・見出し・リスト・
// テーブルセル単位でテキストを集めて結合する。
func blockText(sel *goquery.Selection) string {
	var parts []string
	seen := map[string]bool{}
	sel.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, blockquote, dd, dt").Each(func(_ int, s *goquery.Selection) {
		// 入れ子のブロックを含む要素はスキップ（子要素側で拾う）
		if s.Find("p, li, h2, h3").Length() > 0 {
			return
		}
		t := normalizeWhitespace(s.Text())
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		parts = append(parts, t)
	})
	if len(parts) == 0 {
		return strings.TrimSpace(normalizeWhitespace(sel.Text()))
	}
	return strings.Join(parts, "\n")
}

// extractBody はセレクタチェーンで本文を抽出し、全滅時はreadabilityに落とす
//
// readabilityも失敗した場合は空文字列を返す（実行は中断しない）。
func extractBody(doc *goquery.Document, pageURL string, selectors ...string) string {
	for _, sel := range selectors {
		area := doc.Find(sel).First()
		if area.Length() == 0 {
			continue
		}
		// ナビゲーションやパンくずなどの非本文要素を除去したクローンから抽出
		clone := area.Clone()
		clone.Find("script, style, nav, aside, .breadcrumb, .pager, .pagination, .social-share, .share, .skip-link, .visually-hidden").Remove()
		if text := blockText(clone); len(text) > 40 {
			return text
		}
	}
	return readabilityFallback(doc, pageURL)
}

// readabilityFallback はページ全体からreadabilityアルゴリズムで本文を推定する
func readabilityFallback(doc *goquery.Document, pageURL string) string {
	rawHTML, err := doc.Html()
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		logger.Debug("readability fallback failed", "url", pageURL, "err", err)
		return ""
	}
	return strings.TrimSpace(normalizeWhitespace(article.TextContent))
}

// extractLinks はセレクション配下のリンクを絶対URLに解決して返す
func extractLinks(sel *goquery.Selection, baseURL string) []string {
	var links []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if full := resolveURL(baseURL, href); full != "" {
			links = append(links, full)
		}
	})
	return uniqStrings(links)
}

// documentLinks はセレクション配下のPDF/CSV/XLSXリンクだけを返す
func documentLinks(sel *goquery.Selection, baseURL string) []string {
	var links []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if i := strings.Index(lower, "?"); i != -1 {
			lower = lower[:i]
		}
		if !strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, ".csv") &&
			!strings.HasSuffix(lower, ".xlsx") && !strings.HasSuffix(lower, ".xls") {
			return
		}
		if full := resolveURL(baseURL, href); full != "" {
			links = append(links, full)
		}
	})
	return uniqStrings(links)
}

// parseDate は自由形式の日付テキストをISO-8601（YYYY-MM-DD）に正規化する
//
// パースできない場合は空白正規化した元テキストをそのまま返す。
// 公開日を落とすより、生のテキストを残す方が下流にとって有用なため。
func parseDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// 日本語の年月日表記（2026年3月12日）を先に処理
	if m := reJapaneseDateYMD.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.Format("2006-01-02")
	}
	return normalizeWhitespace(raw)
}

// cleanHTMLTags はHTML文字列からタグを除去しエンティティをデコードする
//
// scriptブロックは中身ごと除去する。RSSフィードのdescription整形などに使用。
func cleanHTMLTags(htmlStr string) string {
	text := reScriptTags.ReplaceAllString(htmlStr, "")
	text = reHTMLTags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(normalizeWhitespace(text))
}

// tableText はテーブル要素をタブ区切りテキストに変換する
func tableText(table *goquery.Selection) string {
	var rows []string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeWhitespace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, "\t"))
		}
	})
	return strings.Join(rows, "\n")
}

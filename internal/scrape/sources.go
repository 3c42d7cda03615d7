// =============================================================================
// sources.go - コレクタ共通ヘルパー
// =============================================================================
//
// 各エージェンシーの詳細ページ取得はほぼ同じ流れ（取得 → タイトル・日付・
// 本文の抽出 → 関連リンク・添付文書の収集）なので、共通部分をここに置く。
// エージェンシー固有のフィールド（Theme、Status等）は各コレクタが
// 返ってきたdocから追加で抽出する。
//
// =============================================================================
package scrape

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// detailSpec は詳細ページからの共通フィールド抽出に使うセレクタ群
//
// 各スライスは優先順位付きのフォールバックチェーン。
type detailSpec struct {
	// Title はタイトル抽出のセレクタ（空ならh1）
	Title []string

	// DateAttr はdatetime属性から日付を取るセレクタ（time[datetime]等）
	DateAttr []string

	// Date はテキストから日付を取るセレクタ
	Date []string

	// Summary は要約・リード文のセレクタ（省略可）
	Summary []string

	// Body は本文領域のセレクタ。全滅時はreadabilityにフォールバック。
	Body []string
}

// newRecord はエージェンシーキーとURLから取得日時入りのRecordを作る
func newRecord(agency, pageURL string) Record {
	return Record{
		Agency:    agency,
		URL:       pageURL,
		ScrapedAt: time.Now().Format(time.RFC3339),
	}
}

// fillDetail はパース済みの詳細ページから共通フィールドをRecordに詰める
//
// 本文領域が特定できた場合、関連リンクと添付文書リンクはその領域内に
// 限定する（ナビゲーション内のリンクを拾わないため）。
func fillDetail(rt *Runtime, rec *Record, doc *goquery.Document, spec detailSpec) {
	titleSels := spec.Title
	if len(titleSels) == 0 {
		titleSels = []string{"h1"}
	}
	if t, ok := firstText(doc, titleSels...); ok && rec.Title == "" {
		rec.Title = t
	}

	if rec.PublishedAt == "" {
		if raw, ok := firstAttr(doc, "datetime", spec.DateAttr...); ok {
			rec.PublishedAt = parseDate(raw)
		} else if raw, ok := firstText(doc, spec.Date...); ok {
			rec.PublishedAt = parseDate(raw)
		}
	}

	if len(spec.Summary) > 0 {
		if s, ok := firstText(doc, spec.Summary...); ok {
			rec.Summary = s
		}
	}

	rec.Body = extractBody(doc, rec.URL, spec.Body...)

	// リンク収集の範囲: 最初にマッチした本文領域、なければページ全体
	area := doc.Selection
	for _, sel := range spec.Body {
		if a := doc.Find(sel).First(); a.Length() > 0 {
			area = a
			break
		}
	}
	rec.RelatedLinks = extractLinks(area, rec.URL)
	attachDocuments(rt, rec, documentLinks(area, rec.URL))
}

// scrapeDetail は詳細ページを取得して共通フィールドを抽出する
//
// コレクタはエージェンシー固有フィールドを返り値のdocから追加抽出できる。
func scrapeDetail(rt *Runtime, agency, pageURL string, spec detailSpec) (Record, *goquery.Document, error) {
	doc, err := rt.Client.GetDocument(pageURL)
	if err != nil {
		return Record{}, nil, err
	}
	rec := newRecord(agency, pageURL)
	fillDetail(rt, &rec, doc, spec)
	return rec, doc, nil
}

// attachDocuments は文書URLのダウンロード・抽出結果をRecordに付加する
//
// FetchDocsが無効の場合はURLだけを記録する。
func attachDocuments(rt *Runtime, rec *Record, docURLs []string) {
	if len(docURLs) == 0 {
		return
	}
	if rt.FetchDocs {
		rec.Documents = rt.Client.FetchDocuments(docURLs)
		return
	}
	for _, u := range docURLs {
		rec.Documents = append(rec.Documents, DocumentExtract{URL: u})
	}
}

// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはRegPulseシステム全体で使用するデータ構造（型）を定義します。
//
// 【このファイルで定義している型】
//   - Record:          規制当局サイトから取得した1件の記事・文書
//   - DocumentExtract: 記事に添付されたPDF/CSV/XLSXの抽出テキスト
//   - StatusEntry:     コンサルテーションのステータス変更履歴の1エントリ
//
// =============================================================================
package scrape

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Record は規制当局サイトから取得した1件の記事・文書を表す。
//
// ニュース記事、メディアリリース、出版物、コンサルテーションのいずれも
// この1つのフラットな構造で保存する。エージェンシーごとに1つのJSON配列
// ファイル（data/<agency>_*.json）として書き出される。
//
// 【フィールドの説明】
//   Agency:       エージェンシーキー（例: "accc", "treasury-au"）
//   URL:          詳細ページのURL（主キー）
//   Title:        記事タイトル
//   PublishedAt:  公開日（パース可能ならISO-8601、不可能なら元テキスト）
//   ScrapedAt:    取得日時（RFC3339）
//   Body:         本文テキスト
//   Summary:      要約・リード文（存在する場合のみ）
//   RelatedLinks: 本文中の関連リンク
//   Documents:    添付PDF/CSV/XLSXの抽出結果
//   UniqueID:     重複排除キー（空ならURLをキーとして使用）
//
// 【コンサルテーション専用フィールド】
//   Status:          現在のステータス（"Open" / "Closed" など）
//   StatusHistory:   ステータス変更の追記専用履歴
//   LastStatusCheck: 最後にステータスを確認した日時
type Record struct {
	Agency          string            `json:"agency"`
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	PublishedAt     string            `json:"published_date,omitempty"`
	ScrapedAt       string            `json:"scraped_date"`
	Body            string            `json:"content,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Theme           string            `json:"theme,omitempty"`
	RelatedLinks    []string          `json:"related_links,omitempty"`
	Documents       []DocumentExtract `json:"documents,omitempty"`
	UniqueID        string            `json:"unique_id,omitempty"`
	Status          string            `json:"status,omitempty"`
	DateRange       string            `json:"date_range,omitempty"`
	StatusHistory   []StatusEntry     `json:"status_history,omitempty"`
	LastStatusCheck string            `json:"last_status_check,omitempty"`
}

// DedupKey は重複排除に使うキーを返す（UniqueID優先、なければURL）
func (r Record) DedupKey() string {
	if r.UniqueID != "" {
		return r.UniqueID
	}
	return r.URL
}

// DocumentExtract は記事に添付された文書（PDF/CSV/XLSX）の抽出結果
//
// 抽出に失敗した場合、Textは空文字列になる（実行は中断しない）。
type DocumentExtract struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Text        string `json:"text,omitempty"`
}

// StatusEntry はコンサルテーションのステータス変更履歴の1エントリ
type StatusEntry struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

// MD5UniqueID はタイトルとURL（クエリパラメータ除去済み）からMD5ベースの
// 重複排除キーを生成する。Treasury AUコンサルテーションの識別方式。
//
// URLのクエリパラメータを除去するのは、トラッキングパラメータの変化で
// 同一コンサルテーションが別物と判定されるのを防ぐため。
func MD5UniqueID(title, pageURL string) string {
	path := pageURL
	if i := strings.Index(path, "?"); i != -1 {
		path = path[:i]
	}
	sum := md5.Sum([]byte(title + "_" + path))
	return hex.EncodeToString(sum[:])
}

// SHA256ContentKey は正規化済みタイトル+公開日からSHA-256ベースの
// 重複排除キーを生成する。URLが不安定なフィード向けの識別方式。
func SHA256ContentKey(title, publishedAt string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(title), " "))
	sum := sha256.Sum256([]byte(norm + "|" + publishedAt))
	return hex.EncodeToString(sum[:])
}

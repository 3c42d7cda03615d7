// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはスクレイパー全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - 文字列操作: 空白正規化、切り詰め
//   - URL操作: 相対URLの解決
//   - データ重複排除: キーベースのRecord重複削除
//
// =============================================================================
package scrape

import (
	"net/url"
	"strings"
)

// normalizeWhitespace は文字列内の連続する空白を単一スペースに正規化する
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// uniqStrings は文字列スライスから重複と空文字列を除去する
func uniqStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// uniqueRecordsByKey はDedupKeyに基づいてRecordの重複を除去する
//
// 同じキーのレコードが複数回収集された場合、最初に出現したものだけを残す。
// URLもUniqueIDも空のレコードは除外される。
func uniqueRecordsByKey(in []Record) []Record {
	seen := map[string]bool{}
	out := make([]Record, 0, len(in))
	for _, r := range in {
		key := r.DedupKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// resolveURL は相対URLを絶対URLに変換
//
// ベースURLと相対URL（href）から完全な絶対URLを生成する。
// 既に絶対URLの場合はそのまま返す。エラー時は空文字列。
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// truncateString は文字列を指定した長さに切り詰める
//
// maxLen文字を超える場合、末尾に"..."を付けて切り詰める。
// 日本語などのマルチバイト文字も正しく処理する（runeを使用）。
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

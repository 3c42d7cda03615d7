// =============================================================================
// documents.go - 添付文書のダウンロードとテキスト抽出
// =============================================================================
//
// このファイルは記事に添付されたPDF/CSV/XLSXのダウンロードとテキスト抽出を
// 提供します。
//
// 【失敗時の方針】
//   文書抽出の失敗は記事全体の取得失敗にしない。404やPDF破損の場合は
//   Textを空文字列にしたDocumentExtractを返し、実行を継続する。
//
// 【PDF破損の検出】
//   政府系サイトは差し替え中のPDFや壊れたPDFを配信することがあるため、
//   パース前に %PDF- マジックバイトと最小サイズを確認する。
//
// =============================================================================
package scrape

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// minPDFSize はこれ未満のPDFを破損とみなすバイト数
const minPDFSize = 100

// maxDocumentTextChars は1文書あたりの抽出テキスト上限
const maxDocumentTextChars = 200_000

// FetchDocument は文書URLをダウンロードしてテキストを抽出する
//
// 拡張子とContent-Typeから形式を判定する。抽出に失敗した場合でも
// エラーは返さず、Textが空のDocumentExtractを返す。
func (c *Client) FetchDocument(docURL string) DocumentExtract {
	out := DocumentExtract{URL: docURL}

	data, contentType, err := c.Get(docURL)
	if err != nil {
		logger.Warn("document download failed", "url", docURL, "err", err)
		return out
	}
	out.ContentType = contentType

	switch {
	case isPDF(docURL, contentType, data):
		text, err := extractPDFText(data)
		if err != nil {
			logger.Warn("PDF extraction failed", "url", docURL, "err", err)
			return out
		}
		out.Text = text
	case hasExt(docURL, ".csv") || strings.Contains(contentType, "text/csv"):
		text, err := extractCSVText(data)
		if err != nil {
			logger.Warn("CSV extraction failed", "url", docURL, "err", err)
			return out
		}
		out.Text = text
	case hasExt(docURL, ".xlsx") || hasExt(docURL, ".xls") || strings.Contains(contentType, "spreadsheet"):
		text, err := extractXLSXText(data)
		if err != nil {
			logger.Warn("spreadsheet extraction failed", "url", docURL, "err", err)
			return out
		}
		out.Text = text
	default:
		logger.Debug("unsupported document type", "url", docURL, "content_type", contentType)
	}

	if len(out.Text) > maxDocumentTextChars {
		out.Text = out.Text[:maxDocumentTextChars]
	}
	return out
}

// FetchDocuments は複数の文書URLを順に取得する
func (c *Client) FetchDocuments(docURLs []string) []DocumentExtract {
	var out []DocumentExtract
	for _, u := range docURLs {
		out = append(out, c.FetchDocument(u))
	}
	return out
}

func hasExt(rawURL, ext string) bool {
	lower := strings.ToLower(rawURL)
	if i := strings.Index(lower, "?"); i != -1 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ext)
}

// isPDF はURL・Content-Type・マジックバイトのいずれかからPDFと判定する
func isPDF(rawURL, contentType string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return true
	}
	return hasExt(rawURL, ".pdf") || strings.Contains(contentType, "application/pdf")
}

// extractPDFText はPDFバイト列から全ページのテキストを抽出する
func extractPDFText(data []byte) (string, error) {
	// 破損チェック: サイズとマジックバイト
	if len(data) < minPDFSize {
		return "", fmt.Errorf("PDF too small (%d bytes), likely corrupt", len(data))
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("missing %%PDF- header, not a PDF")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 1ページの失敗で全体を捨てない
			logger.Debug("PDF page extraction failed", "page", i, "err", err)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// extractCSVText はCSVバイト列をタブ区切りの行テキストに変換する
func extractCSVText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // 行ごとの列数揺れを許容
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parsing CSV: %w", err)
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "\t"))
	}
	return strings.Join(lines, "\n"), nil
}

// extractXLSXText はExcelワークブックの全シートをタブ区切りテキストに変換する
func extractXLSXText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Debug("sheet read failed", "sheet", sheet, "err", err)
			continue
		}
		b.WriteString("# " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

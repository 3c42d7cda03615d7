// =============================================================================
// store.go - 重複排除マージストア
// =============================================================================
//
// このファイルはエージェンシーごとのJSONスナップショットファイルに対する
// 「読み込み → キー和集合マージ → アトミック書き戻し」を提供します。
//
// 【設計方針】
//   - マージはDedupKey（UniqueIDまたはURL）をキーとする集合和。
//     既知キーの新レコードは原則無視する（再実行しても増えない＝冪等）。
//   - コンサルテーションのようにステータスが変わるレコードだけは例外で、
//     ステータス差分を検出してレコードを更新しStatusHistoryに追記する。
//   - 書き込みは一時ファイル + os.Rename によるアトミック置換。
//     途中クラッシュで既存スナップショットが壊れることはない。
//   - 既存ファイルのJSONデコード失敗時は黙って捨てずに
//     <path>.corrupt-<timestamp> へ退避してから空状態で開始する。
//
// =============================================================================
package scrape

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var storeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Store はエージェンシー1つ分のJSONスナップショットファイルを管理する
type Store struct {
	// Path はJSONスナップショットのパス（例: data/accc_all_news.json）
	Path string

	// CSVPath が空でない場合、保存時にCSVミラーも書き出す
	CSVPath string
}

// NewStore はdata/<name>.json（とCSVミラー）のストアを生成する
func NewStore(dataDir, name string, withCSV bool) *Store {
	s := &Store{Path: filepath.Join(dataDir, name+".json")}
	if withCSV {
		s.CSVPath = filepath.Join(dataDir, name+".csv")
	}
	return s
}

// Load は既存スナップショットを読み込む。
//
// ファイルが存在しない場合は空スライスを返す。デコードに失敗した場合は
// 破損ファイルを退避してから空スライスを返す（過去データの黙殺はしない）。
func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", s.Path, err)
	}

	var records []Record
	if err := storeJSON.Unmarshal(data, &records); err != nil {
		backup := s.Path + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
		if renameErr := os.Rename(s.Path, backup); renameErr != nil {
			return nil, fmt.Errorf("store %s is corrupt (%v) and could not be preserved: %w", s.Path, err, renameErr)
		}
		logger.Error("store file is corrupt, preserved and starting fresh", "path", s.Path, "backup", backup, "err", err)
		return nil, nil
	}
	return records, nil
}

// KeySet は既存レコードのDedupKey集合を返す（収集前の既知判定用）
func (s *Store) KeySet() (map[string]bool, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(existing))
	for _, r := range existing {
		keys[r.DedupKey()] = true
	}
	return keys, nil
}

// MergeResult はマージの内訳
type MergeResult struct {
	Total         int
	Added         int
	Updated       int
	StatusChanges int
	Skipped       int
}

// Merge は既存レコードと新規レコードのキー和集合を計算する
//
// 既知キーの新レコードは無視される。例外はステータス追跡レコード:
// Statusが変わっていた場合は既存レコードを更新し、StatusHistoryに
// 新ステータスを追記する（UniqueIDは不変）。
//
// 結果はScrapedAt降順でソートされる。
func Merge(existing, incoming []Record) ([]Record, MergeResult) {
	res := MergeResult{}
	merged := make([]Record, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.DedupKey()] = i
	}

	now := time.Now().Format(time.RFC3339)
	for _, rec := range incoming {
		key := rec.DedupKey()
		if key == "" {
			continue
		}
		i, known := index[key]
		if !known {
			if rec.Status != "" && len(rec.StatusHistory) == 0 {
				rec.StatusHistory = []StatusEntry{{Status: rec.Status, Date: now}}
				rec.LastStatusCheck = now
			}
			index[key] = len(merged)
			merged = append(merged, rec)
			res.Added++
			continue
		}

		// 既知キー: ステータス追跡レコードのみ更新対象
		if rec.Status != "" && rec.Status != merged[i].Status {
			old := merged[i]
			updated := rec
			updated.UniqueID = old.UniqueID
			updated.ScrapedAt = old.ScrapedAt
			updated.StatusHistory = append(old.StatusHistory, StatusEntry{Status: rec.Status, Date: now})
			updated.LastStatusCheck = now
			// ステータスのみの更新で本文が取れていない場合は既存本文を保持
			if updated.Body == "" {
				updated.Body = old.Body
				updated.Documents = old.Documents
				updated.RelatedLinks = old.RelatedLinks
			}
			merged[i] = updated
			res.Updated++
			res.StatusChanges++
			continue
		}
		if rec.Status != "" {
			merged[i].LastStatusCheck = now
		}
		res.Skipped++
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].ScrapedAt > merged[b].ScrapedAt
	})
	res.Total = len(merged)
	return merged, res
}

// Save はレコード全体をアトミックに書き戻す
//
// 同一ディレクトリ内の一時ファイルに書いてからRenameする。
// CSVPathが設定されていればCSVミラーも出力する。
func (s *Store) Save(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	data, err := storeJSON.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing store: %w", err)
	}

	if s.CSVPath != "" {
		if err := writeCSVMirror(s.CSVPath, records); err != nil {
			// CSVミラーはベストエフォート（JSONが正）
			logger.Warn("CSV mirror write failed", "path", s.CSVPath, "err", err)
		}
	}
	return nil
}

// MergeAndSave はLoad→Merge→Saveをまとめて行う便利メソッド
func (s *Store) MergeAndSave(incoming []Record) (MergeResult, error) {
	existing, err := s.Load()
	if err != nil {
		return MergeResult{}, err
	}
	merged, res := Merge(existing, incoming)
	if err := s.Save(merged); err != nil {
		return res, err
	}
	return res, nil
}

// writeCSVMirror はリスト/構造体フィールドを文字列に平坦化してCSV出力する
func writeCSVMirror(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"agency", "url", "title", "published_date", "scraped_date", "status", "summary", "content", "related_links", "document_urls"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		docURLs := make([]string, 0, len(r.Documents))
		for _, d := range r.Documents {
			docURLs = append(docURLs, d.URL)
		}
		row := []string{
			r.Agency, r.URL, r.Title, r.PublishedAt, r.ScrapedAt, r.Status,
			r.Summary, truncateString(r.Body, 30000),
			strings.Join(r.RelatedLinks, "; "),
			strings.Join(docURLs, "; "),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// =============================================================================
// registry.go - エージェンシーレジストリと実行オーケストレーション
// =============================================================================
//
// このファイルは全エージェンシースクレイパーの登録と、選択された
// エージェンシー群の実行（収集 → 重複排除 → マージ → 保存）を提供します。
//
// 【新しいエージェンシーの追加手順】
//   1. sources_*.go に collectXxx 関数を実装
//   2. 下のsourcesマップにSourceエントリを追加
//   これだけでCLIの -agencies フラグとLambdaから利用可能になる。
//
// 【エラー処理の方針】
//   1エージェンシーの失敗は他エージェンシーの実行を止めない。
//   エラーはRunResult.Errorsに集約し、呼び出し側（CLI/Lambda）が
//   まとめて報告する。
//
// =============================================================================
package scrape

import (
	"fmt"
	"sort"
	"time"
)

// rbnzDelay はRBNZの公開レート上限（292リクエスト/時）から計算したディレイ
var rbnzDelay = time.Hour / 292

// Runtime はコレクタ関数に渡す実行時依存の束
type Runtime struct {
	// Client はこのエージェンシー用に設定済みのHTTPクライアント
	Client *Client

	// Browser はヘッドレスChromeセッション（NeedsBrowser=trueの場合のみ非nil）
	Browser *Browser

	// Known は既存ストアのDedupKey集合。コレクタは既知キーの
	// 詳細ページ取得をスキップできる（増分実行の要）。
	Known map[string]bool

	// PageCap は一覧ページの取得上限
	PageCap int

	// FetchDocs がfalseの場合、添付文書のダウンロードを省略する
	FetchDocs bool
}

// IsKnown はキーが既存ストアに存在するかを返す
func (rt *Runtime) IsKnown(key string) bool {
	return rt.Known[key]
}

// CollectorFunc は1エージェンシー分のレコードを収集する関数
type CollectorFunc func(rt *Runtime) ([]Record, error)

// Source は登録済みエージェンシー1件の定義
type Source struct {
	// Key はCLI/設定ファイルで使う安定キー（例: "treasury-au"）
	Key string

	// Name は表示用のエージェンシー名
	Name string

	// StoreName はデータファイルのベース名（data/<StoreName>.json）
	StoreName string

	// NeedsBrowser がtrueの場合、ヘッドレスChromeを起動してRuntimeに渡す
	NeedsBrowser bool

	// Delay はこのエージェンシーのリクエスト間ディレイ（0ならデフォルト1秒）
	Delay time.Duration

	// UserAgent が空でない場合、共通UAの代わりに使用する
	UserAgent string

	// Collect は収集関数本体
	Collect CollectorFunc
}

// sources は全エージェンシーのレジストリ
//
// 各Collect関数は sources_*.go に実装されている。
var sources = map[string]Source{
	"accc": {
		Key: "accc", Name: "ACCC",
		StoreName: "accc_all_news",
		Collect:   collectACCC,
	},
	"acma": {
		Key: "acma", Name: "ACMA",
		StoreName: "acma_all_content",
		Collect:   collectACMA,
	},
	"ahpra": {
		Key: "ahpra", Name: "AHPRA",
		StoreName: "ahpra_news",
		Collect:   collectAHPRA,
	},
	"apra": {
		Key: "apra", Name: "APRA",
		StoreName: "apra_news",
		Collect:   collectAPRA,
	},
	"asic-media": {
		Key: "asic-media", Name: "ASIC media releases",
		StoreName: "asic_media_releases",
		Collect:   collectASICMedia,
	},
	"asic-consultations": {
		Key: "asic-consultations", Name: "ASIC consultations",
		StoreName:    "asic_consultations",
		NeedsBrowser: true,
		Collect:      collectASICConsultations,
	},
	"austrac": {
		Key: "austrac", Name: "AUSTRAC",
		StoreName: "austrac_media",
		Collect:   collectAUSTRAC,
	},
	"bis": {
		Key: "bis", Name: "BIS",
		StoreName: "bis_news",
		Collect:   collectBIS,
	},
	"fsa-japan": {
		Key: "fsa-japan", Name: "FSA Japan",
		StoreName: "fsa_news",
		Collect:   collectFSAJapan,
	},
	"mas": {
		Key: "mas", Name: "MAS",
		StoreName: "mas_news",
		Collect:   collectMAS,
	},
	"nhvr": {
		Key: "nhvr", Name: "NHVR",
		StoreName: "nhvr_media_releases",
		Collect:   collectNHVR,
	},
	"nz-legislation": {
		Key: "nz-legislation", Name: "NZ Legislation",
		StoreName:    "nz_legislation",
		NeedsBrowser: true,
		Collect:      collectNZLegislation,
	},
	"oaic": {
		Key: "oaic", Name: "OAIC",
		StoreName:    "oaic_media_releases",
		NeedsBrowser: true,
		Collect:      collectOAIC,
	},
	"osfi": {
		Key: "osfi", Name: "OSFI",
		StoreName:    "osfi_news",
		NeedsBrowser: true,
		Collect:      collectOSFI,
	},
	"rba": {
		Key: "rba", Name: "RBA",
		StoreName: "rba_all_news",
		Collect:   collectRBA,
	},
	"rba-rdp": {
		Key: "rba-rdp", Name: "RBA research discussion papers",
		StoreName: "rba_rdp",
		Collect:   collectRBARDP,
	},
	"rbnz": {
		Key: "rbnz", Name: "RBNZ",
		StoreName: "rbnz_news",
		Delay:     rbnzDelay,
		UserAgent: "rbnz-approved-agent/rg-11701",
		Collect:   collectRBNZ,
	},
	"treasury-au": {
		Key: "treasury-au", Name: "Treasury AU consultations",
		StoreName:    "treasuryAU_consultations",
		NeedsBrowser: true,
		Collect:      collectTreasuryAU,
	},
	"treasury-nz": {
		Key: "treasury-nz", Name: "Treasury NZ",
		StoreName: "treasuryNZ_news",
		Collect:   collectTreasuryNZ,
	},
}

// SourceKeys は登録済みエージェンシーキーをソート済みで返す
func SourceKeys() []string {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupSource はキーからSourceを引く
func LookupSource(key string) (Source, bool) {
	s, ok := sources[key]
	return s, ok
}

// AgencyResult は1エージェンシー実行の結果
type AgencyResult struct {
	Key       string
	Collected int
	Merge     MergeResult
	Err       error
}

// RunResult は複数エージェンシー実行の集約結果
type RunResult struct {
	Results []AgencyResult

	// Errors は実行中に発生した全エラーの文字列表現
	Errors []string
}

// HasErrors は1件以上のエラーが発生したかを返す
func (r *RunResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RunAgencies は指定されたエージェンシー群を順に実行する
//
// 各エージェンシーについて: ストア読み込み → 収集 → 重複排除 →
// マージ → アトミック保存。1件の失敗は残りの実行を止めない。
// ヘッドレスブラウザは必要になった時点で1度だけ起動し、全体で共有する。
func RunAgencies(keys []string, cfg *Config) *RunResult {
	result := &RunResult{}

	var browser *Browser
	defer func() {
		if browser != nil {
			browser.Close()
		}
	}()

	for _, key := range keys {
		src, ok := sources[key]
		if !ok {
			err := fmt.Errorf("unknown agency %q (registered: %v)", key, SourceKeys())
			logger.Error("skipping unknown agency", "key", key)
			result.Results = append(result.Results, AgencyResult{Key: key, Err: err})
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if ov, ok := cfg.File.Agencies[key]; ok && ov.Disabled {
			logger.Info("agency disabled in config, skipping", "agency", key)
			continue
		}

		if src.NeedsBrowser && browser == nil {
			browser = NewBrowser(browserUserAgent(cfg))
		}

		res := runOne(src, cfg, browser)
		result.Results = append(result.Results, res)
		if res.Err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, res.Err))
		}
	}
	return result
}

// runOne は1エージェンシー分の収集・マージ・保存を行う
func runOne(src Source, cfg *Config, browser *Browser) AgencyResult {
	res := AgencyResult{Key: src.Key}
	start := time.Now()
	logger.Info("scraping agency", "agency", src.Key, "name", src.Name)

	store := NewStore(cfg.DataDir, src.StoreName, cfg.CSVMirror)
	known, err := store.KeySet()
	if err != nil {
		res.Err = fmt.Errorf("loading store: %w", err)
		return res
	}

	rt := &Runtime{
		Client:    newAgencyClient(src, cfg),
		Browser:   browser,
		Known:     known,
		PageCap:   cfg.PageCap(src.Key),
		FetchDocs: cfg.FetchDocs,
	}

	records, err := src.Collect(rt)
	records = uniqueRecordsByKey(records)
	res.Collected = len(records)
	if err != nil {
		// 部分的に収集できたレコードは保存してからエラーを報告する
		res.Err = err
		logger.Error("collection failed", "agency", src.Key, "collected", len(records), "err", err)
	}
	if len(records) == 0 && err != nil {
		return res
	}

	merge, saveErr := store.MergeAndSave(records)
	res.Merge = merge
	if saveErr != nil {
		if res.Err == nil {
			res.Err = saveErr
		}
		logger.Error("store save failed", "agency", src.Key, "err", saveErr)
		return res
	}

	logger.Info("agency done",
		"agency", src.Key,
		"collected", res.Collected,
		"added", merge.Added,
		"updated", merge.Updated,
		"total", merge.Total,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res
}

// newAgencyClient はエージェンシー定義と設定上書きからHTTPクライアントを組む
func newAgencyClient(src Source, cfg *Config) *Client {
	delay := src.Delay
	if delay == 0 {
		delay = time.Second
	}
	if ov, ok := cfg.File.Agencies[src.Key]; ok && ov.DelayMS > 0 {
		delay = time.Duration(ov.DelayMS) * time.Millisecond
	}

	opts := []ClientOption{
		WithDelay(delay),
		WithRetryPolicy(cfg.File.Retry),
	}
	switch {
	case src.UserAgent != "":
		opts = append(opts, WithUserAgent(src.UserAgent))
	case cfg.File.UserAgent != "":
		opts = append(opts, WithUserAgent(cfg.File.UserAgent))
	}
	if cfg.File.CheckRobots {
		opts = append(opts, WithRobotsCheck())
	}
	return NewClient(opts...)
}

func browserUserAgent(cfg *Config) string {
	if cfg.File.UserAgent != "" {
		return cfg.File.UserAgent
	}
	return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
}

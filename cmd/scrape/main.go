// =============================================================================
// main.go - regpulse CLIエントリーポイント
// =============================================================================
//
// 規制当局サイトのスクレイパーをまとめて実行するCLIです。
//
// 【使用例】
//   go run ./cmd/scrape                          # 全エージェンシーをフル実行
//   go run ./cmd/scrape -daily                   # 増分実行（一覧2ページまで）
//   go run ./cmd/scrape -agencies accc,rba -csv  # 対象を絞ってCSVミラー付き
//   go run ./cmd/scrape -config scrape.yaml      # YAMLでエージェンシー別設定
//
// 出力は data/<agency>_*.json（エージェンシーごとに1ファイル）。
// 終了コード: 全エージェンシー成功で0、1件でも失敗すれば1。
//
// =============================================================================
package main

import (
	"os"

	"github.com/joho/godotenv"

	"regpulse/internal/scrape"
)

func main() {
	// .envファイルから環境変数を読み込む（存在しなくてもエラーにしない）
	_ = godotenv.Load()

	cfg := scrape.ParseFlags()
	scrape.SetDebug(cfg.Debug)

	logFile := scrape.OpenLogFile(cfg.DataDir)
	if logFile != nil {
		defer logFile.Close()
	}

	logger := scrape.Logger()
	agencies := cfg.Agencies()
	logger.Info("starting scrape run",
		"agencies", len(agencies),
		"daily", cfg.Daily,
		"data", cfg.DataDir)

	result := scrape.RunAgencies(agencies, cfg)

	ok := 0
	for _, r := range result.Results {
		if r.Err == nil {
			ok++
		}
	}
	logger.Info("scrape run finished",
		"succeeded", ok,
		"failed", len(result.Results)-ok,
		"errors", len(result.Errors))

	if result.HasErrors() {
		for _, e := range result.Errors {
			logger.Error(e)
		}
		os.Exit(1)
	}
}

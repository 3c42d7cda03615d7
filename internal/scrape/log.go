// =============================================================================
// log.go - ロガー設定
// =============================================================================
//
// 各スクレイパーはコンソール（stderr）とdata/配下のログファイルの両方に
// ログを出力する。stdoutはJSON出力専用のため使用しない。
//
// =============================================================================
package scrape

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// logger はパッケージ全体で共有するロガー（デフォルト: stderr）
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "regpulse",
})

// Logger は共有ロガーを返す（cmd側から同じロガーを使うため）
func Logger() *log.Logger {
	return logger
}

// SetDebug はデバッグレベルのログ出力を有効にする
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// OpenLogFile はログ出力先をstderrとファイルの両方に切り替える。
// 返ってきたクローザは実行終了時に閉じること。
// ファイルが開けない場合はstderrのみにフォールバックする。
func OpenLogFile(dataDir string) io.Closer {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Warn("cannot create data dir for log file", "dir", dataDir, "err", err)
		return nil
	}
	path := filepath.Join(dataDir, "scraper.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("cannot open log file, logging to stderr only", "path", path, "err", err)
		return nil
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return f
}

// =============================================================================
// config.go - スクレイパー設定
// =============================================================================
//
// このファイルはCLIフラグの解析とYAML設定ファイルの読み込みを行います。
//
// 【設定の優先順位】
//   CLIフラグ > YAML設定ファイル > エージェンシー定義のデフォルト
//
// 【YAML設定ファイルの例】
//
//   user_agent: "Mozilla/5.0 ..."
//   check_robots: true
//   retry:
//     max_attempts: 3
//     initial_delay_ms: 1000
//     max_delay_ms: 30000
//     backoff_multiplier: 2.0
//   agencies:
//     rbnz:
//       delay_ms: 12329   # 292 req/h
//     treasury-au:
//       max_pages: 5
//
// =============================================================================
package scrape

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config はスクレイパー実行の全設定を保持する
type Config struct {
	// AgenciesRaw はカンマ区切りのエージェンシーキー（"all"で全件）
	AgenciesRaw string

	// MaxPages は一覧ページの取得上限（0 = モードのデフォルトに従う）
	MaxPages int

	// Daily がtrueの場合は増分モード（一覧2ページまで）で実行する
	Daily bool

	// DataDir は出力先ディレクトリ
	DataDir string

	// CSVMirror がtrueの場合、JSONに加えてCSVミラーを出力する
	CSVMirror bool

	// FetchDocs がfalseの場合、添付PDF/CSV/XLSXのダウンロードを省略する
	FetchDocs bool

	// ConfigFile はYAML設定ファイルのパス（任意）
	ConfigFile string

	// Debug がtrueの場合、デバッグログを出力する
	Debug bool

	// File はYAML設定ファイルの内容
	File FileConfig
}

// FileConfig はYAML設定ファイルの構造
type FileConfig struct {
	UserAgent   string                    `yaml:"user_agent"`
	CheckRobots bool                      `yaml:"check_robots"`
	Retry       RetryPolicy               `yaml:"retry"`
	Agencies    map[string]AgencyOverride `yaml:"agencies"`
}

// AgencyOverride はエージェンシー単位の設定上書き
type AgencyOverride struct {
	DelayMS  int  `yaml:"delay_ms"`
	MaxPages int  `yaml:"max_pages"`
	Disabled bool `yaml:"disabled"`
}

// dailyModePageCap は増分モードでの一覧ページ取得上限
const dailyModePageCap = 2

// fullModePageCap はフルモードでの安全上限（無限ページネーション対策）
const fullModePageCap = 200

// ParseFlags はCLIフラグを解析してConfigを返す
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.AgenciesRaw, "agencies", "all", "comma-separated agency keys to scrape (\"all\" for every registered agency)")
	flag.IntVar(&cfg.MaxPages, "maxPages", 0, "max listing pages per agency (0 = mode default)")
	flag.BoolVar(&cfg.Daily, "daily", false, "incremental mode: only the first listing pages, rely on dedup for the rest")
	flag.StringVar(&cfg.DataDir, "data", "data", "output directory for JSON snapshots and logs")
	flag.BoolVar(&cfg.CSVMirror, "csv", false, "also write a CSV mirror next to each JSON snapshot")
	flag.BoolVar(&cfg.FetchDocs, "docs", true, "download and extract linked PDF/CSV/XLSX documents")
	flag.StringVar(&cfg.ConfigFile, "config", "", "optional: YAML config file with per-agency overrides")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	flag.Parse()

	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(); err != nil {
			logger.Fatal("cannot load config file", "path", cfg.ConfigFile, "err", err)
		}
	}
	if cfg.File.Retry.MaxAttempts == 0 {
		cfg.File.Retry = DefaultRetryPolicy()
	}
	return cfg
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &c.File); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// Agencies はAgenciesRawをパースしてエージェンシーキーのリストを返す
//
// "all"（または空）の場合は登録済み全エージェンシーに展開する。
func (c *Config) Agencies() []string {
	raw := strings.TrimSpace(strings.ToLower(c.AgenciesRaw))
	if raw == "" || raw == "all" {
		return SourceKeys()
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PageCap はエージェンシーに適用する一覧ページ上限を返す
func (c *Config) PageCap(agencyKey string) int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	if ov, ok := c.File.Agencies[agencyKey]; ok && ov.MaxPages > 0 {
		return ov.MaxPages
	}
	if c.Daily {
		return dailyModePageCap
	}
	return fullModePageCap
}

// =============================================================================
// Lambda: collect-regulatory
// =============================================================================
//
// 全エージェンシーから規制ニュース・コンサルテーションを収集し、
// JSONストアにマージするLambda関数。EventBridgeのスケジュールから
// 日次で起動する想定（増分モード）。
//
// 環境変数:
//   - AGENCIES:       収集するエージェンシー (カンマ区切り、デフォルト: all)
//   - MAX_PAGES:      一覧ページの取得上限 (デフォルト: モードに従う)
//   - FULL_SCRAPE:    "true"でフルスクレイプ (デフォルト: 増分)
//   - DATA_DIR:       データディレクトリ (デフォルト: /tmp/data)
//   - CSV_MIRROR:     "true"でCSVミラーも出力
//   - EMAIL_FROM:     エラー通知メール送信元 (任意)
//   - EMAIL_PASSWORD: Gmailアプリパスワード (任意)
//   - EMAIL_TO:       エラー通知メール送信先 (任意)
//
// 注意: Lambdaの/tmpは揮発性のため、恒久ストアにする場合は
// EFSマウントかS3同期を前面に置くこと。
//
// =============================================================================
package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"regpulse/internal/scrape"
)

// LambdaConfig は環境変数から読み込む設定
type LambdaConfig struct {
	Agencies      string
	MaxPages      int
	FullScrape    bool
	DataDir       string
	CSVMirror     bool
	EmailFrom     string // エラー通知用（任意）
	EmailPassword string // エラー通知用（任意）
	EmailTo       string // エラー通知用（任意）
}

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Agencies   int    `json:"agencies"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Errors     int    `json:"errors"`
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event interface{}) (Response, error) {
	logger := scrape.Logger()
	logger.Info("starting collect-regulatory Lambda")

	env := loadConfig()

	cfg := &scrape.Config{
		AgenciesRaw: env.Agencies,
		MaxPages:    env.MaxPages,
		Daily:       !env.FullScrape,
		DataDir:     env.DataDir,
		CSVMirror:   env.CSVMirror,
		FetchDocs:   true,
	}
	cfg.File.Retry = scrape.DefaultRetryPolicy()

	agencies := cfg.Agencies()
	result := scrape.RunAgencies(agencies, cfg)

	added, updated := 0, 0
	for _, r := range result.Results {
		added += r.Merge.Added
		updated += r.Merge.Updated
	}

	if result.HasErrors() {
		logger.Warn("agencies failed", "count", len(result.Errors))
		for _, e := range result.Errors {
			logger.Error(e)
		}
		sendErrorNotification(env, result)
	}

	msg := "scrape completed"
	if result.HasErrors() {
		msg = "scrape completed with errors"
	}
	return Response{
		StatusCode: 200,
		Message:    msg,
		Agencies:   len(agencies),
		Added:      added,
		Updated:    updated,
		Errors:     len(result.Errors),
	}, nil
}

// loadConfig は環境変数からLambda設定を読み込む
func loadConfig() LambdaConfig {
	cfg := LambdaConfig{
		Agencies:      "all",
		DataDir:       "/tmp/data",
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		EmailPassword: os.Getenv("EMAIL_PASSWORD"),
		EmailTo:       os.Getenv("EMAIL_TO"),
	}
	if a := os.Getenv("AGENCIES"); a != "" {
		cfg.Agencies = a
	}
	if mp := os.Getenv("MAX_PAGES"); mp != "" {
		if n, err := strconv.Atoi(mp); err == nil && n > 0 {
			cfg.MaxPages = n
		}
	}
	if d := os.Getenv("DATA_DIR"); d != "" {
		cfg.DataDir = d
	}
	cfg.FullScrape = strings.EqualFold(os.Getenv("FULL_SCRAPE"), "true")
	cfg.CSVMirror = strings.EqualFold(os.Getenv("CSV_MIRROR"), "true")
	return cfg
}

// sendErrorNotification はエラーサマリーをメール送信する（設定時のみ）
func sendErrorNotification(env LambdaConfig, result *scrape.RunResult) {
	logger := scrape.Logger()
	if env.EmailFrom == "" || env.EmailPassword == "" || env.EmailTo == "" {
		logger.Info("email notification not configured, skipping")
		return
	}
	sender, err := scrape.NewEmailSender(env.EmailFrom, env.EmailPassword, env.EmailTo)
	if err != nil {
		logger.Warn("email sender init failed", "err", err)
		return
	}
	if err := sender.SendErrorSummary(result); err != nil {
		logger.Warn("error notification failed", "err", err)
		return
	}
	logger.Info("error notification sent")
}

func main() {
	lambda.Start(Handler)
}

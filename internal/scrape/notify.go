// =============================================================================
// notify.go - エラー通知メール
// =============================================================================
//
// このファイルはスクレイプ実行で発生したエラーのサマリーをSMTP経由で
// 送信する機能を提供します。Lambdaのスケジュール実行で使用され、
// エラーゼロの場合はメールを送りません。
//
// 【必要な環境変数】
//   EMAIL_FROM     - 送信元メールアドレス（Gmail）
//   EMAIL_PASSWORD - Gmailアプリパスワード（通常のパスワードではない！）
//   EMAIL_TO       - 送信先メールアドレス（カンマ区切りで複数可）
//
// 環境変数が未設定の場合、通知は無効（ログのみ）になる。
//
// =============================================================================
package scrape

import (
	"fmt"
	"math"
	"net/smtp"
	"strings"
	"time"
)

// EmailConfig はメール送信の設定を保持する
type EmailConfig struct {
	From     string   // 送信元メールアドレス
	Password string   // Gmailアプリパスワード
	To       []string // 送信先メールアドレス（複数可）
	SMTPHost string   // SMTPサーバーホスト（"smtp.gmail.com"）
	SMTPPort string   // SMTPポート（"587"）
}

// EmailSender はエラーサマリーメールの送信を担当する
type EmailSender struct {
	config EmailConfig
}

// NewEmailSender は新しいメール送信者を作成する
//
// 【注意】通常のGmailパスワードは使用できません。
// 必ずアプリパスワードを使用してください。
func NewEmailSender(from, password, to string) (*EmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required")
	}
	if password == "" {
		return nil, fmt.Errorf("EMAIL_PASSWORD is required (use Gmail App Password)")
	}
	if to == "" {
		return nil, fmt.Errorf("EMAIL_TO is required")
	}

	toList := strings.Split(to, ",")
	for i, addr := range toList {
		toList[i] = strings.TrimSpace(addr)
	}

	return &EmailSender{
		config: EmailConfig{
			From:     from,
			Password: password,
			To:       toList,
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "587", // TLSポート
		},
	}, nil
}

// SendErrorSummary はスクレイプ実行のエラーサマリーを送信する
//
// エラーがない場合は何もしない。
func (es *EmailSender) SendErrorSummary(result *RunResult) error {
	if !result.HasErrors() {
		return nil
	}

	subject := fmt.Sprintf("regpulse scrape errors - %s (%d errors)",
		time.Now().Format("2006-01-02"),
		len(result.Errors))

	msg := es.buildEmailMessage(subject, generateErrorBody(result))
	return es.sendWithRetry(msg)
}

// generateErrorBody はプレーンテキストのエラーサマリー本文を生成する
func generateErrorBody(result *RunResult) string {
	var sb strings.Builder

	sb.WriteString("Regulatory Scrape Error Summary\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString("========================================\n")
	sb.WriteString(fmt.Sprintf("Total Errors: %d\n", len(result.Errors)))
	sb.WriteString("========================================\n\n")

	for i, e := range result.Errors {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, e))
	}

	sb.WriteString("Per-agency results:\n")
	for _, r := range result.Results {
		status := "ok"
		if r.Err != nil {
			status = "FAILED"
		}
		sb.WriteString(fmt.Sprintf("  %-20s %-7s collected=%d added=%d updated=%d total=%d\n",
			r.Key, status, r.Collected, r.Merge.Added, r.Merge.Updated, r.Merge.Total))
	}

	sb.WriteString("\nGenerated by regpulse\n")
	return sb.String()
}

// buildEmailMessage はRFC 5322準拠のメールメッセージを構築する
//
// 注意: ヘッダーと本文は空行（\r\n）で区切る
func (es *EmailSender) buildEmailMessage(subject, body string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", es.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(es.config.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return []byte(msg.String())
}

// sendWithRetry は指数バックオフでリトライしながらメールを送信する
//
// 1回目失敗: 2秒待機、2回目失敗: 4秒待機、3回目失敗: 8秒待機
func (es *EmailSender) sendWithRetry(msg []byte) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			wait := time.Duration(math.Pow(2, float64(i))) * time.Second
			logger.Warn("retrying email send", "wait", wait)
			time.Sleep(wait)
		}

		err := es.send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("email send failed", "attempt", i+1, "max", maxRetries, "err", err)
	}

	return fmt.Errorf("failed to send email after %d retries: %w", maxRetries, lastErr)
}

// send はGmail SMTPを使用してメールを送信する
//
// PLAIN認証を使用。TLS（ポート587）で暗号化される。
func (es *EmailSender) send(msg []byte) error {
	auth := smtp.PlainAuth("", es.config.From, es.config.Password, es.config.SMTPHost)
	addr := es.config.SMTPHost + ":" + es.config.SMTPPort

	if err := smtp.SendMail(addr, auth, es.config.From, es.config.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w (check EMAIL_PASSWORD is a Gmail App Password)", err)
	}
	return nil
}

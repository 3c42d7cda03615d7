// =============================================================================
// browser.go - ヘッドレスブラウザによるページ取得
// =============================================================================
//
// Treasury AUやASICの一覧ページはJavaScriptでコンテンツを描画するため、
// 通常のHTTP GETでは「Loading...」プレースホルダしか取得できない。
// これらのページはchromedp（ヘッドレスChrome）でレンダリングしてから
// HTMLを取り出す。
//
// 【リトライ】
//   描画完了を待ってもプレースホルダのままの場合があるため、
//   readyセレクタの出現待ち + 追加スリープ + 最大3回のリトライを行う。
//
// =============================================================================
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Browser はヘッドレスChromeのセッションを保持する
//
// 1回の実行で複数ページを取得するため、ブラウザ本体は使い回し、
// ページごとに新しいタブコンテキストを作る。
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	userAgent   string
}

// NewBrowser はヘッドレスChromeを起動する
func NewBrowser(userAgent string) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		userAgent:   userAgent,
	}
}

// Close はブラウザを終了する
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// RenderHTML はページを開き、readySelectorの出現を待ってからHTMLを返す
func (b *Browser) RenderHTML(pageURL, readySelector string) (string, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		html, err := b.renderOnce(pageURL, readySelector)
		if err != nil {
			lastErr = err
			logger.Warn("browser render failed", "url", pageURL, "attempt", attempt, "err", err)
			continue
		}

		// 描画待ちがタイムアウトしてもローディング画面のことがある
		if isLoadingPlaceholder(html) {
			lastErr = fmt.Errorf("still showing loading placeholder: %s", pageURL)
			logger.Warn("got loading placeholder, retrying", "url", pageURL, "attempt", attempt)
			time.Sleep(5 * time.Second)
			continue
		}
		return html, nil
	}
	return "", lastErr
}

// RenderDocument はRenderHTMLの結果をgoquery.Documentとして返す
func (b *Browser) RenderDocument(pageURL, readySelector string) (*goquery.Document, error) {
	html, err := b.RenderHTML(pageURL, readySelector)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
}

func (b *Browser) renderOnce(pageURL, readySelector string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, 45*time.Second)
	defer timeoutCancel()

	tasks := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
	}
	if readySelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(readySelector, chromedp.ByQuery))
	}
	// 動的コンテンツの描画完了を待つ追加スリープ
	tasks = append(tasks, chromedp.Sleep(3*time.Second))

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return "", fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	return html, nil
}

// isLoadingPlaceholder は描画前プレースホルダのままのHTMLかどうかを判定する
func isLoadingPlaceholder(html string) bool {
	return len(html) < 5000 &&
		strings.Contains(html, "Loading") &&
		strings.Contains(html, "Slow connection")
}

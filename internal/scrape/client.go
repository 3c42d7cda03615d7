// =============================================================================
// client.go - 共有HTTPクライアント
// =============================================================================
//
// このファイルは全エージェンシースクレイパーで共有するHTTPクライアントを
// 提供します。
//
// 【このファイルで提供する機能】
//   - リトライ+指数バックオフ（403/408/429/5xxと通信エラーが対象）
//   - リクエスト間の礼儀的ディレイ（エージェンシーごとに設定可能）
//   - robots.txtチェック（任意）
//   - 文字コード自動判別（Shift_JISなどの非UTF-8サイト向け）
//   - goquery / JSON / RSSフィードの取得ヘルパー
//
// 【RBNZのレート制限について】
//   RBNZは292リクエスト/時の上限を公開しているため、
//   ディレイは 3600/292 秒 ≒ 12.3秒 に設定する（config.go参照）。
//
// =============================================================================
package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"github.com/mmcdole/gofeed"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

// ErrUnexpectedStatus はリトライ後も解消しなかったHTTPステータスエラー
var ErrUnexpectedStatus = errors.New("unexpected status code")

// ErrRobotsDisallowed はrobots.txtによりアクセスが禁止されているURL
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// maxBodyBytes はレスポンスボディの読み取り上限（PDFダウンロードを考慮して50MB）
const maxBodyBytes = 50 << 20

// RetryPolicy はリトライ動作の設定
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMS    int     `yaml:"initial_delay_ms"`
	MaxDelayMS        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultRetryPolicy は全スクレイパー共通のデフォルト（3回、指数バックオフ）
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMS:    1000,
		MaxDelayMS:        30000,
		BackoffMultiplier: 2.0,
	}
}

// RetryDelay はattempt回目（1始まり）の失敗後に待つ時間を返す
func (p RetryPolicy) RetryDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelayMS)
	for i := 1; i < attempt; i++ {
		delay *= p.BackoffMultiplier
	}
	if p.MaxDelayMS > 0 && delay > float64(p.MaxDelayMS) {
		delay = float64(p.MaxDelayMS)
	}
	return time.Duration(delay) * time.Millisecond
}

// Client は全エージェンシースクレイパー共有のHTTPクライアント
//
// リトライとディレイはClient側で一元管理するため、各ソース実装は
// 単純に c.GetDocument(url) を呼ぶだけでよい。
// 複数goroutineから同時に使用できる（ASICのワーカープール用）。
type Client struct {
	http        *http.Client
	userAgent   string
	retry       RetryPolicy
	delay       time.Duration
	mu          sync.Mutex
	lastRequest time.Time
	robots      map[string]*robotstxt.Group
	checkRobots bool
}

// ClientOption はNewClientに渡す設定関数
type ClientOption func(*Client)

// WithDelay はリクエスト間のディレイを設定する
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.delay = d }
}

// WithRetryPolicy はリトライポリシーを設定する
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

// WithUserAgent はUser-Agentヘッダーを設定する
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithRobotsCheck はrobots.txtチェックを有効にする
func WithRobotsCheck() ClientOption {
	return func(c *Client) { c.checkRobots = true }
}

// WithHTTPClient は下層の*http.Clientを差し替える（テスト用）
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient は共有HTTPクライアントを生成する
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		retry:     DefaultRetryPolicy(),
		delay:     time.Second,
		robots:    map[string]*robotstxt.Group{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// politeWait は前回リクエストからdelay経過するまで待つ
func (c *Client) politeWait() {
	if c.delay <= 0 {
		return
	}
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < c.delay {
		time.Sleep(c.delay - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// allowedByRobots はrobots.txtでアクセスが許可されているかを返す。
// robots.txtの取得やパースに失敗した場合は許可として扱う。
func (c *Client) allowedByRobots(rawURL string) bool {
	if !c.checkRobots {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	c.mu.Lock()
	group, ok := c.robots[u.Host]
	c.mu.Unlock()
	if !ok {
		group = c.fetchRobotsGroup(u)
		c.mu.Lock()
		c.robots[u.Host] = group
		c.mu.Unlock()
	}
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (c *Client) fetchRobotsGroup(u *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	resp, err := c.http.Get(robotsURL)
	if err != nil {
		logger.Debug("robots.txt fetch failed, allowing all", "host", u.Host, "err", err)
		return nil
	}
	defer resp.Body.Close()
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		logger.Debug("robots.txt parse failed, allowing all", "host", u.Host, "err", err)
		return nil
	}
	return data.FindGroup(c.userAgent)
}

// retryableStatus はリトライすべきHTTPステータスコードかどうかを返す
//
// 403は政府系サイトがレートリミット代わりに返すことがあるため対象に含める。
func retryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden,
		http.StatusRequestTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Get は指定URLをGETし、ボディのバイト列とContent-Typeを返す。
//
// リトライポリシーに従い、対象ステータスと通信エラーで指数バックオフ付きの
// リトライを行う。HTMLレスポンスはUTF-8に変換して返す。
func (c *Client) Get(rawURL string) ([]byte, string, error) {
	if !c.allowedByRobots(rawURL) {
		return nil, "", fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		c.politeWait()

		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, c.retry.MaxAttempts, err)
			c.backoff(attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, resp.StatusCode, rawURL)
			if !retryableStatus(resp.StatusCode) {
				return nil, "", lastErr
			}
			c.backoff(attempt)
			continue
		}

		contentType := resp.Header.Get("Content-Type")
		reader := io.Reader(io.LimitReader(resp.Body, maxBodyBytes))

		// HTML/XMLはcharsetを判別してUTF-8に変換する（FSA Japanなど）
		if strings.Contains(contentType, "html") || strings.Contains(contentType, "xml") {
			if utf8Reader, cerr := charset.NewReader(reader, contentType); cerr == nil {
				reader = utf8Reader
			}
		}

		body, err := io.ReadAll(reader)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			c.backoff(attempt)
			continue
		}
		return body, contentType, nil
	}
	return nil, "", lastErr
}

func (c *Client) backoff(attempt int) {
	if attempt < c.retry.MaxAttempts {
		time.Sleep(c.retry.RetryDelay(attempt))
	}
}

// GetDocument は指定URLを取得してgoquery.Documentとして返す
func (c *Client) GetDocument(rawURL string) (*goquery.Document, error) {
	body, _, err := c.Get(rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", rawURL, err)
	}
	return doc, nil
}

// GetJSON は指定URLを取得してJSONをデコードする
func (c *Client) GetJSON(rawURL string, v any) error {
	body, _, err := c.Get(rawURL)
	if err != nil {
		return err
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, v)
}

// GetFeed は指定URLのRSS/Atomフィードを取得してパースする
func (c *Client) GetFeed(feedURL string) (*gofeed.Feed, error) {
	body, _, err := c.Get(feedURL)
	if err != nil {
		return nil, err
	}
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}
	return feed, nil
}

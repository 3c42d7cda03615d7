package scrape

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient returns a client with no politeness delay and fast retries
func testClient(opts ...ClientOption) *Client {
	base := []ClientOption{
		WithDelay(0),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMS:    1,
			MaxDelayMS:        10,
			BackoffMultiplier: 2.0,
		}),
	}
	return NewClient(append(base, opts...)...)
}

func TestGetRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	body, contentType, err := testClient().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, string(body), "ok")
	assert.Contains(t, contentType, "text/html")
}

func TestGetRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer srv.Close()

	_, _, err := testClient().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := testClient().Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, 1, attempts)
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := testClient().Get(srv.URL)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGetSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, _, err := testClient(WithUserAgent("rbnz-approved-agent/rg-11701")).Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "rbnz-approved-agent/rg-11701", gotUA)
}

func TestGetDocumentParsesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><h1 class="page-title">Hello</h1></body></html>`))
	}))
	defer srv.Close()

	doc, err := testClient().GetDocument(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Find("h1.page-title").Text())
}

func TestGetDecodesNonUTF8(t *testing.T) {
	// Shift_JISの「金融庁」
	sjis := []byte{0x8b, 0xe0, 0x97, 0x5a, 0x92, 0xa1}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		w.Write(append([]byte("<html><body>"), append(sjis, []byte("</body></html>")...)...))
	}))
	defer srv.Close()

	body, _, err := testClient().Get(srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "金融庁")
}

func TestGetFeedParsesRSS(t *testing.T) {
	rss := `<?xml version="1.0"?><rss version="2.0"><channel>
		<title>Media Releases</title>
		<item><title>Rate decision</title><link>https://example.org/mr/1</link></item>
	</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	feed, err := testClient().GetFeed(srv.URL)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Rate decision", feed.Items[0].Title)
}

func TestRetryPolicyDelays(t *testing.T) {
	p := RetryPolicy{InitialDelayMS: 1000, MaxDelayMS: 3000, BackoffMultiplier: 2.0}
	assert.Equal(t, time.Second, p.RetryDelay(1))
	assert.Equal(t, 2*time.Second, p.RetryDelay(2))
	// 上限でクリップされる
	assert.Equal(t, 3*time.Second, p.RetryDelay(3))
}

func TestPoliteWaitSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(WithDelay(50 * time.Millisecond))
	start := time.Now()
	_, _, err := c.Get(srv.URL)
	require.NoError(t, err)
	_, _, err = c.Get(srv.URL)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

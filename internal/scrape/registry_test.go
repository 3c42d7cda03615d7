package scrape

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newsSiteServer serves a minimal listing page with two article links
func newsSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><div class="listing">
			<article><h2><a href="/news/first">First release</a></h2></article>
			<article><h2><a href="/news/second">Second release</a></h2></article>
		</div></body></html>`)
	})
	article := func(title string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<html><body><article>
				<h1>%s</h1>
				<time datetime="2026-03-12">12 March 2026</time>
				<p>Body paragraph long enough to pass the extraction threshold check.</p>
			</article></body></html>`, title)
		}
	}
	mux.HandleFunc("/news/first", article("First release"))
	mux.HandleFunc("/news/second", article("Second release"))
	return srv
}

// collectTestSite is a minimal collector following the shared incremental
// pattern, pointed at the test server via the closed-over base URL
func collectTestSite(base string) CollectorFunc {
	return func(rt *Runtime) ([]Record, error) {
		doc, err := rt.Client.GetDocument(base + "/news")
		if err != nil {
			return nil, err
		}
		var records []Record
		doc.Find("article h2 a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			u := resolveURL(base, href)
			if u == "" || rt.IsKnown(u) {
				return
			}
			rec, _, err := scrapeDetail(rt, "test-site", u, detailSpec{
				DateAttr: []string{"time[datetime]"},
				Body:     []string{"article"},
			})
			if err != nil {
				return
			}
			records = append(records, rec)
		})
		return records, nil
	}
}

func registerTestSource(t *testing.T, key string, collect CollectorFunc) {
	t.Helper()
	sources[key] = Source{
		Key: key, Name: "Test site",
		StoreName: key,
		Delay:     time.Millisecond,
		Collect:   collect,
	}
	t.Cleanup(func() { delete(sources, key) })
}

func testRunConfig(t *testing.T) *Config {
	cfg := &Config{
		DataDir:   t.TempDir(),
		FetchDocs: false,
	}
	cfg.File.Retry = RetryPolicy{MaxAttempts: 1, InitialDelayMS: 1, BackoffMultiplier: 1}
	return cfg
}

func TestRunAgenciesCollectsAndMerges(t *testing.T) {
	srv := newsSiteServer(t)
	registerTestSource(t, "test-site", collectTestSite(srv.URL))
	cfg := testRunConfig(t)

	result := RunAgencies([]string{"test-site"}, cfg)
	require.False(t, result.HasErrors())
	require.Len(t, result.Results, 1)

	r := result.Results[0]
	assert.Equal(t, 2, r.Collected)
	assert.Equal(t, 2, r.Merge.Added)

	store := NewStore(cfg.DataDir, "test-site", false)
	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "test-site", rec.Agency)
		assert.Equal(t, "2026-03-12", rec.PublishedAt)
		assert.Contains(t, rec.Body, "Body paragraph")
	}
}

func TestRunAgenciesSecondRunAddsNothing(t *testing.T) {
	srv := newsSiteServer(t)
	registerTestSource(t, "test-site", collectTestSite(srv.URL))
	cfg := testRunConfig(t)

	first := RunAgencies([]string{"test-site"}, cfg)
	require.Equal(t, 2, first.Results[0].Merge.Added)

	// 再実行: 既知URLは詳細を再取得せず、追加ゼロ
	second := RunAgencies([]string{"test-site"}, cfg)
	assert.Equal(t, 0, second.Results[0].Collected)
	assert.Equal(t, 0, second.Results[0].Merge.Added)
	assert.Equal(t, 2, second.Results[0].Merge.Total)
}

func TestRunAgenciesOneKnownOneNew(t *testing.T) {
	srv := newsSiteServer(t)
	registerTestSource(t, "test-site", collectTestSite(srv.URL))
	cfg := testRunConfig(t)

	// 片方だけ既存ストアに入れておく
	store := NewStore(cfg.DataDir, "test-site", false)
	known := testRecord(srv.URL+"/news/first", "First release")
	require.NoError(t, store.Save([]Record{known}))

	result := RunAgencies([]string{"test-site"}, cfg)
	require.False(t, result.HasErrors())
	assert.Equal(t, 1, result.Results[0].Collected)
	assert.Equal(t, 1, result.Results[0].Merge.Added)
	assert.Equal(t, 2, result.Results[0].Merge.Total)
}

func TestRunAgenciesEmptyListingLeavesStoreUntouched(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="listing"></div></body></html>`)
	})

	registerTestSource(t, "empty-site", collectTestSite(srv.URL))
	cfg := testRunConfig(t)

	// 既存データを置いてから空の一覧を流す
	store := NewStore(cfg.DataDir, "empty-site", false)
	require.NoError(t, store.Save([]Record{testRecord("https://example.org/a", "A")}))

	result := RunAgencies([]string{"empty-site"}, cfg)
	require.False(t, result.HasErrors())
	assert.Equal(t, 0, result.Results[0].Collected)

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].Title)
}

func TestRunAgenciesUnknownAgency(t *testing.T) {
	cfg := testRunConfig(t)
	result := RunAgencies([]string{"no-such-agency"}, cfg)

	require.True(t, result.HasErrors())
	require.Len(t, result.Results, 1)
	assert.Error(t, result.Results[0].Err)
	assert.Contains(t, result.Errors[0], "no-such-agency")
}

func TestRunAgenciesDisabledAgencyIsSkipped(t *testing.T) {
	srv := newsSiteServer(t)
	registerTestSource(t, "test-site", collectTestSite(srv.URL))
	cfg := testRunConfig(t)
	cfg.File.Agencies = map[string]AgencyOverride{
		"test-site": {Disabled: true},
	}

	result := RunAgencies([]string{"test-site"}, cfg)
	assert.False(t, result.HasErrors())
	assert.Empty(t, result.Results)
}

func TestSourceKeysSortedAndComplete(t *testing.T) {
	keys := SourceKeys()
	assert.Contains(t, keys, "accc")
	assert.Contains(t, keys, "treasury-au")
	assert.Contains(t, keys, "rbnz")
	assert.True(t, sort.StringsAreSorted(keys))

	// レジストリの全エントリがキーと一致していること
	for k, src := range sources {
		assert.Equal(t, k, src.Key)
		assert.NotEmpty(t, src.StoreName)
		assert.NotNil(t, src.Collect)
	}
}

func TestConfigPageCap(t *testing.T) {
	cfg := &Config{Daily: true}
	assert.Equal(t, dailyModePageCap, cfg.PageCap("accc"))

	cfg.MaxPages = 7
	assert.Equal(t, 7, cfg.PageCap("accc"))

	cfg = &Config{}
	cfg.File.Agencies = map[string]AgencyOverride{"accc": {MaxPages: 5}}
	assert.Equal(t, 5, cfg.PageCap("accc"))
	assert.Equal(t, fullModePageCap, cfg.PageCap("rba"))
}

func TestConfigAgenciesParsing(t *testing.T) {
	cfg := &Config{AgenciesRaw: "accc, rba ,treasury-au"}
	assert.Equal(t, []string{"accc", "rba", "treasury-au"}, cfg.Agencies())

	cfg = &Config{AgenciesRaw: "all"}
	assert.Equal(t, SourceKeys(), cfg.Agencies())
}

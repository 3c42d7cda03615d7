package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFirstTextFallbackChain(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<h1 class="page-title">  The   Title </h1>
		<div class="summary">lead text</div>
	</body></html>`)

	// 先頭セレクタが外れても後続で拾う
	got, ok := firstText(doc, ".missing", "h1.page-title")
	assert.True(t, ok)
	assert.Equal(t, "The Title", got)

	_, ok = firstText(doc, ".missing", ".also-missing")
	assert.False(t, ok)
}

func TestFirstAttr(t *testing.T) {
	doc := docFromHTML(t, `<html><body><time datetime="2026-03-12">12 March 2026</time></body></html>`)

	got, ok := firstAttr(doc, "datetime", ".missing", "time[datetime]")
	assert.True(t, ok)
	assert.Equal(t, "2026-03-12", got)
}

func TestExtractBodySelectorChain(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<nav><a href="/home">Home navigation link text</a></nav>
		<article class="content">
			<nav class="breadcrumb"><a href="/">Home</a></nav>
			<p>First paragraph of the release with enough text to count.</p>
			<p>Second paragraph with more details about the decision.</p>
		</article>
	</body></html>`)

	body := extractBody(doc, "https://example.org/a", ".missing", "article.content")
	assert.Contains(t, body, "First paragraph")
	assert.Contains(t, body, "Second paragraph")
	assert.NotContains(t, body, "Home")
}

func TestExtractBodyFallsBackToReadability(t *testing.T) {
	doc := docFromHTML(t, `<html><head><title>Release</title></head><body>
		<div id="unexpected-layout">
			<p>Regulators announced a significant enforcement outcome today, with
			penalties imposed across several entities following an extended
			investigation into misconduct in the sector.</p>
			<p>The decision follows public consultation and takes effect from
			the start of the next quarter, the agency said in its statement.</p>
		</div>
	</body></html>`)

	body := extractBody(doc, "https://example.org/a", ".missing-selector")
	assert.Contains(t, body, "enforcement outcome")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12 March 2026", "2026-03-12"},
		{"2026-03-12", "2026-03-12"},
		{"March 12, 2026", "2026-03-12"},
		{"2026年3月12日", "2026-03-12"},
		{"2026年12月1日", "2026-12-01"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDate(tt.in), "input %q", tt.in)
	}

	// パース不能なテキストは空白正規化して保持する
	assert.Equal(t, "Quarter 1 release window", parseDate("Quarter 1   release\nwindow"))
}

func TestCleanHTMLTags(t *testing.T) {
	in := `<p>Hello <b>world</b></p><script>var x = 1;</script> &amp; more`
	assert.Equal(t, "Hello world & more", cleanHTMLTags(in))
}

func TestDocumentLinks(t *testing.T) {
	doc := docFromHTML(t, `<html><body><div class="content">
		<a href="/files/report.pdf">Report</a>
		<a href="/files/data.csv?download=1">Data</a>
		<a href="/files/stats.xlsx">Stats</a>
		<a href="/other/page.html">Not a document</a>
	</div></body></html>`)

	links := documentLinks(doc.Find(".content"), "https://example.org/news/item")
	assert.ElementsMatch(t, []string{
		"https://example.org/files/report.pdf",
		"https://example.org/files/data.csv?download=1",
		"https://example.org/files/stats.xlsx",
	}, links)
}

func TestExtractLinksSkipsNonContent(t *testing.T) {
	doc := docFromHTML(t, `<html><body><div class="content">
		<a href="/news/a">A</a>
		<a href="#section">anchor</a>
		<a href="mailto:x@example.org">mail</a>
		<a href="javascript:void(0)">js</a>
	</div></body></html>`)

	links := extractLinks(doc.Find(".content"), "https://example.org/")
	assert.Equal(t, []string{"https://example.org/news/a"}, links)
}

func TestTableText(t *testing.T) {
	doc := docFromHTML(t, `<html><body><table>
		<tr><th>Series</th><th>Value</th></tr>
		<tr><td>CPI</td><td>3.1</td></tr>
	</table></body></html>`)

	got := tableText(doc.Find("table"))
	assert.Equal(t, "Series\tValue\nCPI\t3.1", got)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.org/news/a", resolveURL("https://example.org/news/", "a"))
	assert.Equal(t, "https://other.org/x", resolveURL("https://example.org/", "https://other.org/x"))
	assert.Equal(t, "", resolveURL("https://example.org/", "#top"))
	assert.Equal(t, "", resolveURL("https://example.org/", "mailto:a@b.c"))
}

func TestMD5UniqueIDStripsQuery(t *testing.T) {
	a := MD5UniqueID("Consultation title", "https://example.org/c/1?utm_source=x")
	b := MD5UniqueID("Consultation title", "https://example.org/c/1?page=3")
	c := MD5UniqueID("Consultation title", "https://example.org/c/1")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	other := MD5UniqueID("Different title", "https://example.org/c/1")
	assert.NotEqual(t, a, other)
}

func TestSHA256ContentKeyNormalizesTitle(t *testing.T) {
	a := SHA256ContentKey("  Press   Release ", "2026-03-12")
	b := SHA256ContentKey("press release", "2026-03-12")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SHA256ContentKey("press release", "2026-03-13"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "日本語のテキス...", truncateString("日本語のテキストが長い場合", 10))
}

func TestUniqueRecordsByKey(t *testing.T) {
	in := []Record{
		{URL: "https://example.org/a"},
		{URL: "https://example.org/a"},
		{URL: "https://example.org/b"},
		{}, // キーなしは除外
	}
	out := uniqueRecordsByKey(in)
	assert.Len(t, out, 2)
}

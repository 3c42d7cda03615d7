package scrape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(url, title string) Record {
	return Record{
		Agency:    "test",
		URL:       url,
		Title:     title,
		ScrapedAt: time.Now().Format(time.RFC3339),
	}
}

func TestMergeAddsOnlyUnknownKeys(t *testing.T) {
	existing := []Record{testRecord("https://example.org/a", "A")}
	incoming := []Record{
		testRecord("https://example.org/a", "A again"),
		testRecord("https://example.org/b", "B"),
	}

	merged, res := Merge(existing, incoming)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, merged, 2)

	// 既知キーのレコードは上書きされない
	for _, r := range merged {
		if r.URL == "https://example.org/a" {
			assert.Equal(t, "A", r.Title)
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	incoming := []Record{
		testRecord("https://example.org/a", "A"),
		testRecord("https://example.org/b", "B"),
	}

	merged, res := Merge(nil, incoming)
	require.Equal(t, 2, res.Added)

	// 同じ入力でもう一度マージしても件数は増えない
	merged2, res2 := Merge(merged, incoming)
	assert.Equal(t, 0, res2.Added)
	assert.Len(t, merged2, 2)
}

func TestMergeNoDuplicateKeys(t *testing.T) {
	existing := []Record{
		testRecord("https://example.org/a", "A"),
		testRecord("https://example.org/b", "B"),
	}
	incoming := []Record{
		testRecord("https://example.org/b", "B"),
		testRecord("https://example.org/c", "C"),
	}

	merged, _ := Merge(existing, incoming)
	assert.Len(t, merged, 3)

	seen := map[string]bool{}
	for _, r := range merged {
		assert.False(t, seen[r.DedupKey()], "duplicate key %s", r.DedupKey())
		seen[r.DedupKey()] = true
	}
}

func TestMergeStatusChangeAppendsHistory(t *testing.T) {
	open := testRecord("https://example.org/consult", "Consultation")
	open.UniqueID = MD5UniqueID(open.Title, open.URL)
	open.Status = "Open"

	merged, res := Merge(nil, []Record{open})
	require.Equal(t, 1, res.Added)
	require.Len(t, merged[0].StatusHistory, 1)
	assert.Equal(t, "Open", merged[0].StatusHistory[0].Status)
	assert.NotEmpty(t, merged[0].StatusHistory[0].Date)

	closed := open
	closed.Status = "Closed"
	closed.ScrapedAt = time.Now().Add(time.Hour).Format(time.RFC3339)

	merged2, res2 := Merge(merged, []Record{closed})
	require.Equal(t, 1, res2.StatusChanges)
	require.Len(t, merged2, 1)

	got := merged2[0]
	assert.Equal(t, "Closed", got.Status)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, "Open", got.StatusHistory[0].Status)
	assert.Equal(t, "Closed", got.StatusHistory[1].Status)
	for _, e := range got.StatusHistory {
		assert.NotEmpty(t, e.Date)
	}
	// UniqueIDと初回取得日時は不変
	assert.Equal(t, open.UniqueID, got.UniqueID)
	assert.Equal(t, open.ScrapedAt, got.ScrapedAt)
}

func TestMergeSameStatusOnlyRefreshesCheck(t *testing.T) {
	rec := testRecord("https://example.org/consult", "Consultation")
	rec.UniqueID = MD5UniqueID(rec.Title, rec.URL)
	rec.Status = "Open"
	rec.Body = "original body"

	merged, _ := Merge(nil, []Record{rec})

	again := rec
	again.Body = ""
	merged2, res := Merge(merged, []Record{again})

	assert.Equal(t, 0, res.StatusChanges)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "original body", merged2[0].Body)
	assert.NotEmpty(t, merged2[0].LastStatusCheck)
}

func TestMergeStatusChangeKeepsOldBodyWhenEmpty(t *testing.T) {
	full := testRecord("https://example.org/consult", "Consultation")
	full.UniqueID = MD5UniqueID(full.Title, full.URL)
	full.Status = "Open"
	full.Body = "full body text"
	full.Documents = []DocumentExtract{{URL: "https://example.org/paper.pdf", Text: "pdf text"}}

	merged, _ := Merge(nil, []Record{full})

	// 薄いステータス更新レコード（一覧だけ見て作られたもの）
	thin := testRecord(full.URL, full.Title)
	thin.UniqueID = full.UniqueID
	thin.Status = "Closed"

	merged2, res := Merge(merged, []Record{thin})
	require.Equal(t, 1, res.StatusChanges)
	assert.Equal(t, "full body text", merged2[0].Body)
	assert.Len(t, merged2[0].Documents, 1)
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "test_agency", false)

	records := []Record{
		testRecord("https://example.org/a", "A"),
		testRecord("https://example.org/b", "B"),
	}
	require.NoError(t, store.Save(records))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "A", loaded[0].Title)

	// 一時ファイルが残っていないこと（アトミック置換）
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test_agency.json", entries[0].Name())
}

func TestStoreLoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(t.TempDir(), "nothing_here", false)
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStoreLoadCorruptFileIsPreserved(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "broken", false)
	require.NoError(t, os.WriteFile(store.Path, []byte("{not valid json"), 0o644))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// 元ファイルは削除ではなく .corrupt-* に退避される
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "broken.json.corrupt-"))

	backup, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "{not valid json", string(backup))
}

func TestStoreCSVMirror(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "mirrored", true)

	rec := testRecord("https://example.org/a", "A title")
	rec.RelatedLinks = []string{"https://example.org/x", "https://example.org/y"}
	rec.Documents = []DocumentExtract{{URL: "https://example.org/doc.pdf"}}
	require.NoError(t, store.Save([]Record{rec}))

	data, err := os.ReadFile(store.CSVPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "agency,url,title")
	assert.Contains(t, content, "A title")
	assert.Contains(t, content, "https://example.org/x; https://example.org/y")
	assert.Contains(t, content, "https://example.org/doc.pdf")
}

func TestMergeAndSave(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "agency", false)

	res, err := store.MergeAndSave([]Record{testRecord("https://example.org/a", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)

	res2, err := store.MergeAndSave([]Record{
		testRecord("https://example.org/a", "A"),
		testRecord("https://example.org/b", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Added)
	assert.Equal(t, 2, res2.Total)
}

func TestKeySetUsesUniqueIDOverURL(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "agency", false)

	rec := testRecord("https://example.org/a?tracking=1", "A")
	rec.UniqueID = MD5UniqueID(rec.Title, rec.URL)
	require.NoError(t, store.Save([]Record{rec}))

	keys, err := store.KeySet()
	require.NoError(t, err)
	assert.True(t, keys[rec.UniqueID])
	assert.False(t, keys[rec.URL])
}

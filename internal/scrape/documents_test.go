package scrape

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFetchDocumentNotFoundDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/missing.pdf")
	assert.Equal(t, srv.URL+"/missing.pdf", got.URL)
	assert.Empty(t, got.Text)
}

func TestFetchDocumentCorruptPDFDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		// %PDF-ヘッダのない壊れたペイロード
		w.Write([]byte("this is definitely not a pdf"))
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/broken.pdf")
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Empty(t, got.Text)
}

func TestFetchDocumentTinyPDFIsTreatedAsCorrupt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/tiny.pdf")
	assert.Empty(t, got.Text)
}

func TestFetchDocumentCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("series,value\nCPI,3.1\nGDP,0.8\n"))
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/stats.csv")
	assert.Equal(t, "series\tvalue\nCPI\t3.1\nGDP\t0.8", got.Text)
}

func TestFetchDocumentCSVWithRaggedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		// 行ごとの列数が揃っていないCSV（政府系データにありがち）
		w.Write([]byte("a,b,c\nx,y\n1,2,3,4\n"))
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/ragged.csv")
	assert.Contains(t, got.Text, "a\tb\tc")
	assert.Contains(t, got.Text, "x\ty")
	assert.Contains(t, got.Text, "1\t2\t3\t4")
}

func TestFetchDocumentXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "series"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "value"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "CPI"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3.1))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/stats.xlsx")
	assert.Contains(t, got.Text, "# Sheet1")
	assert.Contains(t, got.Text, "series\tvalue")
	assert.Contains(t, got.Text, "CPI")
}

func TestFetchDocumentUnsupportedTypeKeepsURLOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK\x03\x04"))
	}))
	defer srv.Close()

	got := testClient().FetchDocument(srv.URL + "/archive.zip")
	assert.Equal(t, srv.URL+"/archive.zip", got.URL)
	assert.Empty(t, got.Text)
}

func TestHasExtIgnoresQuery(t *testing.T) {
	assert.True(t, hasExt("https://example.org/report.PDF?download=1", ".pdf"))
	assert.False(t, hasExt("https://example.org/page.html?f=report.pdf", ".pdf"))
}

func TestIsPDFByMagicBytes(t *testing.T) {
	assert.True(t, isPDF("https://example.org/file", "", []byte("%PDF-1.7 rest")))
	assert.True(t, isPDF("https://example.org/file.pdf", "", []byte("x")))
	assert.True(t, isPDF("https://example.org/file", "application/pdf", nil))
	assert.False(t, isPDF("https://example.org/file.html", "text/html", []byte("<html>")))
}

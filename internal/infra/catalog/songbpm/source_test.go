package songbpm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

const searchPage = `<html><body>
<div class="results">
  <a class="song-result" href="/a">
    <span class="song-title">Around the World</span>
    <span class="song-artist">Daft Punk</span>
    <span class="song-bpm">121 BPM</span>
    <span class="song-key">Dm</span>
  </a>
  <a class="song-result" href="/b">
    <span class="song-title">One More Time</span>
    <span class="song-artist">Daft Punk</span>
    <span class="song-bpm">123</span>
    <span class="song-key">Bb major</span>
  </a>
  <a class="song-result" href="/c"><span class="song-artist">Nobody</span></a>
</div>
</body></html>`

func TestSource_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/searches", r.URL.Path)
		assert.Equal(t, "Daft Punk One More Time", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	src := NewSource(NewHTTPClient(srv.URL, DefaultSelectors()))
	results, err := src.Lookup(context.Background(), provider.Query{Artist: "Daft Punk", Title: "One More Time"})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, entity.FieldBPM, results[0].Field)
	assert.Equal(t, "123", results[0].Value)
	assert.Equal(t, entity.FieldKey, results[1].Field)
	assert.Equal(t, "A# major", results[1].Value)
	assert.InDelta(t, provider.ExactConfidence*confidenceScale, results[0].Confidence, 1e-9)
}

func TestParse_SkipsRowsWithoutTitle(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchPage))
	require.NoError(t, err)

	rows := Parse(doc, DefaultSelectors())

	require.Len(t, rows, 2)
	assert.Equal(t, Row{Title: "Around the World", Artist: "Daft Punk", BPM: "121 BPM", Key: "Dm"}, rows[0])
}

func TestParseBPM(t *testing.T) {
	tests := map[string]string{
		"128 BPM": "128",
		"97.5":    "97.5",
		"":        "",
		"n/a":     "",
		"999":     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseBPM(in), in)
	}
}

func TestParseKey(t *testing.T) {
	tests := map[string]string{
		"Dm":       "D minor",
		"F#m":      "F# minor",
		"Bb major": "A# major",
		"A":        "A major",
		"C♯ minor": "C# minor",
		"Eb min":   "D# minor",
		"unknown":  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseKey(in), in)
	}
}

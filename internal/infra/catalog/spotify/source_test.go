package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
)

const searchBody = `{"tracks":{"items":[
  {"id":"t1","name":"Around the World","artists":[{"name":"Daft Punk"}],"external_ids":{"isrc":"gbduw9700010"}},
  {"id":"t2","name":"One More Time","artists":[{"name":"Daft Punk"}],"external_ids":{"isrc":"GBDUW0000059"}}
]}}`

func newTestServer(t *testing.T, features string, featureStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "track", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte(searchBody))
		case "/audio-features/t2":
			w.WriteHeader(featureStatus)
			_, _ = w.Write([]byte(features))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSource_Lookup(t *testing.T) {
	srv := newTestServer(t, `{"tempo":122.9731,"key":9,"mode":0}`, http.StatusOK)
	defer srv.Close()

	src := NewSource(NewHTTPClient(srv.URL, "secret"))
	results, err := src.Lookup(context.Background(), provider.Query{Artist: "Daft Punk", Title: "One More Time"})
	require.NoError(t, err)

	got := map[string]string{}
	for _, r := range results {
		got[r.Field] = r.Value
		assert.Equal(t, provider.ExactConfidence, r.Confidence)
	}
	want := map[string]string{
		entity.FieldISRC:    "GBDUW0000059",
		entity.FieldArtists: "Daft Punk",
		entity.FieldBPM:     "123",
		entity.FieldKey:     "A minor",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_LookupWithoutFeatures(t *testing.T) {
	srv := newTestServer(t, `{"error":"not found"}`, http.StatusNotFound)
	defer srv.Close()

	src := NewSource(NewHTTPClient(srv.URL, "secret"))
	results, err := src.Lookup(context.Background(), provider.Query{Artist: "Daft Punk", Title: "One More Time"})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSource_NoMatch(t *testing.T) {
	srv := newTestServer(t, `{}`, http.StatusOK)
	defer srv.Close()

	src := NewSource(NewHTTPClient(srv.URL, "secret"))
	results, err := src.Lookup(context.Background(), provider.Query{Artist: "Metallica", Title: "Enter Sandman"})

	assert.NoError(t, err)
	assert.Nil(t, results)
}

type failingClient struct{ err error }

func (f failingClient) SearchTracks(context.Context, string, int) ([]Track, error) { return nil, f.err }
func (f failingClient) AudioFeatures(context.Context, string) (*AudioFeatures, error) {
	return nil, f.err
}

func TestSource_SearchError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewSource(failingClient{err: boom}).Lookup(context.Background(), provider.Query{Title: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "isrc:GBDUW0000059", searchQuery(provider.Query{ISRC: "GBDUW0000059", Title: "x"}))
	assert.Equal(t, "track:One More Time artist:Daft Punk", searchQuery(provider.Query{Artist: "Daft Punk", Title: "One More Time"}))
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "C major", KeyName(0, 1))
	assert.Equal(t, "F# minor", KeyName(6, 0))
	assert.Equal(t, "", KeyName(-1, 1))
	assert.Equal(t, "", KeyName(12, 1))
}

func TestNormalize_ListValues(t *testing.T) {
	var track Track
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","name":"Get Lucky","artists":[{"name":"Daft Punk"},{"name":"Pharrell Williams"}]}`), &track))

	results := Normalize(track, nil, 0.5, time.Unix(0, 0))

	require.Len(t, results, 1)
	assert.Equal(t, entity.FieldArtists, results[0].Field)
	assert.Equal(t, "Daft Punk; Pharrell Williams", results[0].Value)
}

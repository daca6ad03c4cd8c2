package pathutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{"plain", "track-42", "track-42", false},
		{"trimmed", "  isrc:GBAYE0601498 ", "isrc:GBAYE0601498", false},
		{"empty", "", "", true},
		{"control char", "a\x00b", "", true},
		{"too long", strings.Repeat("x", 300), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/deadletters/messages/x", nil)
			r.SetPathValue("id", tt.value)

			got, err := ID(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/deadletters/messages/track-1":  "/deadletters/messages/:id",
		"/deadletters/messages/track-1/": "/deadletters/messages/:id",
		"/deadletters/replay/track-1":    "/deadletters/replay/:id",
		"/deadletters/replay/batch":      "/deadletters/replay/batch",
		"/deadletters/messages?page=2":   "/deadletters/messages",
		"/enrichments":                   "/enrichments",
		"/health":                        "/health",
		"/wp-admin/setup.php":            "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

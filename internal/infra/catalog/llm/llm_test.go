package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/provider"
	"track-enricher/internal/resilience/retry"
)

type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func TestSource_CapsConfidence(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"genre\": \"House\", \"confidence\": 0.95}\n```"}
	src := NewSource(stub, 0.6)

	results, err := src.Lookup(context.Background(), provider.Query{Artist: "Daft Punk", Title: "Da Funk"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entity.FieldGenre, results[0].Field)
	assert.Equal(t, "House", results[0].Value)
	assert.Equal(t, 0.6, results[0].Confidence)
	assert.Contains(t, stub.prompt, `"Da Funk"`)
}

func TestSource_UnknownGenre(t *testing.T) {
	src := NewSource(&stubCompleter{reply: `{"genre": "", "confidence": 0}`}, 0.6)

	results, err := src.Lookup(context.Background(), provider.Query{Artist: "A", Title: "B"})

	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestSource_NeedsArtistAndTitle(t *testing.T) {
	stub := &stubCompleter{reply: `{"genre": "Rock", "confidence": 1}`}
	results, err := NewSource(stub, 0.6).Lookup(context.Background(), provider.Query{Title: "B"})

	assert.NoError(t, err)
	assert.Nil(t, results)
	assert.Empty(t, stub.prompt)
}

func TestSource_MalformedReplyIsFatal(t *testing.T) {
	src := NewSource(&stubCompleter{reply: "I think it is jazz."}, 0.6)

	_, err := src.Lookup(context.Background(), provider.Query{Artist: "A", Title: "B"})

	assert.ErrorIs(t, err, retry.ErrMalformedResponse)
	assert.Equal(t, entity.ClassFatalUnretryable, retry.Classify(err))
}

func TestParseAnswer_ClampsConfidence(t *testing.T) {
	a, err := ParseAnswer(`Sure! {"genre": " Techno ", "confidence": 4}`)
	require.NoError(t, err)
	assert.Equal(t, Answer{Genre: "Techno", Confidence: 1}, a)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		  "choices":[{"index":0,"message":{"role":"assistant","content":"{\"genre\":\"Disco\",\"confidence\":0.4}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	reply, err := NewOpenAI(cfg, "gpt-4o-mini", 64, 5*time.Second).Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Contains(t, reply, "Disco")
}

func TestOpenAI_StatusMapsToHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewOpenAI(cfg, "gpt-4o-mini", 64, 5*time.Second).Complete(context.Background(), "prompt")

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr), "got %T: %v", err, err)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, entity.ClassRetryableRateLimited, retry.Classify(err))
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(&config.LLMConfig{Backend: "anthropic", APIKey: "k", Model: "m", MaxTokens: 10, Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, c)

	c, err = NewCompleter(&config.LLMConfig{Backend: "openai", APIKey: "k", Model: "m", MaxTokens: 10, Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	_, err = NewCompleter(&config.LLMConfig{Backend: "bard"})
	assert.Error(t, err)
}

func TestStatusError(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, statusError(0, base), base)

	var httpErr *retry.HTTPError
	require.True(t, errors.As(statusError(503, base), &httpErr))
	assert.Equal(t, 503, httpErr.StatusCode)
}

func TestUnconfigured_IsFatal(t *testing.T) {
	src := NewSource(Unconfigured{}, 0.6)

	_, err := src.Lookup(context.Background(), provider.Query{Artist: "Bonobo", Title: "Kerala"})

	require.ErrorIs(t, err, ErrNoBackend)
	assert.Equal(t, entity.ClassFatalUnretryable, retry.Classify(err))
}

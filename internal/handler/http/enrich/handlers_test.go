package enrich_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/config"
	"track-enricher/internal/domain/entity"
	"track-enricher/internal/handler/http/auth"
	"track-enricher/internal/handler/http/enrich"
	"track-enricher/internal/handler/http/respond"
	"track-enricher/internal/infra/adapter/persistence/memory"
	"track-enricher/internal/provider"
	"track-enricher/internal/repository"
	"track-enricher/internal/resilience/retry"
	dlUC "track-enricher/internal/usecase/deadletter"
	enrichUC "track-enricher/internal/usecase/enrich"
)

type bpmSource struct {
	err error
}

func (s bpmSource) Name() string { return "songbpm" }

func (s bpmSource) Lookup(context.Context, provider.Query) ([]entity.FieldResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []entity.FieldResult{{Field: entity.FieldBPM, Value: "128", Confidence: 0.92}}, nil
}

type fixture struct {
	mux  *http.ServeMux
	repo repository.DeadLetterRepository
}

func setup(t *testing.T, src bpmSource, authn *auth.Authenticator) fixture {
	t.Helper()
	budget := 100
	p := &config.Pipeline{
		Deadline:         config.Duration(time.Second),
		FieldParallelism: 2,
		Providers: map[string]config.Provider{
			"songbpm": {RateBudget: &budget, Retry: config.Retry{MaxAttempts: 1}},
		},
		Fields: map[string]config.Field{
			entity.FieldBPM: {Providers: []string{"songbpm"}, Threshold: 0.8, Required: true},
		},
	}
	p.ApplyDefaults()

	reg, err := provider.NewRegistry([]provider.Source{src})
	require.NoError(t, err)
	reg.Apply(p)
	store, err := config.NewStore(p, reg.Names())
	require.NoError(t, err)

	repo := memory.NewDeadLetterRepo()
	svc := dlUC.NewService(repo, enrichUC.New(reg, store), dlUC.DefaultConfig())
	orch := enrichUC.New(reg, store, enrichUC.WithDeadLetterSink(svc))

	mux := http.NewServeMux()
	enrich.Register(mux, orch, reg, authn)
	return fixture{mux: mux, repo: repo}
}

func post(t *testing.T, mux http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/enrichments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(header) == 1 {
		req.Header.Set("Authorization", header[0])
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

/* ───────── POST /enrichments ───────── */

func TestEnrichHandler_Complete(t *testing.T) {
	f := setup(t, bpmSource{}, auth.New(""))

	rr := post(t, f.mux, `{"record_id":"trk-1","artist":"Justice","title":"D.A.N.C.E.","fields":["bpm"]}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var rec entity.EnrichmentRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, "trk-1", rec.RecordID)
	assert.Equal(t, entity.StatusComplete, rec.Status)
	assert.Equal(t, "128", rec.Fields[entity.FieldBPM].Value)
	assert.Equal(t, "songbpm", rec.Fields[entity.FieldBPM].Provider)
	assert.NotEmpty(t, rec.CorrelationID)
}

func TestEnrichHandler_FailedRecordIsDeadLettered(t *testing.T) {
	f := setup(t, bpmSource{err: &retry.HTTPError{StatusCode: 403, Message: "forbidden"}}, auth.New(""))

	rr := post(t, f.mux, `{"record_id":"trk-2","artist":"Justice","title":"Genesis","fields":["bpm"]}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var rec entity.EnrichmentRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec))
	assert.Equal(t, entity.StatusFailed, rec.Status)
	require.NotNil(t, rec.Failure)
	assert.Equal(t, entity.ClassFatalUnretryable, rec.Failure.Class)

	msg, err := f.repo.Get(context.Background(), "trk-2")
	require.NoError(t, err)
	assert.Equal(t, entity.ClassFatalUnretryable, msg.Class)
	assert.Equal(t, "songbpm", msg.Provider)
}

func TestEnrichHandler_BadRequests(t *testing.T) {
	f := setup(t, bpmSource{}, auth.New(""))

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"record_id":`},
		{"unknown key", `{"record_id":"x","fields":["bpm"],"colour":"red"}`},
		{"missing record id", `{"artist":"Justice","fields":["bpm"]}`},
		{"blank record id", `{"record_id":"   ","artist":"Justice","fields":["bpm"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, f.mux, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestEnrichHandler_RequiresToken(t *testing.T) {
	const secret = "enrich-handler-secret"
	f := setup(t, bpmSource{}, auth.New(secret))
	body := `{"record_id":"trk-3","artist":"Justice","title":"Phantom","fields":["bpm"]}`

	rr := post(t, f.mux, body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := auth.IssueToken(secret, "ops", time.Minute)
	require.NoError(t, err)
	rr = post(t, f.mux, body, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)
}

type brokenEnricher struct{}

func (brokenEnricher) Enrich(context.Context, entity.EnrichmentRequest) (*entity.EnrichmentRecord, error) {
	return nil, errors.Join(enrichUC.ErrDeadLetterFailed, errors.New("dial tcp: connection refused"))
}

func TestEnrichHandler_DeadLetterFailureIs500(t *testing.T) {
	h := enrich.EnrichHandler{Enricher: brokenEnricher{}}
	req := httptest.NewRequest(http.MethodPost, "/enrichments",
		strings.NewReader(`{"record_id":"trk-4","artist":"a","fields":["bpm"]}`))
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "internal server error", body.Error)
}

/* ───────── GET /providers ───────── */

func TestProvidersHandler(t *testing.T) {
	f := setup(t, bpmSource{}, auth.New(""))
	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	rr := httptest.NewRecorder()

	f.mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Providers []entity.ProviderState `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "songbpm", body.Providers[0].Provider)
	assert.True(t, body.Providers[0].Enabled)
	assert.Equal(t, entity.BreakerClosed, body.Providers[0].Breaker)
	assert.Equal(t, 100, body.Providers[0].Budget)
}

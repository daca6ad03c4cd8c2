package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registered = []string{"spotify", "musicbrainz", "discogs", "songbpm", "llm"}

const sampleYAML = `
deadline: 20s
providers:
  spotify:
    rate_budget: 100
    window: 30s
    breaker:
      failure_threshold: 3
      cooldown: 10s
  musicbrainz:
    rate_budget: 1
    window: 1s
  llm:
    enabled: false
fields:
  bpm:
    providers: [spotify]
    threshold: 0.8
    required: true
  genre:
    providers: [musicbrainz, llm]
    threshold: 0.5
`

func TestParsePipeline_YAML(t *testing.T) {
	p, err := ParsePipeline([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	require.NoError(t, p.Validate(registered))

	assert.Equal(t, 20*time.Second, p.Deadline.Std())
	assert.Equal(t, DefaultFieldParallelism, p.FieldParallelism)

	spotify := p.Providers["spotify"]
	assert.True(t, spotify.IsEnabled())
	assert.Equal(t, 100, spotify.Budget())
	assert.Equal(t, 30*time.Second, spotify.LimiterSettings().Window)
	assert.Equal(t, DefaultWaitTimeout, spotify.LimiterSettings().WaitTimeout)
	assert.Equal(t, 3, spotify.BreakerSettings().FailureThreshold)
	assert.Equal(t, 10*time.Second, spotify.BreakerSettings().Cooldown)
	assert.Equal(t, 4, spotify.RetryPolicy().MaxAttempts)
	assert.Equal(t, 30*time.Second, spotify.RetryPolicy().RateLimitWindow)

	assert.False(t, p.Providers["llm"].IsEnabled())

	bpm, ok := p.Field("bpm")
	require.True(t, ok)
	assert.Equal(t, []string{"spotify"}, bpm.Providers)
	assert.True(t, bpm.Required)
	assert.Equal(t, []string{"bpm", "genre"}, p.FieldNames())
}

func TestParsePipeline_TOML(t *testing.T) {
	data := []byte(`
deadline = "30s"

[providers.spotify]
rate_budget = 0
window = "1s"

[fields.genre]
providers = ["spotify"]
threshold = 0.7
required = true
`)
	p, err := ParsePipeline(data, FormatTOML)
	require.NoError(t, err)
	require.NoError(t, p.Validate(registered))

	assert.Equal(t, 30*time.Second, p.Deadline.Std())
	assert.False(t, p.Providers["spotify"].IsEnabled(), "budget 0 disables the provider")
	assert.InDelta(t, 0.7, p.Fields["genre"].Threshold, 1e-9)
}

func TestParsePipeline_RejectsUnknownKeys(t *testing.T) {
	_, err := ParsePipeline([]byte("deadline: 1s\nfeilds: {}\n"), FormatYAML)
	assert.Error(t, err)
}

func TestPipeline_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unregistered adapter",
			yaml: `
providers: {lastfm: {}}
fields: {genre: {providers: [lastfm], threshold: 0.5}}`,
			wantErr: `provider "lastfm": no adapter registered`,
		},
		{
			name: "field references unconfigured provider",
			yaml: `
providers: {spotify: {}}
fields: {bpm: {providers: [spotify, discogs], threshold: 0.5}}`,
			wantErr: `field "bpm": provider "discogs" is not configured`,
		},
		{
			name: "unknown field",
			yaml: `
providers: {spotify: {}}
fields: {mood: {providers: [spotify], threshold: 0.5}}`,
			wantErr: `field "mood": unknown field`,
		},
		{
			name: "threshold out of range",
			yaml: `
providers: {spotify: {}}
fields: {bpm: {providers: [spotify], threshold: 1.5}}`,
			wantErr: `threshold 1.5 must be in (0, 1]`,
		},
		{
			name: "empty provider list",
			yaml: `
providers: {spotify: {}}
fields: {bpm: {providers: [], threshold: 0.5}}`,
			wantErr: `field "bpm": provider list is empty`,
		},
		{
			name: "duplicate provider",
			yaml: `
providers: {spotify: {}}
fields: {bpm: {providers: [spotify, spotify], threshold: 0.5}}`,
			wantErr: `provider "spotify" listed twice`,
		},
		{
			name: "bad jitter",
			yaml: `
providers: {spotify: {retry: {jitter: 2}}}
fields: {bpm: {providers: [spotify], threshold: 0.5}}`,
			wantErr: `retry.jitter must be in [0, 1]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePipeline([]byte(tt.yaml), FormatYAML)
			require.NoError(t, err)
			err = p.Validate(registered)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStore_ReplaceNotifiesSubscribers(t *testing.T) {
	p, err := ParsePipeline([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	s, err := NewStore(p, registered)
	require.NoError(t, err)

	var got *Pipeline
	s.Subscribe(func(np *Pipeline) { got = np })

	next, err := ParsePipeline([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	next.Deadline = Duration(5 * time.Second)
	require.NoError(t, s.Replace(next))

	assert.Same(t, next, got)
	assert.Equal(t, 5*time.Second, s.Current().Deadline.Std())
}

func TestStore_ReloadKeepsPreviousOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	s, err := OpenStore(path, registered)
	require.NoError(t, err)
	before := s.Current()

	require.NoError(t, os.WriteFile(path, []byte("fields: {bpm: {providers: [nobody], threshold: 0.5}}"), 0o600))
	assert.Error(t, s.Reload())
	assert.Same(t, before, s.Current())

	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"field_parallelism: 2\n"), 0o600))
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, s.Current().FieldParallelism)
}

func TestLoadPipeline_RepositoryConfigs(t *testing.T) {
	for _, name := range []string{"pipeline.yaml", "pipeline.toml"} {
		t.Run(name, func(t *testing.T) {
			p, err := LoadPipeline(filepath.Join("..", "..", "configs", name))
			require.NoError(t, err)
			assert.NoError(t, p.Validate(registered))
		})
	}
}

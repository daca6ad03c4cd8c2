package app

import (
	"log/slog"
	"net/http"

	"track-enricher/internal/config"
	"track-enricher/internal/infra/catalog/discogs"
	"track-enricher/internal/infra/catalog/httpjson"
	"track-enricher/internal/infra/catalog/llm"
	"track-enricher/internal/infra/catalog/musicbrainz"
	"track-enricher/internal/infra/catalog/songbpm"
	"track-enricher/internal/infra/catalog/spotify"
	"track-enricher/internal/provider"
)

// Sources builds every catalog source. All of them are always registered so
// a pipeline file can name any provider; missing credentials surface as
// fatal lookups, and the pipeline file decides which ones are enabled.
func Sources(s Settings, llmCfg *config.LLMConfig) ([]provider.Source, error) {
	hc := httpjson.WithHTTPClient(&http.Client{Timeout: s.ProviderTimeout})

	var completer llm.Completer = llm.Unconfigured{}
	maxConfidence := 0.6
	if llmCfg != nil && llmCfg.Enabled() {
		c, err := llm.NewCompleter(llmCfg)
		if err != nil {
			return nil, err
		}
		completer = c
		maxConfidence = llmCfg.MaxConfidence
	}

	if s.SpotifyToken == "" {
		slog.Warn("SPOTIFY_TOKEN is not set; spotify lookups will be rejected")
	}

	return []provider.Source{
		spotify.NewSource(spotify.NewHTTPClient(s.SpotifyBaseURL, s.SpotifyToken, hc)),
		musicbrainz.NewSource(musicbrainz.NewHTTPClient(s.MusicBrainzURL, hc)),
		discogs.NewSource(discogs.NewHTTPClient(s.DiscogsBaseURL, s.DiscogsToken, hc)),
		songbpm.NewSource(songbpm.NewHTTPClient(s.SongBPMBaseURL, songbpm.DefaultSelectors(), hc)),
		llm.NewSource(completer, maxConfidence),
	}, nil
}

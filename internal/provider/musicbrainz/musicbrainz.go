// Package musicbrainz adapts the MusicBrainz web service as a release
// search source. Search hits are hydrated with their recordings so
// candidates carry per-track titles, one extra rate-limited request each.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/version"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"

	maxResults = 5
)

// Adapter implements provider.Source for MusicBrainz.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "musicbrainz")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameMusicBrainz }

// RequiresAuth returns whether this source needs an API key.
func (a *Adapter) RequiresAuth() bool { return false }

// SearchReleases searches MusicBrainz for releases matching the free-text query.
func (a *Adapter) SearchReleases(ctx context.Context, query string) ([]provider.CandidateRelease, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {fmt.Sprintf("%d", maxResults)},
	}
	reqURL := a.baseURL + "/release?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp ReleaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Releases) == 0 {
		return nil, &provider.ErrNoResults{Source: provider.NameMusicBrainz, Query: query}
	}

	candidates := make([]provider.CandidateRelease, 0, len(resp.Releases))
	for i, rel := range resp.Releases {
		if i >= maxResults {
			break
		}
		cand := mapRelease(&rel)
		if tracks, err := a.fetchTracklist(ctx, rel.ID); err != nil {
			a.logger.Debug("tracklist fetch failed",
				slog.String("release", rel.ID),
				slog.String("error", err.Error()))
		} else {
			cand.Tracks = tracks
			if len(tracks) > 0 {
				cand.TrackCount = len(tracks)
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// fetchTracklist hydrates a release with its recording titles.
func (a *Adapter) fetchTracklist(ctx context.Context, mbid string) ([]provider.CandidateTrack, error) {
	params := url.Values{
		"inc": {"recordings+artist-credits"},
		"fmt": {"json"},
	}
	reqURL := a.baseURL + "/release/" + url.PathEscape(mbid) + "?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var detail ReleaseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}

	var tracks []provider.CandidateTrack
	position := 0
	for _, medium := range detail.Media {
		for _, t := range medium.Tracks {
			position++
			ct := provider.CandidateTrack{
				Title:    t.Title,
				Position: position,
			}
			if ct.Title == "" && t.Recording != nil {
				ct.Title = t.Recording.Title
			}
			if artist := joinCredits(t.ArtistCredit); artist != "" {
				ct.Artist = artist
			}
			tracks = append(tracks, ct)
		}
	}
	return tracks, nil
}

// TestConnection verifies connectivity to the MusicBrainz API.
func (a *Adapter) TestConnection(ctx context.Context) error {
	params := url.Values{
		"query": {"test"},
		"fmt":   {"json"},
		"limit": {"1"},
	}
	reqURL := a.baseURL + "/release?" + params.Encode()
	_, err := a.doRequest(ctx, reqURL)
	return err
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.NameMusicBrainz); err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameMusicBrainz,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrSourceUnavailable{
			Source:     provider.NameMusicBrainz,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: 2 * time.Second,
		}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameMusicBrainz,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapRelease converts a MusicBrainz release search hit to the common
// candidate type. The reported track count comes from the media summary;
// hydration replaces it when recordings are available.
func mapRelease(rel *MBRelease) provider.CandidateRelease {
	cand := provider.CandidateRelease{
		Source:    provider.NameMusicBrainz,
		Title:     rel.Title,
		Artist:    joinCredits(rel.ArtistCredit),
		Date:      rel.Date,
		Relevance: float64(rel.Score) / 100,
		IDs:       map[string]string{"musicbrainz": rel.ID},
	}
	if cand.Date == "" && rel.ReleaseGroup != nil {
		cand.Date = rel.ReleaseGroup.FirstReleaseDate
	}
	if rel.TrackCount > 0 {
		cand.TrackCount = rel.TrackCount
	} else {
		for _, m := range rel.Media {
			cand.TrackCount += m.TrackCount
		}
	}
	return cand
}

// joinCredits renders an artist-credit list including its join phrases,
// so "A feat. B" round-trips the way MusicBrainz displays it.
func joinCredits(credits []ArtistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" && c.Artist != nil {
			name = c.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(c.JoinPhrase)
	}
	return b.String()
}

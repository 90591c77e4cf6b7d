// Package discogs adapts the Discogs database API as a release search source.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/version"
)

const (
	defaultBaseURL = "https://api.discogs.com"

	// maxResults bounds how many search hits we hydrate with a tracklist;
	// each hydration is a separate rate-limited request.
	maxResults = 5
)

// Adapter implements provider.Source for Discogs.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates a Discogs adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("source", "discogs")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameDiscogs }

// RequiresAuth returns whether this source needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchReleases searches Discogs for releases matching the free-text query
// and hydrates each hit with its tracklist.
func (a *Adapter) SearchReleases(ctx context.Context, query string) ([]provider.CandidateRelease, error) {
	token, err := a.getToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":        {query},
		"type":     {"release"},
		"per_page": {strconv.Itoa(maxResults)},
	}
	reqURL := a.baseURL + "/database/search?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL, token)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, &provider.ErrNoResults{Source: provider.NameDiscogs, Query: query}
	}

	candidates := make([]provider.CandidateRelease, 0, len(resp.Results))
	for i, r := range resp.Results {
		if i >= maxResults {
			break
		}
		cand, err := a.hydrateRelease(ctx, token, r)
		if err != nil {
			// A single bad release must not sink the whole search.
			a.logger.Warn("skipping release", slog.Int("id", r.ID), slog.String("error", err.Error()))
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(candidates) == 0 {
		return nil, &provider.ErrNoResults{Source: provider.NameDiscogs, Query: query}
	}
	return candidates, nil
}

// hydrateRelease fetches the full release to get artist credits and the
// tracklist, falling back to search-hit fields when the fetch fails softly.
func (a *Adapter) hydrateRelease(ctx context.Context, token string, r SearchResult) (provider.CandidateRelease, error) {
	reqURL := fmt.Sprintf("%s/releases/%d", a.baseURL, r.ID)
	body, err := a.doRequest(ctx, reqURL, token)
	if err != nil {
		return provider.CandidateRelease{}, err
	}

	var detail ReleaseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return provider.CandidateRelease{}, fmt.Errorf("parsing release response: %w", err)
	}
	return mapRelease(&detail, r), nil
}

// TestConnection verifies the personal access token is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	token, err := a.getToken(ctx)
	if err != nil {
		return err
	}
	reqURL := a.baseURL + "/database/search?q=test&type=release&per_page=1"
	_, err = a.doRequest(ctx, reqURL, token)
	return err
}

func (a *Adapter) getToken(ctx context.Context) (string, error) {
	token, err := a.settings.GetAPIKey(ctx, provider.NameDiscogs)
	if err != nil {
		return "", fmt.Errorf("getting API token: %w", err)
	}
	if token == "" {
		return "", &provider.ErrAuthRequired{Source: provider.NameDiscogs}
	}
	return token, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL, token string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.NameDiscogs); err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameDiscogs,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Discogs token="+token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameDiscogs,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &provider.ErrAuthRequired{Source: provider.NameDiscogs}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &provider.ErrSourceUnavailable{
			Source:     provider.NameDiscogs,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: time.Minute,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameDiscogs,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func mapRelease(d *ReleaseDetail, hit SearchResult) provider.CandidateRelease {
	cand := provider.CandidateRelease{
		Source: provider.NameDiscogs,
		Title:  d.Title,
		Artist: joinArtists(d.Artists),
		Date:   releaseDate(d, hit),
		IDs:    map[string]string{"discogs": strconv.Itoa(d.ID)},
	}

	position := 0
	for _, t := range d.Tracklist {
		// Headings and index rows carry no playable audio.
		if t.Type != "" && t.Type != "track" {
			continue
		}
		position++
		ct := provider.CandidateTrack{
			Title:    t.Title,
			Position: position,
		}
		if len(t.Artists) > 0 {
			ct.Artist = joinArtists(t.Artists)
		}
		cand.Tracks = append(cand.Tracks, ct)
	}
	cand.TrackCount = len(cand.Tracks)
	return cand
}

func releaseDate(d *ReleaseDetail, hit SearchResult) string {
	if d.Released != "" {
		return d.Released
	}
	if d.Year > 0 {
		return strconv.Itoa(d.Year)
	}
	return hit.Year
}

// joinArtists flattens credited artists, stripping the "(2)" style
// disambiguation suffixes Discogs appends to duplicate names.
func joinArtists(refs []ArtistRef) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		name := ref.Name
		if idx := strings.LastIndex(name, " ("); idx > 0 && strings.HasSuffix(name, ")") {
			if _, err := strconv.Atoi(strings.TrimSuffix(name[idx+2:], ")")); err == nil {
				name = name[:idx]
			}
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

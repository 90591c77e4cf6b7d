// Package acoustid adapts the AcoustID lookup API as a fingerprint
// identification source. Candidates it returns carry only title and
// artist attributes; AcoustID knows nothing about release dates, genres
// or track counts.
package acoustid

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

const defaultBaseURL = "https://api.acoustid.org/v2"

// Adapter implements provider.FingerprintSource for AcoustID.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates an AcoustID adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates an AcoustID adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("source", "acoustid")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (a *Adapter) Name() provider.SourceName { return provider.NameAcoustID }

// RequiresAuth returns whether this source needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupFingerprint resolves a chromaprint fingerprint and duration in
// seconds to candidate releases, best match confidence first.
func (a *Adapter) LookupFingerprint(ctx context.Context, fingerprint string, duration int) ([]provider.CandidateRelease, error) {
	apiKey, err := a.settings.GetAPIKey(ctx, provider.NameAcoustID)
	if err != nil {
		return nil, fmt.Errorf("getting API key: %w", err)
	}
	if apiKey == "" {
		return nil, &provider.ErrAuthRequired{Source: provider.NameAcoustID}
	}

	form := url.Values{
		"client":      {apiKey},
		"fingerprint": {fingerprint},
		"duration":    {strconv.Itoa(duration)},
		"meta":        {"recordings releasegroups"},
	}

	body, err := a.doRequest(ctx, a.baseURL+"/lookup", form)
	if err != nil {
		return nil, err
	}

	var resp LookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing lookup response: %w", err)
	}
	if resp.Status != "ok" {
		if resp.Error != nil && resp.Error.Code == 4 {
			// Code 4 is "invalid API key".
			return nil, &provider.ErrAuthRequired{Source: provider.NameAcoustID}
		}
		msg := "unknown error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameAcoustID,
			Cause:  fmt.Errorf("lookup failed: %s", msg),
		}
	}

	candidates := mapResults(resp.Results)
	if len(candidates) == 0 {
		return nil, &provider.ErrNoResults{Source: provider.NameAcoustID, Query: "fingerprint"}
	}
	return candidates, nil
}

// doRequest posts a form-encoded lookup. Fingerprints run several KB, too
// long for a query string.
func (a *Adapter) doRequest(ctx context.Context, reqURL string, form url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx, provider.NameAcoustID); err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameAcoustID,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameAcoustID,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrSourceUnavailable{
			Source:     provider.NameAcoustID,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: time.Second,
		}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrSourceUnavailable{
			Source: provider.NameAcoustID,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapResults flattens fingerprint matches into candidates, one per release
// group, carrying the AcoustID confidence as relevance. Duplicate release
// groups across recordings keep the highest-confidence entry.
func mapResults(results []Result) []provider.CandidateRelease {
	seen := make(map[string]bool)
	var candidates []provider.CandidateRelease

	for _, res := range results {
		for _, rec := range res.Recordings {
			recArtist := joinArtists(rec.Artists)

			if len(rec.ReleaseGroups) == 0 {
				// Recording with no album linkage still identifies the track.
				key := "rec:" + rec.ID
				if rec.Title == "" || seen[key] {
					continue
				}
				seen[key] = true
				candidates = append(candidates, provider.CandidateRelease{
					Source:    provider.NameAcoustID,
					Artist:    recArtist,
					Relevance: res.Score,
					Tracks:    []provider.CandidateTrack{{Title: rec.Title, Artist: recArtist}},
					IDs:       map[string]string{"acoustid": res.ID, "mb_recording": rec.ID},
				})
				continue
			}

			for _, rg := range rec.ReleaseGroups {
				if seen[rg.ID] {
					continue
				}
				seen[rg.ID] = true
				artist := joinArtists(rg.Artists)
				if artist == "" {
					artist = recArtist
				}
				candidates = append(candidates, provider.CandidateRelease{
					Source:    provider.NameAcoustID,
					Title:     rg.Title,
					Artist:    artist,
					Relevance: res.Score,
					Tracks:    []provider.CandidateTrack{{Title: rec.Title, Artist: recArtist}},
					IDs: map[string]string{
						"acoustid":         res.ID,
						"mb_recording":     rec.ID,
						"mb_release_group": rg.ID,
					},
				})
			}
		}
	}
	return candidates
}

func joinArtists(artists []Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

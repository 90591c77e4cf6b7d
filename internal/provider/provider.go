package provider

import (
	"context"
	"fmt"
	"time"
)

// SourceName uniquely identifies a metadata source.
type SourceName string

// Known source names.
const (
	NameDiscogs     SourceName = "discogs"
	NameMusicBrainz SourceName = "musicbrainz"
	NameAcoustID    SourceName = "acoustid"
)

// AllSourceNames returns all known source names in display order.
func AllSourceNames() []SourceName {
	return []SourceName{
		NameDiscogs,
		NameMusicBrainz,
		NameAcoustID,
	}
}

// DisplayName returns a human-readable name for the source.
func (n SourceName) DisplayName() string {
	switch n {
	case NameDiscogs:
		return "Discogs"
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameAcoustID:
		return "AcoustID"
	default:
		return string(n)
	}
}

// CandidateTrack is one track inside a candidate release.
type CandidateTrack struct {
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Position int    `json:"position"`
}

// CandidateRelease is a single search hit from a source. Immutable once
// returned; Relevance is the source's own opaque score and plays no part
// in the engine's scoring.
type CandidateRelease struct {
	Source     SourceName        `json:"source"`
	Title      string            `json:"title"`
	Artist     string            `json:"artist"`
	Date       string            `json:"date,omitempty"` // free-text date or bare year
	TrackCount int               `json:"track_count"`    // 0 = unknown
	Tracks     []CandidateTrack  `json:"tracks,omitempty"`
	Relevance  float64           `json:"relevance,omitempty"`
	IDs        map[string]string `json:"ids,omitempty"`
}

// AccessTier classifies a source's access model.
type AccessTier string

// Access tier constants.
const (
	TierFree    AccessTier = "free"     // No key required
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
)

// RateLimitInfo documents the known rate limits for a source.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// SourceCapability describes a source's access model and documented rate limits.
type SourceCapability struct {
	Tier      AccessTier     `json:"tier"`
	HelpURL   string         `json:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// SourceCapabilities returns the known capability metadata for each source.
func SourceCapabilities() map[SourceName]SourceCapability {
	return map[SourceName]SourceCapability{
		NameDiscogs: {
			Tier:      TierFreeKey,
			HelpURL:   "https://www.discogs.com/settings/developers",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1, RequestsPerDay: 1000},
		},
		NameMusicBrainz: {
			Tier:      TierFree,
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1},
		},
		NameAcoustID: {
			Tier:      TierFreeKey,
			HelpURL:   "https://acoustid.org/new-application",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 3},
		},
	}
}

// Source is the interface all metadata source adapters implement.
type Source interface {
	// Name returns the unique source identifier.
	Name() SourceName

	// RequiresAuth returns true if this source needs an API key to function.
	RequiresAuth() bool

	// SearchReleases searches the source with a free-text query and returns
	// candidate releases in the source's own relevance order.
	SearchReleases(ctx context.Context, query string) ([]CandidateRelease, error)
}

// FingerprintSource is the interface for audio-fingerprint identification
// adapters. Unlike Source (free-text queries), lookups are keyed by a
// chromaprint fingerprint and the track duration in seconds.
type FingerprintSource interface {
	Name() SourceName
	RequiresAuth() bool
	LookupFingerprint(ctx context.Context, fingerprint string, duration int) ([]CandidateRelease, error)
}

// TestableSource is an optional interface sources can implement for
// connectivity checks against a configured key.
type TestableSource interface {
	Source
	TestConnection(ctx context.Context) error
}

// ErrSourceUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrSourceUnavailable struct {
	Source     SourceName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrSourceUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrSourceUnavailable) Unwrap() error { return e.Cause }

// ErrNoResults indicates the source returned no candidates for the query.
type ErrNoResults struct {
	Source SourceName
	Query  string
}

func (e *ErrNoResults) Error() string {
	return fmt.Sprintf("source %s: no results for %q", e.Source, e.Query)
}

// ErrAuthRequired indicates the source needs an API key but none is configured.
type ErrAuthRequired struct {
	Source SourceName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("source %s: API key not configured", e.Source)
}

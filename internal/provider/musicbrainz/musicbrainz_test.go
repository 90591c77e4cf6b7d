package musicbrainz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Override92/tid3/internal/provider"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent header on every request")
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/release":
			w.Write(loadFixture(t, "search_nevermind.json"))
		case strings.HasPrefix(r.URL.Path, "/release/"):
			w.Write(loadFixture(t, "release_nevermind.json"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testAdapter(srv *httptest.Server) *Adapter {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(provider.NewRateLimiterMap(), logger, srv.URL)
}

func TestSearchReleases(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(srv)

	candidates, err := a.SearchReleases(context.Background(), "nirvana nevermind")
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Source != provider.NameMusicBrainz {
		t.Errorf("expected source musicbrainz, got %s", c.Source)
	}
	if c.Title != "Nevermind" {
		t.Errorf("expected title Nevermind, got %s", c.Title)
	}
	if c.Artist != "Nirvana" {
		t.Errorf("expected artist Nirvana, got %s", c.Artist)
	}
	if c.Date != "1991-09-24" {
		t.Errorf("expected date 1991-09-24, got %s", c.Date)
	}
	if c.Relevance != 1.0 {
		t.Errorf("expected relevance 1.0 for score 100, got %f", c.Relevance)
	}
	if c.IDs["musicbrainz"] != "fde4c1f3-a4f6-3fed-8748-0b6b2bb8cbc5" {
		t.Errorf("unexpected MBID: %s", c.IDs["musicbrainz"])
	}
}

func TestSearchReleasesHydratesTracklist(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(srv)

	candidates, err := a.SearchReleases(context.Background(), "nirvana nevermind")
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}

	c := candidates[0]
	if len(c.Tracks) != 3 {
		t.Fatalf("expected 3 hydrated tracks, got %d", len(c.Tracks))
	}
	// Hydrated track list overrides the search hit's track-count summary.
	if c.TrackCount != 3 {
		t.Errorf("expected track count 3 after hydration, got %d", c.TrackCount)
	}
	if c.Tracks[0].Title != "Smells Like Teen Spirit" {
		t.Errorf("unexpected first track: %s", c.Tracks[0].Title)
	}
	// An empty track title falls back to the recording title.
	if c.Tracks[1].Title != "In Bloom" {
		t.Errorf("expected recording title fallback In Bloom, got %s", c.Tracks[1].Title)
	}
	if c.Tracks[2].Position != 3 {
		t.Errorf("expected position 3, got %d", c.Tracks[2].Position)
	}
}

func TestSearchReleasesNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created": "2026-08-30T12:00:00.000Z", "count": 0, "offset": 0, "releases": []}`))
	}))
	defer srv.Close()
	a := testAdapter(srv)

	_, err := a.SearchReleases(context.Background(), "zzzz nonexistent")
	var noResults *provider.ErrNoResults
	if !errors.As(err, &noResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestSearchReleasesServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	a := testAdapter(srv)

	_, err := a.SearchReleases(context.Background(), "nirvana")
	var unavailable *provider.ErrSourceUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if unavailable.RetryAfter <= 0 {
		t.Error("expected a retry-after hint on 503")
	}
}

func TestJoinCredits(t *testing.T) {
	tests := []struct {
		name    string
		credits []ArtistCredit
		want    string
	}{
		{"single", []ArtistCredit{{Name: "Nirvana"}}, "Nirvana"},
		{
			"join phrase",
			[]ArtistCredit{
				{Name: "David Bowie", JoinPhrase: " & "},
				{Name: "Queen"},
			},
			"David Bowie & Queen",
		},
		{
			"name fallback to artist",
			[]ArtistCredit{{Artist: &MBArtist{Name: "Nirvana"}}},
			"Nirvana",
		},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinCredits(tt.credits); got != tt.want {
				t.Errorf("joinCredits() = %q, want %q", got, tt.want)
			}
		})
	}
}

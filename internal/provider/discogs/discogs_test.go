package discogs

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Override92/tid3/internal/encryption"
	"github.com/Override92/tid3/internal/provider"
	_ "modernc.org/sqlite"
)

func setupTest(t *testing.T) (*provider.RateLimiterMap, *provider.SettingsService) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL DEFAULT (datetime('now')))`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}
	enc, _, _ := encryption.NewEncryptor("")
	limiter := provider.NewRateLimiterMap()
	settings := provider.NewSettingsService(db, enc)
	if err := settings.SetAPIKey(context.Background(), provider.NameDiscogs, "test-token"); err != nil {
		t.Fatalf("setting test token: %v", err)
	}
	return limiter, settings
}

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
		auth := r.Header.Get("Authorization")
		if auth != "Discogs token=test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/database/search"):
			w.Write(loadFixture(t, "search_nevermind.json"))
		case r.URL.Path == "/releases/367084":
			w.Write(loadFixture(t, "release_367084.json"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	limiter, settings := setupTest(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, settings, logger, srv.URL)
}

func TestSearchReleases(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(t, srv)

	candidates, err := a.SearchReleases(context.Background(), "nirvana nevermind")
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Source != provider.NameDiscogs {
		t.Errorf("expected source discogs, got %s", c.Source)
	}
	if c.Title != "Nevermind" {
		t.Errorf("expected title Nevermind, got %s", c.Title)
	}
	// Disambiguation suffix "(2)" must be stripped from the artist credit.
	if c.Artist != "Nirvana" {
		t.Errorf("expected artist Nirvana, got %s", c.Artist)
	}
	if c.Date != "1991-09-24" {
		t.Errorf("expected date 1991-09-24, got %s", c.Date)
	}
	if c.IDs["discogs"] != "367084" {
		t.Errorf("expected discogs ID 367084, got %s", c.IDs["discogs"])
	}
}

func TestSearchReleasesSkipsHeadings(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(t, srv)

	candidates, err := a.SearchReleases(context.Background(), "nirvana nevermind")
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}

	c := candidates[0]
	// The fixture has 3 tracks plus one "Side A" heading row.
	if c.TrackCount != 3 {
		t.Fatalf("expected track count 3, got %d", c.TrackCount)
	}
	if c.Tracks[0].Title != "Smells Like Teen Spirit" {
		t.Errorf("expected first track Smells Like Teen Spirit, got %s", c.Tracks[0].Title)
	}
	if c.Tracks[0].Position != 1 || c.Tracks[2].Position != 3 {
		t.Errorf("expected sequential positions 1..3, got %d and %d",
			c.Tracks[0].Position, c.Tracks[2].Position)
	}
}

func TestSearchReleasesNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pagination": {"items": 0}, "results": []}`))
	}))
	defer srv.Close()
	a := testAdapter(t, srv)

	_, err := a.SearchReleases(context.Background(), "zzzz nonexistent")
	var noResults *provider.ErrNoResults
	if !errors.As(err, &noResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestSearchReleasesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	a := testAdapter(t, srv)

	_, err := a.SearchReleases(context.Background(), "nirvana")
	var authErr *provider.ErrAuthRequired
	if !errors.As(err, &authErr) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSearchReleasesMissingToken(t *testing.T) {
	limiter, settings := setupTest(t)
	if err := settings.DeleteAPIKey(context.Background(), provider.NameDiscogs); err != nil {
		t.Fatalf("deleting token: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	a := NewWithBaseURL(limiter, settings, logger, "http://127.0.0.1:0")

	_, err := a.SearchReleases(context.Background(), "nirvana")
	var authErr *provider.ErrAuthRequired
	if !errors.As(err, &authErr) {
		t.Fatalf("expected ErrAuthRequired without a token, got %v", err)
	}
}

func TestJoinArtists(t *testing.T) {
	tests := []struct {
		name string
		refs []ArtistRef
		want string
	}{
		{"single", []ArtistRef{{Name: "Nirvana"}}, "Nirvana"},
		{"numeric suffix stripped", []ArtistRef{{Name: "Nirvana (2)"}}, "Nirvana"},
		{"non-numeric suffix kept", []ArtistRef{{Name: "Unknown (live)"}}, "Unknown (live)"},
		{"multiple", []ArtistRef{{Name: "David Bowie"}, {Name: "Queen"}}, "David Bowie, Queen"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArtists(tt.refs); got != tt.want {
				t.Errorf("joinArtists() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestConnection(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(t, srv)

	if err := a.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
}

func TestTestConnectionBadToken(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := testAdapter(t, srv)

	ctx := provider.WithAPIKeyOverride(context.Background(), provider.NameDiscogs, "wrong-token")
	err := a.TestConnection(ctx)
	var authErr *provider.ErrAuthRequired
	if !errors.As(err, &authErr) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

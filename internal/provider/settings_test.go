package provider

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Override92/tid3/internal/encryption"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}
	return db
}

func setupTestEncryptor(t *testing.T) *encryption.Encryptor {
	t.Helper()
	enc, _, err := encryption.NewEncryptor("")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	return enc
}

func TestAPIKeyRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	// Initially empty
	key, err := svc.GetAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key, got %s", key)
	}

	// Set a key
	if err := svc.SetAPIKey(ctx, NameDiscogs, "my-secret-token-123"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	// Read it back
	key, err = svc.GetAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetAPIKey after set: %v", err)
	}
	if key != "my-secret-token-123" {
		t.Errorf("expected 'my-secret-token-123', got %s", key)
	}

	// Verify it is encrypted in the database
	var raw string
	err = db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", "source.discogs.api_key").Scan(&raw)
	if err != nil {
		t.Fatalf("reading raw value: %v", err)
	}
	if raw == "my-secret-token-123" {
		t.Error("API key stored in plaintext, expected encrypted")
	}

	// Update the key
	if err := svc.SetAPIKey(ctx, NameDiscogs, "updated-token-456"); err != nil {
		t.Fatalf("SetAPIKey update: %v", err)
	}
	key, err = svc.GetAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetAPIKey after update: %v", err)
	}
	if key != "updated-token-456" {
		t.Errorf("expected 'updated-token-456', got %s", key)
	}
}

func TestAPIKeyOverride(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, NameAcoustID, "stored-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	overridden := WithAPIKeyOverride(ctx, NameAcoustID, "override-key")
	key, err := svc.GetAPIKey(overridden, NameAcoustID)
	if err != nil {
		t.Fatalf("GetAPIKey with override: %v", err)
	}
	if key != "override-key" {
		t.Errorf("expected override to win, got %s", key)
	}

	// Override for one source must not leak to another
	key, err = svc.GetAPIKey(overridden, NameDiscogs)
	if err != nil {
		t.Fatalf("GetAPIKey other source: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key for discogs, got %s", key)
	}

	// The base context is untouched
	key, err = svc.GetAPIKey(ctx, NameAcoustID)
	if err != nil {
		t.Fatalf("GetAPIKey base ctx: %v", err)
	}
	if key != "stored-key" {
		t.Errorf("expected stored key without override, got %s", key)
	}
}

func TestDeleteAPIKey(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, NameDiscogs, "token-abc"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if err := svc.SetKeyStatus(ctx, NameDiscogs, "ok"); err != nil {
		t.Fatalf("SetKeyStatus: %v", err)
	}

	if err := svc.DeleteAPIKey(ctx, NameDiscogs); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}

	key, err := svc.GetAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetAPIKey after delete: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key after delete, got %s", key)
	}

	status, err := svc.GetKeyStatus(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetKeyStatus after delete: %v", err)
	}
	if status != "" {
		t.Errorf("expected status cleared after delete, got %s", status)
	}
}

func TestSetAPIKeyClearsStatus(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, NameAcoustID, "first"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if err := svc.SetKeyStatus(ctx, NameAcoustID, "ok"); err != nil {
		t.Fatalf("SetKeyStatus: %v", err)
	}

	// Replacing the key invalidates the old test result.
	if err := svc.SetAPIKey(ctx, NameAcoustID, "second"); err != nil {
		t.Fatalf("SetAPIKey replace: %v", err)
	}
	status, err := svc.GetKeyStatus(ctx, NameAcoustID)
	if err != nil {
		t.Fatalf("GetKeyStatus: %v", err)
	}
	if status != "" {
		t.Errorf("expected status cleared after key change, got %s", status)
	}
}

func TestHasAPIKey(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	has, err := svc.HasAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("HasAPIKey: %v", err)
	}
	if has {
		t.Error("expected no key initially")
	}

	if err := svc.SetAPIKey(ctx, NameDiscogs, "key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	has, err = svc.HasAPIKey(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("HasAPIKey: %v", err)
	}
	if !has {
		t.Error("expected key to exist after set")
	}
}

func TestGetSetValue(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	v, err := svc.GetValue(ctx, "ui.theme", "dark")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != "dark" {
		t.Errorf("expected fallback 'dark', got %s", v)
	}

	if err := svc.SetValue(ctx, "ui.theme", "light"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, err = svc.GetValue(ctx, "ui.theme", "dark")
	if err != nil {
		t.Fatalf("GetValue after set: %v", err)
	}
	if v != "light" {
		t.Errorf("expected 'light', got %s", v)
	}
}

func TestKeyStatuses(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	registry := NewRegistry()
	registry.Register(&mockSource{name: NameDiscogs, authReq: true})
	registry.Register(&mockSource{name: NameMusicBrainz, authReq: false})
	registry.RegisterFingerprint(&mockFingerprintSource{name: NameAcoustID, authReq: true})

	if err := svc.SetAPIKey(ctx, NameDiscogs, "key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	statuses, err := svc.KeyStatuses(ctx, registry)
	if err != nil {
		t.Fatalf("KeyStatuses: %v", err)
	}
	if len(statuses) != len(AllSourceNames()) {
		t.Fatalf("expected %d statuses, got %d", len(AllSourceNames()), len(statuses))
	}

	// Discogs: key configured but never tested
	discogs := statuses[0]
	if discogs.Name != NameDiscogs {
		t.Fatalf("expected first source to be discogs, got %s", discogs.Name)
	}
	if !discogs.HasKey {
		t.Error("Discogs should have a key")
	}
	if discogs.Status != "untested" {
		t.Errorf("expected status 'untested', got %s", discogs.Status)
	}

	// MusicBrainz: no key required
	mb := statuses[1]
	if mb.Name != NameMusicBrainz {
		t.Fatalf("expected second source to be musicbrainz, got %s", mb.Name)
	}
	if mb.RequiresKey {
		t.Error("MusicBrainz should not require a key")
	}
	if mb.Status != "not_required" {
		t.Errorf("expected status 'not_required', got %s", mb.Status)
	}

	// AcoustID: key required but not configured
	aid := statuses[2]
	if aid.Name != NameAcoustID {
		t.Fatalf("expected third source to be acoustid, got %s", aid.Name)
	}
	if aid.Status != "unconfigured" {
		t.Errorf("expected status 'unconfigured', got %s", aid.Status)
	}
}

type mockTestableSource struct {
	mockSource
	testErr error
}

func (m *mockTestableSource) TestConnection(ctx context.Context) error {
	return m.testErr
}

func TestTestSourceKeyOK(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	src := &mockTestableSource{mockSource: mockSource{name: NameDiscogs, authReq: true}}
	status, err := svc.TestSourceKey(ctx, src, true)
	if err != nil {
		t.Fatalf("TestSourceKey: %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
	stored, err := svc.GetKeyStatus(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetKeyStatus: %v", err)
	}
	if stored != "ok" {
		t.Errorf("stored status = %q, want ok", stored)
	}
}

func TestTestSourceKeyInvalid(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	src := &mockTestableSource{
		mockSource: mockSource{name: NameDiscogs, authReq: true},
		testErr:    &ErrAuthRequired{Source: NameDiscogs},
	}
	status, err := svc.TestSourceKey(ctx, src, true)
	if err != nil {
		t.Fatalf("TestSourceKey: %v", err)
	}
	if status != "invalid" {
		t.Errorf("status = %q, want invalid", status)
	}
	stored, err := svc.GetKeyStatus(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetKeyStatus: %v", err)
	}
	if stored != "invalid" {
		t.Errorf("stored status = %q, want invalid", stored)
	}
}

func TestTestSourceKeyTransientKeepsStatus(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	if err := svc.SetKeyStatus(ctx, NameDiscogs, "ok"); err != nil {
		t.Fatalf("SetKeyStatus: %v", err)
	}

	src := &mockTestableSource{
		mockSource: mockSource{name: NameDiscogs, authReq: true},
		testErr:    &ErrSourceUnavailable{Source: NameDiscogs, Cause: errors.New("HTTP 503")},
	}
	if _, err := svc.TestSourceKey(ctx, src, true); err == nil {
		t.Fatal("expected transient error to propagate")
	}
	stored, err := svc.GetKeyStatus(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetKeyStatus: %v", err)
	}
	if stored != "ok" {
		t.Errorf("stored status = %q, want ok preserved", stored)
	}
}

func TestTestSourceKeyNoPersist(t *testing.T) {
	db := setupTestDB(t)
	enc := setupTestEncryptor(t)
	svc := NewSettingsService(db, enc)
	ctx := context.Background()

	src := &mockTestableSource{mockSource: mockSource{name: NameDiscogs, authReq: true}}
	status, err := svc.TestSourceKey(ctx, src, false)
	if err != nil {
		t.Fatalf("TestSourceKey: %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
	stored, err := svc.GetKeyStatus(ctx, NameDiscogs)
	if err != nil {
		t.Fatalf("GetKeyStatus: %v", err)
	}
	if stored != "" {
		t.Errorf("expected no stored status, got %q", stored)
	}
}

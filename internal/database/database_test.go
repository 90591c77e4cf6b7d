package database

import (
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tid3.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if _, err := db.Exec("INSERT INTO settings (key, value) VALUES (?, ?)", "source.discogs.api_key", "v"); err != nil {
		t.Fatalf("inserting into settings: %v", err)
	}
	var value string
	if err := db.QueryRow("SELECT value FROM settings WHERE key = ?", "source.discogs.api_key").Scan(&value); err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if value != "v" {
		t.Errorf("value = %q, want v", value)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tid3.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if err := Migrate(db); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

// Package database opens the application's SQLite store and applies
// schema migrations embedded in the binary.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// dsnOptions enables WAL journaling, a 5s busy timeout, and foreign keys.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Open opens the SQLite database at path, creating the parent directory
// if needed.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	return db, nil
}

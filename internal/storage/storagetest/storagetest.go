// Package storagetest opens throwaway migrated databases for tests.
package storagetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"reportforms/internal/config"
	"reportforms/internal/storage"
)

// Open returns a migrated sqlite database in a temporary directory, closed
// when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: filepath.Join(t.TempDir(), "forms.db")},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		db.Close()
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

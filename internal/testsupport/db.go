// Package testsupport provides shared helpers for package tests that
// need a real SQLite database.
package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	"storyhub/pkg/database"
)

// NewDB opens a throwaway database under t.TempDir with the full schema
// applied. The connection is closed when the test finishes.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := database.Config{Path: filepath.Join(t.TempDir(), "storyhub-test.db")}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

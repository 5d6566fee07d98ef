package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/college-scheduler/internal/persistence/sqlite"
)

// NewSQLiteStorage opens a migrated Storage backed by a temporary database
// file for integration-style persistence tests. Cleanup is registered with
// the provided testing.TB.
func NewSQLiteStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "scheduler.db")

	storage, err := sqlite.Open("file:" + path + "?_pragma=foreign_keys(1)")
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

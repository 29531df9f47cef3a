package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/larder/internal/database"
)

// NewTestDatabase opens a migrated in-memory database closed at test end.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards everything.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

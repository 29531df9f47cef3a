package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/apperr"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// classify maps a SQLite failure onto the error taxonomy. Constraint
// violations become ValidationErrors; contention, quota and I/O failures
// become TransientStorageErrors. Anything else is wrapped with op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	code := serr.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		verr := &apperr.ValidationError{Message: serr.Error(), Err: err}
		if code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || isIDConflict(serr.Error()) {
			verr.Field = "id"
			verr.Message = "an entity with this id already exists"
			verr.Err = apperr.ErrDuplicateID
		}
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE && verr.Field == "" {
			verr.Field = "name"
			verr.Message = "name is already taken"
		}
		return verr
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_ABORT, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PROTOCOL:
		return &apperr.TransientStorageError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isIDConflict recognizes a primary key clash from the message when the
// driver reports only the primary result code.
func isIDConflict(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") && (strings.Contains(msg, ".id ") || strings.HasSuffix(msg, ".id"))
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() time.Time {
	return time.Now().UTC()
}

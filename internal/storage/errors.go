package storage

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for the storage package. Use errors.Is to check.
//
// ErrCardNotFound is an expected outcome, not a malfunction; callers
// render "nothing to do" rather than a failure. The remaining sentinels
// are fatal for the current operation and are never downgraded to an
// empty result.
var (
	ErrCardNotFound   = errors.New("storage: card not found")
	ErrNotInitialized = errors.New("storage: store not initialized")
	ErrAlreadyExists  = errors.New("storage: store already exists")
	ErrCorrupt        = errors.New("storage: store corrupt")
	ErrPermission     = errors.New("storage: permission denied")
	ErrDuplicateID    = errors.New("storage: duplicate card id")
)

// mapError translates driver-level failures into the package's error
// taxonomy, preserving the original error for context.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrCardNotFound, err)
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%w: %v", ErrPermission, err)
		case sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%w: %v", ErrNotInitialized, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %v", ErrDuplicateID, err)
		}
	}
	return err
}

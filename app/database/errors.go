package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
)

var (
	// ErrPoolExhausted is returned by Acquire when every connection slot is
	// in use. Callers may retry; nothing is broken.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrStorageUnavailable indicates the database itself could not be
	// reached or opened.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConflict indicates a unique or primary key constraint violation,
	// e.g. inserting a feed or article whose URL already exists.
	ErrConflict = errors.New("conflict")
)

const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// mapSQLError translates driver-level constraint violations into ErrConflict
// so callers can distinguish "already exists" from a hard storage failure.
func mapSQLError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

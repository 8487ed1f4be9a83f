package sqlite

import (
	"database/sql"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mosaicod/internal/domain/ports"
)

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(ports.ErrNotFound, what)
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Wrap(ports.ErrConflict, what)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return errors.Wrapf(ports.ErrNotFound, "%s: referenced entity", what)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return errors.Wrap(ports.ErrInvalidInput, what)
		}
	}
	return errors.WithMessage(err, what)
}

package pg

import (
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation
// for the specified constraint name
func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation && strings.Contains(pgErr.ConstraintName, constraintName)
	}
	return false
}

// translate maps driver errors onto domain errors
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(ports.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return errors.Wrap(ports.ErrConflict, what)
		case codeForeignKeyViolation:
			return errors.Wrapf(ports.ErrNotFound, "%s: referenced entity", what)
		case codeCheckViolation:
			return errors.Wrap(ports.ErrInvalidInput, what)
		case codeSerializationFailure:
			return errors.Wrapf(ports.ErrConflict, "%s: concurrent update", what)
		}
	}
	return errors.WithMessage(err, what)
}

package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped to sentinel errors at this boundary.
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	// ErrDuplicateKey is returned when an insert collides with an existing
	// primary key. Duplicate event delivery lands here; callers treat it as
	// a tolerated no-op.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKeyViolation is returned when a row references a parent
	// that has not been created yet.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return ErrDuplicateKey
		case pgErrForeignKeyViolation:
			return ErrForeignKeyViolation
		}
	}
	return err
}

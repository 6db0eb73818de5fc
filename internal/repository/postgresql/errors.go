package postgresql

import (
	"errors"
	"fmt"
	"parkease/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// sqlState extracts the SQLSTATE from an error raised by either driver.
func sqlState(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// classify wraps driver errors with the repository sentinel they correspond to.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code, constraint, ok := sqlState(err)
	if !ok {
		return err
	}
	switch code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %v", repository.ErrSerialization, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", repository.ErrDuplicateEntry, constraint)
	}
	return err
}

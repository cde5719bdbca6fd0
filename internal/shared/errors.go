package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrValidation indicates the caller supplied unacceptable input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the scope does not cover the requested resource.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage indicates object storage could not serve a payload.
	ErrStorage = errors.New("storage error")
	// ErrProcessing indicates a payload could not be parsed or materialised.
	ErrProcessing = errors.New("processing error")
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound for the named resource.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// Storage wraps err as a storage failure.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Processing wraps err as a processing failure.
func Processing(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProcessing, op, err)
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

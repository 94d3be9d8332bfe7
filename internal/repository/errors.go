package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	// or isn't visible to the caller's credential
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a uniqueness constraint fails
	ErrConflict = errors.New("conflict: entity already exists")

	// ErrForeignKeyViolation is returned when a parent row is missing
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrUnavailable is returned when the backend cannot be reached
	ErrUnavailable = errors.New("storage unavailable")
)

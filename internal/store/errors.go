package store

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateClaim  = errors.New("claim already recorded")
	ErrVersionConflict = errors.New("version is not the next in sequence")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

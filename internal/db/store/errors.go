package store

import "errors"

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrConflict is returned when an account with the same external id or login name already exists.
	ErrConflict = errors.New("account already exists")
	// ErrAccountNotFound is returned when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrRoleNotFound is returned when no role matches.
	ErrRoleNotFound = errors.New("role not found")
	// ErrInvalidState is returned for states other than active and inactive.
	ErrInvalidState = errors.New("invalid account state")
)

package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional write loses its race,
	// e.g. accepting a ride that is no longer searching.
	ErrConflict = errors.New("conditional update failed")
)

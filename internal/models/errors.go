package models

import "errors"

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record would violate a uniqueness or limit constraint.
	ErrConflict = errors.New("conflict")
)

package cache

import "errors"

var (
	// ErrNotFound is returned when a room code does not resolve to a record.
	ErrNotFound = errors.New("room not found")
	// ErrCodeInUse is returned by Create when the code already has a record.
	ErrCodeInUse = errors.New("room code already in use")
	// ErrConflict is returned when a record fails to (de)serialize during Update.
	ErrConflict = errors.New("room record conflict")
)

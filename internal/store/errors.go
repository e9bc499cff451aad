package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a required record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateHash is returned when a file with the same content hash already exists.
	ErrDuplicateHash = errors.New("file hash already exists")
	// ErrInvalidTransition is returned when a job is not in a state that allows the requested change.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

func isUniqueHashConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: file.hash")
}

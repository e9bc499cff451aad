package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for files and jobs.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the canonical identifier form.
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

package util

import "github.com/google/uuid"

// NewID returns a new unique identifier string.
func NewID() string {
	return uuid.New().String()
}

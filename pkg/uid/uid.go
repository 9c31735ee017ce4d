// Package uid generates the identifiers used for games, comments, requests,
// viewers and request ids.
package uid

import "github.com/google/uuid"

// New generates a time-ordered identifier, so ids created later sort later.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

package platform

import "github.com/google/uuid"

// NewID returns a random UUID string used as a primary key.
func NewID() string {
	return uuid.New().String()
}

// IsID reports whether s is a well-formed id as produced by NewID.
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

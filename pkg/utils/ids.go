package utils

import "github.com/google/uuid"

// GenerateID returns a random request identifier
func GenerateID() string {
	return uuid.NewString()
}

package services

import "github.com/google/uuid"

// NewSessionToken joins two random v4 UUIDs, giving 244 random bits.
func NewSessionToken() string {
	return uuid.NewString() + "-" + uuid.NewString()
}

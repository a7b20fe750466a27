package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one issued login of a user on one device. A session is live
// while IsActive is set and ExpiresAt lies in the future.
type Session struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	SessionToken string    `json:"session_token"`
	DeviceID     string    `json:"device_id"`
	DeviceLabel  string    `json:"device_label,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
}

func (s *Session) IsLive(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type LoginAction string

const (
	ActionLogin        LoginAction = "login"
	ActionLogout       LoginAction = "logout"
	ActionForcedLogout LoginAction = "forced_logout"
)

// LoginHistoryEntry is an immutable audit row. Entries are appended and never updated.
type LoginHistoryEntry struct {
	ID        uuid.UUID   `json:"id"`
	UserID    string      `json:"user_id"`
	DeviceID  string      `json:"device_id"`
	IPAddress string      `json:"ip_address,omitempty"`
	Action    LoginAction `json:"action"`
	CreatedAt time.Time   `json:"created_at"`
}

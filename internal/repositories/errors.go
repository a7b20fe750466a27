package repositories

import "errors"

var ErrNotFound = errors.New("not found")

// ErrActiveSessionConflict is returned when inserting a session would leave
// two active sessions for one user.
var ErrActiveSessionConflict = errors.New("another active session exists for this user")

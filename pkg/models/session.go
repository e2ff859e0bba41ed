package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account behind a session.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name,omitempty"`
}

// Session is returned by POST /api/auth/login. The token is sent as a
// Bearer credential on every subsequent request.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

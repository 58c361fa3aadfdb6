package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Device is the client metadata captured when a session is created. It is
// informational only and never validated.
type Device struct {
	ID        string `json:"device_id"`
	Type      string `json:"device_type"`
	OS        string `json:"os"`
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`
}

// Session is one authenticated login.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TokenHash    string    `json:"-"`
	Class        string    `json:"class"`
	Device       Device    `json:"device"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the session may admit a request at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Active && s.ExpiresAt.After(now)
}

// HashToken returns the lookup digest for a signed token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
